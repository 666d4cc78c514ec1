package chat

import (
	"regexp"
	"slices"
	"strings"
)

// Channel groups used by the default layout.
const (
	GroupGeneral = "general"
	GroupTopics  = "topics"
	GroupGroups  = "groups"
)

// Channel is a named sub-scope of a class.
type Channel struct {
	ID      string `json:"id"`
	ClassID string `json:"class_id"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
	Group   string `json:"group,omitempty"`
}

// Key returns the channel key.
func (c Channel) Key() Key {
	return Key{ClassID: c.ClassID, ChannelID: c.ID}
}

// protectedChannels cannot be deleted by admins.
var protectedChannels = []string{"announcements", "general"}

// IsProtectedChannel reports whether the channel id is a protected default.
func IsProtectedChannel(id string) bool {
	return slices.Contains(protectedChannels, id)
}

// DefaultChannels returns the channels every new class starts with.
func DefaultChannels(classID string) []Channel {
	return []Channel{
		{ID: "announcements", ClassID: classID, Name: "Announcements", Private: true, Group: GroupGeneral},
		{ID: "general", ClassID: classID, Name: "General", Group: GroupGeneral},
		{ID: "questions", ClassID: classID, Name: "Questions", Group: GroupGeneral},
		{ID: "homework", ClassID: classID, Name: "Homework", Group: GroupTopics},
		{ID: "exams", ClassID: classID, Name: "Exams", Group: GroupTopics},
		{ID: "resources", ClassID: classID, Name: "Resources", Group: GroupTopics},
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ChannelID derives the machine id of a channel from its display name:
// lowercased, with every run of whitespace replaced by a single hyphen.
func ChannelID(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return whitespaceRun.ReplaceAllString(name, "-")
}
