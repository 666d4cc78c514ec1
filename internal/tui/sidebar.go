package tui

import (
	"strings"

	"github.com/hay-kot/classchat/internal/core/chat"
)

// ChannelGroup is one titled section of the sidebar.
type ChannelGroup struct {
	Name     string
	Channels []chat.Channel
}

// GroupChannels groups channels by their Group field. Groups appear in the
// order their first channel does and channels keep their input order.
// Channels without a group land in "other".
func GroupChannels(channels []chat.Channel) []ChannelGroup {
	if len(channels) == 0 {
		return nil
	}

	var (
		groups []ChannelGroup
		index  = make(map[string]int)
	)
	for _, ch := range channels {
		name := ch.Group
		if name == "" {
			name = "other"
		}

		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ChannelGroup{Name: name})
		}
		groups[i].Channels = append(groups[i].Channels, ch)
	}
	return groups
}

// Sidebar lists the class's channels and tracks the cursor and the active
// channel.
type Sidebar struct {
	groups []ChannelGroup
	flat   []chat.Channel
	cursor int
	active string
	height int
}

// SetChannels replaces the channel list, keeping the cursor on the same
// channel when it still exists.
func (s *Sidebar) SetChannels(channels []chat.Channel) {
	current, hadCursor := s.Cursor()

	s.groups = GroupChannels(channels)
	s.flat = s.flat[:0]
	for _, g := range s.groups {
		s.flat = append(s.flat, g.Channels...)
	}

	s.cursor = 0
	if hadCursor {
		s.Select(current.ID)
	}
}

// SetHeight sets the number of rows available.
func (s *Sidebar) SetHeight(h int) {
	s.height = h
}

// SetActive marks channelID as the open channel.
func (s *Sidebar) SetActive(channelID string) {
	s.active = channelID
}

// Active returns the id of the open channel.
func (s *Sidebar) Active() string {
	return s.active
}

// Select moves the cursor to channelID. Returns false if it is not listed.
func (s *Sidebar) Select(channelID string) bool {
	for i, ch := range s.flat {
		if ch.ID == channelID {
			s.cursor = i
			return true
		}
	}
	return false
}

// Has reports whether channelID is listed.
func (s *Sidebar) Has(channelID string) bool {
	for _, ch := range s.flat {
		if ch.ID == channelID {
			return true
		}
	}
	return false
}

// MoveUp moves the cursor up.
func (s *Sidebar) MoveUp() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// MoveDown moves the cursor down.
func (s *Sidebar) MoveDown() {
	if s.cursor < len(s.flat)-1 {
		s.cursor++
	}
}

// Cursor returns the channel under the cursor.
func (s *Sidebar) Cursor() (chat.Channel, bool) {
	if s.cursor < 0 || s.cursor >= len(s.flat) {
		return chat.Channel{}, false
	}
	return s.flat[s.cursor], true
}

// View renders the sidebar. The cursor is only highlighted when focused.
func (s *Sidebar) View(focused bool) string {
	var lines []string

	i := 0
	for gi, g := range s.groups {
		if gi > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, groupStyle.Render(strings.ToUpper(g.Name)))

		for _, ch := range g.Channels {
			lines = append(lines, s.renderChannel(ch, focused && i == s.cursor))
			i++
		}
	}

	if len(lines) == 0 {
		lines = append(lines, noticeStyle.Render("No channels"))
	}

	if s.height > 0 && len(lines) > s.height {
		lines = lines[:s.height]
	}
	return sidebarStyle.Height(max(s.height, 1)).Render(strings.Join(lines, "\n"))
}

func (s *Sidebar) renderChannel(ch chat.Channel, underCursor bool) string {
	name := "# " + ch.ID
	if ch.Private {
		name += " " + iconLock
	}

	switch {
	case ch.ID == s.active:
		return selectedBorderStyle.Render("┃") + " " + selectedStyle.Render(name)
	case underCursor:
		return "  " + cursorStyle.Render(name)
	default:
		return "  " + normalStyle.Render(name)
	}
}
