package tui

import (
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/styles"
)

// glamourGutter is the left margin glamour adds to rendered blocks.
const glamourGutter = 2

// MessagesView renders the active channel's messages in a scrollable
// viewport. New messages keep the view pinned to the bottom unless the user
// has scrolled up.
type MessagesView struct {
	viewport viewport.Model
	markdown bool
	renderer *glamour.TermRenderer
	cache    map[string]string
	messages []chat.Message
	selfID   string
	width    int
	now      func() time.Time
}

// NewMessagesView creates a messages view. selfID marks the signed in
// user's own messages.
func NewMessagesView(selfID string, markdown bool, keys KeyMap) *MessagesView {
	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		PageUp:   keys.PageUp,
		PageDown: keys.PageDown,
	}

	return &MessagesView{
		viewport: vp,
		markdown: markdown,
		cache:    make(map[string]string),
		selfID:   selfID,
		now:      time.Now,
	}
}

// SetSize sets the viewport dimensions and re-renders the content.
func (v *MessagesView) SetSize(width, height int) {
	if width != v.width {
		v.width = width
		v.renderer = nil
		clear(v.cache)
	}
	v.viewport.Width = width
	v.viewport.Height = max(height, 1)
	v.refresh(v.viewport.AtBottom())
}

// SetMessages replaces the displayed messages.
func (v *MessagesView) SetMessages(msgs []chat.Message) {
	stick := v.viewport.AtBottom() || len(v.messages) == 0
	v.messages = msgs
	v.refresh(stick)
}

// Update forwards scroll keys and mouse wheel events to the viewport.
func (v *MessagesView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

// HandlesKey reports whether msg is a scroll key.
func (v *MessagesView) HandlesKey(msg tea.KeyMsg) bool {
	return key.Matches(msg, v.viewport.KeyMap.PageUp, v.viewport.KeyMap.PageDown)
}

// View renders the viewport.
func (v *MessagesView) View() string {
	return v.viewport.View()
}

func (v *MessagesView) refresh(stickToBottom bool) {
	v.viewport.SetContent(v.Render())
	if stickToBottom {
		v.viewport.GotoBottom()
	}
}

// Render returns the full message list as text.
func (v *MessagesView) Render() string {
	if len(v.messages) == 0 {
		return noticeStyle.Render("No messages yet. Say hello!")
	}

	var (
		b       strings.Builder
		lastDay string
	)
	for i, m := range v.messages {
		day := m.CreatedAt.Local().Format("2006-01-02")
		if day != lastDay {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(v.renderDivider(m.CreatedAt))
			b.WriteString("\n")
			lastDay = day
		}

		b.WriteString(v.renderMessage(m))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *MessagesView) renderDivider(t time.Time) string {
	label := t.Local().Format("Monday, Jan 2")
	if v.now().Sub(t) < 7*24*time.Hour {
		label += " (" + humanize.RelTime(t, v.now(), "ago", "from now") + ")"
	}

	label = " " + label + " "
	side := max((v.width-lipgloss.Width(label))/2, 2)
	return styles.DividerStyle.Render(strings.Repeat("─", side) + label + strings.Repeat("─", side))
}

func (v *MessagesView) renderMessage(m chat.Message) string {
	var b strings.Builder

	name := m.Author.Name
	if name == "" {
		name = "unknown"
	}
	nameStyle := styles.AuthorStyle.Foreground(ColorForString(m.Author.UserID + name))

	b.WriteString(m.Author.Glyph())
	b.WriteString(" ")
	b.WriteString(nameStyle.Render(name))
	if m.Author.UserID == v.selfID {
		b.WriteString(styles.AdminStyle.Render(" (you)"))
	}
	b.WriteString(" ")
	b.WriteString(styles.TimestampStyle.Render(m.CreatedAt.Local().Format("15:04")))

	switch {
	case m.Pending:
		b.WriteString(" ")
		b.WriteString(pendingStyle.Render("sending…"))
	case m.EditedAt != nil:
		b.WriteString(" ")
		b.WriteString(styles.TimestampStyle.Render("(edited)"))
	}
	b.WriteString("\n")

	if content := strings.TrimSpace(m.Content); content != "" {
		body := v.renderContent(m.ID, content)
		if m.Pending {
			body = pendingStyle.Render(body)
		}
		b.WriteString(body)
		b.WriteString("\n")
	}

	if m.Media != nil {
		b.WriteString("  ")
		b.WriteString(iconClip)
		b.WriteString(" ")
		b.WriteString(string(m.Media.Kind))
		b.WriteString(" ")
		b.WriteString(mediaStyle.Render(m.Media.URL))
		b.WriteString("\n")
	}

	return b.String()
}

// renderContent renders message text as markdown when enabled, falling back
// to indented plain text. Rendered bodies are cached per message and width.
func (v *MessagesView) renderContent(id, content string) string {
	plain := indent(content)
	if !v.markdown || v.width <= glamourGutter*2 {
		return plain
	}

	cacheKey := id + "\x00" + content
	if out, ok := v.cache[cacheKey]; ok {
		return out
	}

	if v.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("tokyo-night"),
			glamour.WithWordWrap(v.width-glamourGutter*2),
		)
		if err != nil {
			v.markdown = false
			return plain
		}
		v.renderer = r
	}

	rendered, err := v.renderer.Render(content)
	if err != nil {
		return plain
	}

	out := trimBlankLines(rendered)
	v.cache[cacheKey] = out
	return out
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// ansiPattern matches ANSI escape sequences.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func isBlankLine(line string) bool {
	return strings.TrimSpace(ansiPattern.ReplaceAllString(line, "")) == ""
}

// trimBlankLines drops the empty padding lines glamour puts around a
// document.
func trimBlankLines(content string) string {
	lines := strings.Split(content, "\n")

	start, end := 0, len(lines)
	for start < end && isBlankLine(lines[start]) {
		start++
	}
	for end > start && isBlankLine(lines[end-1]) {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
