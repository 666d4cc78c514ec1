// Package tui implements the Bubble Tea TUI for classchat.
package tui

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/classchat/internal/styles"
)

// Layout constants.
const (
	sidebarWidth  = 24
	bannerHeight  = 4
	composeHeight = 3
)

// Styles used for rendering the TUI.
var (
	// Group headers in the sidebar.
	groupStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Bold(true).
			PaddingLeft(1)

	// Active channel in the sidebar.
	selectedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	// Channel the cursor is on while the sidebar has focus.
	cursorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow)

	normalStyle = lipgloss.NewStyle()

	// Left accent bar for the active channel.
	selectedBorderStyle = lipgloss.NewStyle().
				Foreground(styles.ColorBlue)

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(styles.ColorGray)

	pendingStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true)

	mediaStyle = lipgloss.NewStyle().
			Foreground(styles.ColorPurple).
			Underline(true)

	// Moderation banner above the compose box.
	blockedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed).
			Bold(true).
			PaddingLeft(1)

	// Disconnected banner.
	disconnectedStyle = lipgloss.NewStyle().
				Foreground(styles.ColorYellow).
				PaddingLeft(1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	errorNoticeStyle = lipgloss.NewStyle().
				Foreground(styles.ColorRed).
				PaddingLeft(1)

	composeStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorGray).
			PaddingLeft(1)

	composeFocusedStyle = composeStyle.
				BorderForeground(styles.ColorBlue)

	helpStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue)

	bannerStyle = styles.BannerStyle.
			PaddingLeft(1)
)

// Icons and symbols.
const (
	iconDot  = "•"
	iconClip = "📎"
	iconLock = "🔒"
)

// authorPalette holds the colors author names are hashed onto.
var authorPalette = []lipgloss.Color{
	"#7aa2f7", // blue
	"#9ece6a", // green
	"#e0af68", // yellow
	"#bb9af7", // purple
	"#7dcfff", // cyan
	"#ff9e64", // orange
	"#f7768e", // red
	"#73daca", // teal
}

// ColorForString returns a stable palette color for s so each author keeps
// the same color across renders.
func ColorForString(s string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return authorPalette[h.Sum32()%uint32(len(authorPalette))]
}
