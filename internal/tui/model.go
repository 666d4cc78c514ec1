package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/config"
	"github.com/hay-kot/classchat/internal/core/moderation"
	"github.com/hay-kot/classchat/internal/styles"
)

// Backend is the part of the chat service the TUI reads outside the room.
type Backend interface {
	Channels(ctx context.Context, classID string) ([]chat.Channel, error)
}

// Room is the channel view the TUI drives. Implemented by *classchat.Room.
type Room interface {
	Session() chat.Session
	Events() <-chan classchat.RoomEvent
	Switch(channelID string) (classchat.Ticket, error)
	Load(ctx context.Context, t classchat.Ticket) error
	Reconnect(ctx context.Context) error
	State() classchat.RoomState
	Messages() []chat.Message
	Send(ctx context.Context, draft chat.Draft) (chat.Message, error)
	Moderation(ctx context.Context) (moderation.Verdict, error)
}

// focusArea is the pane receiving key input.
type focusArea int

const (
	focusCompose focusArea = iota
	focusSidebar
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	cfg     *config.Config
	backend Backend
	room    Room
	sess    chat.Session

	keys     KeyMap
	help     help.Model
	sidebar  *Sidebar
	msgView  *MessagesView
	input    textinput.Model
	spinner  spinner.Model
	focus    focusArea
	fullHelp bool

	verdict   moderation.Verdict
	notice    string
	noticeErr bool

	width    int
	height   int
	quitting bool
}

// New creates a new TUI model over an open room. The caller owns the room
// and closes it after the program exits.
func New(backend Backend, room Room, cfg *config.Config) Model {
	keys := DefaultKeyMap()
	keys.sidebarMode(false)

	sess := room.Session()

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "Write a message"
	input.CharLimit = 4000
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	h := help.New()
	h.ShortSeparator = " " + iconDot + " "
	h.Styles.ShortKey = helpStyle.UnsetPaddingLeft()
	h.Styles.ShortDesc = helpStyle.UnsetPaddingLeft()
	h.Styles.ShortSeparator = helpStyle.UnsetPaddingLeft()
	h.Styles.FullKey = helpStyle.UnsetPaddingLeft()
	h.Styles.FullDesc = helpStyle.UnsetPaddingLeft()
	h.Styles.FullSeparator = helpStyle.UnsetPaddingLeft()

	sidebar := &Sidebar{}
	sidebar.SetActive(classchat.DefaultChannelID)

	return Model{
		cfg:     cfg,
		backend: backend,
		room:    room,
		sess:    sess,
		keys:    keys,
		help:    h,
		sidebar: sidebar,
		msgView: NewMessagesView(sess.User.ID, cfg.TUI.RenderMarkdown(), keys),
		input:   input,
		spinner: s,
		verdict: moderation.Verdict{Allowed: true},
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadChannels(m.backend, m.sess.ClassID),
		switchChannel(m.room, m.sidebar.Active()),
		waitForRoomEvent(m.room.Events()),
		checkModeration(m.room),
		scheduleModerationRefresh(m.cfg.TUI.ModerationRefresh),
		m.spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.msgView.Update(msg)

	case channelsLoadedMsg:
		return m.handleChannels(msg)

	case switchedMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, chat.ErrStaleChannelResponse) {
				m.setError("open channel", msg.err)
			}
			return m, nil
		}
		m.syncMessages()
		return m, loadHistory(m.room, msg.ticket)

	case historyLoadedMsg:
		if msg.err != nil && !errors.Is(msg.err, chat.ErrStaleChannelResponse) {
			m.setError("load history", msg.err)
		} else if msg.err == nil && m.notice == reconnectingNotice {
			m.setNotice("Reconnected")
		}
		m.syncMessages()
		return m, nil

	case roomEventMsg:
		if !msg.ok {
			return m, nil
		}
		m.syncMessages()
		return m, waitForRoomEvent(m.room.Events())

	case sentMsg:
		return m.handleSent(msg)

	case verdictMsg:
		if msg.err == nil {
			m.verdict = msg.verdict
		}
		return m, nil

	case moderationTickMsg:
		return m, tea.Batch(checkModeration(m.room), scheduleModerationRefresh(m.cfg.TUI.ModerationRefresh))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

const reconnectingNotice = "Reconnecting…"

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		if m.room.State().Disconnected == nil {
			return m, nil
		}
		m.setNotice(reconnectingNotice)
		return m, reconnect(m.room)

	case m.msgView.HandlesKey(msg):
		return m, m.msgView.Update(msg)
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleComposeKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
	case key.Matches(msg, m.keys.Help):
		m.fullHelp = !m.fullHelp
		m.layout()
	case key.Matches(msg, m.keys.Open):
		ch, ok := m.sidebar.Cursor()
		if !ok {
			return m, nil
		}
		m.toggleFocus()
		return m, m.openChannel(ch.ID)
	}
	return m, nil
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		draft := chat.Draft{Content: strings.TrimSpace(m.input.Value())}
		if draft.IsEmpty() {
			return m, nil
		}
		m.input.Reset()
		m.clearNotice()
		return m, sendDraft(m.room, draft)

	case key.Matches(msg, m.keys.Clear):
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// openChannel switches the room to channelID unless it is already active.
func (m *Model) openChannel(channelID string) tea.Cmd {
	if channelID == m.sidebar.Active() && m.room.State().Key.ChannelID == channelID {
		return nil
	}
	m.sidebar.SetActive(channelID)
	m.input.Placeholder = "Message #" + channelID
	m.clearNotice()
	return switchChannel(m.room, channelID)
}

func (m Model) handleChannels(msg channelsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setError("load channels", msg.err)
		return m, nil
	}

	m.sidebar.SetChannels(msg.channels)

	active := m.sidebar.Active()
	if !m.sidebar.Has(active) {
		// active channel is gone, fall back to the first listed one
		if ch, ok := m.sidebar.Cursor(); ok {
			return m, m.openChannel(ch.ID)
		}
		return m, nil
	}

	m.input.Placeholder = "Message #" + active
	return m, nil
}

func (m Model) handleSent(msg sentMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		return m, nil
	}

	var failed *chat.SendFailedError
	switch {
	case errors.As(msg.err, &failed):
		if m.input.Value() == "" {
			m.input.SetValue(failed.Draft.Content)
			m.input.CursorEnd()
		}
		m.setError("message not sent, draft restored", failed.Err)
		return m, nil

	case errors.Is(msg.err, chat.ErrSendBlocked):
		if m.input.Value() == "" {
			m.input.SetValue(msg.draft.Content)
			m.input.CursorEnd()
		}
		m.setError("message not sent", msg.err)
		return m, checkModeration(m.room)

	default:
		m.setError("send", msg.err)
		return m, nil
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusCompose {
		m.focus = focusSidebar
		m.sidebar.Select(m.sidebar.Active())
		m.input.Blur()
	} else {
		m.focus = focusCompose
		m.input.Focus()
		m.fullHelp = false
	}
	m.keys.sidebarMode(m.focus == focusSidebar)
	m.layout()
}

func (m *Model) syncMessages() {
	m.msgView.SetMessages(m.room.Messages())
}

func (m *Model) setNotice(msg string) {
	m.notice = msg
	m.noticeErr = false
}

func (m *Model) setError(action string, err error) {
	m.notice = fmt.Sprintf("%s: %v", action, err)
	m.noticeErr = true
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}

// layout recomputes component sizes from the window size.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	bodyHeight := m.height - bannerHeight - 1 - m.helpHeight()
	m.sidebar.SetHeight(max(bodyHeight, 1))

	rightWidth := max(m.width-sidebarWidth-2, 10)
	m.input.Width = max(rightWidth-6, 1)
	m.msgView.SetSize(rightWidth, bodyHeight-composeHeight-1)
}

func (m Model) helpHeight() int {
	if m.fullHelp {
		return len(m.keys.FullHelp()[0])
	}
	return 1
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return m.spinner.View() + " Loading…"
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		bannerStyle.Render(strings.TrimPrefix(styles.Banner, "\n")),
		m.renderUserLine(),
	)

	right := lipgloss.JoinVertical(lipgloss.Left,
		m.msgView.View(),
		m.renderStatusLine(),
		m.renderCompose(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(m.focus == focusSidebar), " ", right)

	m.help.ShowAll = m.fullHelp
	footer := helpStyle.Render(m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderUserLine() string {
	line := m.sess.Author().Glyph() + " " + styles.AuthorStyle.Render(m.sess.User.Name)
	if m.sess.User.Admin {
		line += styles.AdminStyle.Render(" admin")
	}
	if active := m.sidebar.Active(); active != "" {
		line += styles.TimestampStyle.Render("  " + iconDot + "  #" + active)
	}
	return noticeStyle.Render(line)
}

// renderStatusLine shows, by priority: a lost live feed, a moderation
// restriction, history loading, or the latest notice.
func (m Model) renderStatusLine() string {
	state := m.room.State()

	switch {
	case state.Disconnected != nil && m.notice != reconnectingNotice:
		return disconnectedStyle.Render("Live updates lost. Press ctrl+r to reconnect.")
	case !m.verdict.Allowed:
		return blockedStyle.Render(m.verdict.Banner(time.Now()))
	case state.Loading:
		return noticeStyle.Render(m.spinner.View() + " Loading messages…")
	case m.notice != "" && m.noticeErr:
		return errorNoticeStyle.Render(m.notice)
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	default:
		return ""
	}
}

func (m Model) renderCompose() string {
	style := composeStyle
	if m.focus == focusCompose {
		style = composeFocusedStyle
	}
	return style.Width(max(m.input.Width+2, 1)).Render(m.input.View())
}
