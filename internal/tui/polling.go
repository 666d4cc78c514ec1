package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hay-kot/classchat/internal/classchat"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/hay-kot/classchat/internal/core/moderation"
)

const requestTimeout = 10 * time.Second

// roomEventMsg carries one room notification. ok is false once the room's
// event channel is closed.
type roomEventMsg struct {
	event classchat.RoomEvent
	ok    bool
}

// channelsLoadedMsg is sent when the channel list is loaded.
type channelsLoadedMsg struct {
	channels []chat.Channel
	err      error
}

// switchedMsg is sent when a channel switch has opened its live feed.
type switchedMsg struct {
	ticket classchat.Ticket
	err    error
}

// historyLoadedMsg is sent when history for a switch finished loading.
type historyLoadedMsg struct {
	key chat.Key
	err error
}

// sentMsg is sent when a send completes.
type sentMsg struct {
	draft chat.Draft
	err   error
}

// verdictMsg carries a fresh moderation verdict.
type verdictMsg struct {
	verdict moderation.Verdict
	err     error
}

// moderationTickMsg triggers a moderation refresh.
type moderationTickMsg struct{}

// waitForRoomEvent returns a command that blocks until the room reports a
// change. The model re-issues it after every event.
func waitForRoomEvent(events <-chan classchat.RoomEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return roomEventMsg{event: ev, ok: ok}
	}
}

func loadChannels(svc Backend, classID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		channels, err := svc.Channels(ctx, classID)
		return channelsLoadedMsg{channels: channels, err: err}
	}
}

// switchChannel makes channelID active. History is loaded by a follow-up
// command once the switch has a ticket.
func switchChannel(room Room, channelID string) tea.Cmd {
	return func() tea.Msg {
		t, err := room.Switch(channelID)
		return switchedMsg{ticket: t, err: err}
	}
}

func loadHistory(room Room, t classchat.Ticket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := room.Load(ctx, t)
		return historyLoadedMsg{key: t.Key(), err: err}
	}
}

func reconnect(room Room) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		key := room.State().Key
		err := room.Reconnect(ctx)
		return historyLoadedMsg{key: key, err: err}
	}
}

func sendDraft(room Room, draft chat.Draft) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := room.Send(ctx, draft)
		return sentMsg{draft: draft, err: err}
	}
}

func checkModeration(room Room) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		verdict, err := room.Moderation(ctx)
		return verdictMsg{verdict: verdict, err: err}
	}
}

// scheduleModerationRefresh returns a command that schedules the next
// moderation check. Returns nil when refreshing is disabled.
func scheduleModerationRefresh(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return moderationTickMsg{}
	})
}
