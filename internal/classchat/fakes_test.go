package classchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/rs/zerolog"
)

// fakeDirectory implements chat.Directory for testing.
type fakeDirectory struct {
	mu      sync.Mutex
	classes map[string]chat.Class
	codes   map[string]string // code -> class id
	users   map[string]chat.User
	getErr  error
	nextID  int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		classes: make(map[string]chat.Class),
		codes:   make(map[string]string),
		users:   make(map[string]chat.User),
	}
}

func (d *fakeDirectory) id(prefix string) string {
	d.nextID++
	return fmt.Sprintf("%s-%d", prefix, d.nextID)
}

func (d *fakeDirectory) CreateClass(_ context.Context, name, code string) (chat.Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := chat.Class{ID: d.id("class"), Name: name, CodeHash: "hashed:" + code}
	d.classes[c.ID] = c
	d.codes[code] = c.ID
	return c, nil
}

func (d *fakeDirectory) ResolveClass(_ context.Context, code string) (chat.Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.codes[code]
	if !ok {
		return chat.Class{}, chat.ErrClassNotFound
	}
	return d.classes[id], nil
}

func (d *fakeDirectory) CreateUser(_ context.Context, classID, name, avatar string) (chat.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := chat.User{ID: d.id("user"), ClassID: classID, Name: name, Avatar: avatar}
	d.users[u.ID] = u
	return u, nil
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (chat.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return chat.User{}, d.getErr
	}
	u, ok := d.users[userID]
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := d.GetUser(ctx, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return false, nil
	}
	return u.Admin, err
}

func (d *fakeDirectory) ListUsers(_ context.Context, classID string) ([]chat.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []chat.User
	for _, u := range d.users {
		if u.ClassID == classID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) SaveUser(_ context.Context, user chat.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.ID]; !ok {
		return chat.ErrNotFound
	}
	d.users[user.ID] = user
	return nil
}

func (d *fakeDirectory) add(u chat.User) chat.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	return u
}

// fakeCatalog implements chat.ChannelCatalog for testing.
type fakeCatalog struct {
	mu       sync.Mutex
	channels []chat.Channel
}

func (c *fakeCatalog) ListChannels(_ context.Context, classID string) ([]chat.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chat.Channel
	for _, ch := range c.channels {
		if ch.ClassID == classID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (c *fakeCatalog) InsertChannel(_ context.Context, ch chat.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.channels {
		if existing.ClassID == ch.ClassID && existing.ID == ch.ID {
			return chat.ErrDuplicateChannelID
		}
	}
	c.channels = append(c.channels, ch)
	return nil
}

func (c *fakeCatalog) DeleteChannel(_ context.Context, classID, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.channels, func(ch chat.Channel) bool {
		return ch.ClassID == classID && ch.ID == channelID
	})
	if i < 0 {
		return chat.ErrNotFound
	}
	c.channels = slices.Delete(c.channels, i, i+1)
	return nil
}

// fakeMessages implements chat.MessageStore for testing.
type fakeMessages struct {
	mu        sync.Mutex
	byKey     map[chat.Key][]chat.Message
	nextID    int
	clock     func() time.Time
	insertErr error
	listErr   error
	// listGate, when set for a key, blocks ListMessages until closed.
	listGate map[chat.Key]chan struct{}
	// onInsert runs before InsertMessage returns.
	onInsert func(chat.Message)
	archived []chat.Key
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		byKey:    make(map[chat.Key][]chat.Message),
		listGate: make(map[chat.Key]chan struct{}),
		clock:    time.Now,
	}
}

func (m *fakeMessages) ListMessages(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	m.mu.Lock()
	gate := m.listGate[key]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.byKey[key]), nil
}

func (m *fakeMessages) InsertMessage(_ context.Context, in chat.NewMessage) (chat.Message, error) {
	m.mu.Lock()
	if m.insertErr != nil {
		m.mu.Unlock()
		return chat.Message{}, m.insertErr
	}
	m.nextID++
	msg := chat.Message{
		ID:        fmt.Sprintf("m-%03d", m.nextID),
		ClassID:   in.ClassID,
		ChannelID: in.ChannelID,
		Author:    in.Author,
		Content:   in.Content,
		Media:     in.Media,
		CreatedAt: m.clock(),
	}
	key := msg.Key()
	m.byKey[key] = append(m.byKey[key], msg)
	hook := m.onInsert
	m.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return msg, nil
}

func (m *fakeMessages) UpdateMessage(_ context.Context, key chat.Key, id, content string) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.byKey[key] {
		if msg.ID == id {
			m.byKey[key][i].Content = content
			return m.byKey[key][i], nil
		}
	}
	return chat.Message{}, chat.ErrNotFound
}

func (m *fakeMessages) DeleteMessage(_ context.Context, key chat.Key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.byKey[key]
	i := slices.IndexFunc(msgs, func(msg chat.Message) bool { return msg.ID == id })
	if i < 0 {
		return chat.ErrNotFound
	}
	m.byKey[key] = slices.Delete(msgs, i, i+1)
	return nil
}

func (m *fakeMessages) ArchiveChannel(_ context.Context, key chat.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key)
	m.archived = append(m.archived, key)
	return nil
}

func (m *fakeMessages) seed(msgs ...chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.byKey[msg.Key()] = append(m.byKey[msg.Key()], msg)
	}
}

func (m *fakeMessages) gate(key chat.Key) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.listGate[key] = ch
	return ch
}

// fakeFeed implements chat.Feed for testing. Events are pushed with emit.
type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

type fakeSub struct {
	key  chat.Key
	in   chan chat.Event
	done chan struct{}
}

func (f *fakeFeed) Subscribe(ctx context.Context, key chat.Key) (<-chan chat.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	sub := &fakeSub{key: key, in: make(chan chat.Event), done: make(chan struct{})}
	f.subs = append(f.subs, sub)

	out := make(chan chat.Event)
	go func() {
		defer close(out)
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub.in:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Type == chat.EventDisconnected {
					return
				}
			}
		}
	}()
	return out, nil
}

// emit delivers ev to every live subscription for key.
func (f *fakeFeed) emit(key chat.Key, ev chat.Event) {
	f.mu.Lock()
	subs := slices.Clone(f.subs)
	f.mu.Unlock()

	for _, s := range subs {
		if s.key != key {
			continue
		}
		select {
		case s.in <- ev:
		case <-s.done:
		}
	}
}

// active counts subscriptions whose goroutine is still running.
func (f *fakeFeed) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		select {
		case <-s.done:
		default:
			n++
		}
	}
	return n
}

// fakeModeration implements chat.ModerationStore for testing.
type fakeModeration struct {
	mu     sync.Mutex
	mutes  map[string]chat.MuteRecord
	blocks map[string]chat.ClassBlock
}

func newFakeModeration() *fakeModeration {
	return &fakeModeration{
		mutes:  make(map[string]chat.MuteRecord),
		blocks: make(map[string]chat.ClassBlock),
	}
}

func (m *fakeModeration) GetMute(_ context.Context, classID, userID string) (chat.MuteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.mutes[classID+"/"+userID]
	if !ok {
		return chat.MuteRecord{}, chat.ErrNotFound
	}
	return rec, nil
}

func (m *fakeModeration) SetMute(_ context.Context, rec chat.MuteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[rec.ClassID+"/"+rec.UserID] = rec
	return nil
}

func (m *fakeModeration) ClearMute(_ context.Context, classID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mutes, classID+"/"+userID)
	return nil
}

func (m *fakeModeration) ListMutes(_ context.Context, classID string) ([]chat.MuteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.MuteRecord
	for _, rec := range m.mutes {
		if rec.ClassID == classID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *fakeModeration) GetBlock(_ context.Context, classID string) (chat.ClassBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[classID]
	if !ok {
		return chat.ClassBlock{}, chat.ErrNotFound
	}
	return b, nil
}

func (m *fakeModeration) SetBlock(_ context.Context, b chat.ClassBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.ClassID] = b
	return nil
}

func (m *fakeModeration) ClearBlock(_ context.Context, classID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, classID)
	return nil
}

// fakeAudit implements chat.AuditLog for testing.
type fakeAudit struct {
	mu      sync.Mutex
	entries []chat.AuditEntry
}

func (a *fakeAudit) Record(_ context.Context, e chat.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) List(_ context.Context, classID string, limit int) ([]chat.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []chat.AuditEntry
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].ClassID == classID {
			out = append(out, a.entries[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

// fakeMedia implements chat.MediaStorage for testing.
type fakeMedia struct{}

func (fakeMedia) Upload(_ context.Context, key chat.Key, filename string, _ io.Reader) (chat.Media, error) {
	return chat.Media{URL: "file:///media/" + key.String() + "/" + filename, Kind: chat.MediaImage}, nil
}

// harness bundles a Service with its fakes.
type harness struct {
	svc        *Service
	dir        *fakeDirectory
	catalog    *fakeCatalog
	messages   *fakeMessages
	feed       *fakeFeed
	moderation *fakeModeration
	audit      *fakeAudit
	now        time.Time

	classID string
	admin   chat.Session
	student chat.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		dir:        newFakeDirectory(),
		catalog:    &fakeCatalog{},
		messages:   newFakeMessages(),
		feed:       &fakeFeed{},
		moderation: newFakeModeration(),
		audit:      &fakeAudit{},
		now:        time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC),
		classID:    "class-1",
	}

	h.svc = New(Deps{
		Directory:  h.dir,
		Catalog:    h.catalog,
		Messages:   h.messages,
		Feed:       h.feed,
		Moderation: h.moderation,
		Media:      fakeMedia{},
		Audit:      h.audit,
	}, Options{}, zerolog.New(io.Discard))
	h.svc.WithClock(func() time.Time { return h.now })
	h.messages.clock = func() time.Time { return h.now }

	admin := h.dir.add(chat.User{ID: "u-instructor", ClassID: h.classID, Name: "Ms Rivera", Admin: true})
	student := h.dir.add(chat.User{ID: "u-student", ClassID: h.classID, Name: "Emma Wilson", Avatar: "🐼"})
	h.admin = chat.Session{ClassID: h.classID, User: admin}
	h.student = chat.Session{ClassID: h.classID, User: student}

	for _, ch := range chat.DefaultChannels(h.classID) {
		_ = h.catalog.InsertChannel(context.Background(), ch)
	}
	return h
}

func (h *harness) key(channelID string) chat.Key {
	return chat.Key{ClassID: h.classID, ChannelID: channelID}
}

func (h *harness) record(id, channelID, userID, content string) chat.Event {
	return chat.Event{
		Type: chat.EventInsert,
		Record: chat.Record{
			ID:        id,
			ClassID:   h.classID,
			ChannelID: channelID,
			UserID:    userID,
			Content:   content,
			CreatedAt: h.now,
		},
	}
}
