package campaign

import (
	"context"
	"sync"
	"time"

	"adsender_go/models"
)

type sendCall struct {
	Target     Target
	Forward    bool
	DropAuthor bool
	MessageID  int
}

type fakePlatform struct {
	mu          sync.Mutex
	dialogs     []Peer
	dialogsErr  error
	dialogCalls int
	usernames   map[string]Peer
	resolved    []string
	messages    map[int]*Content
	sendErrs    map[int64]error
	sends       []sendCall
	nextID      int
}

func newFakePlatform(dialogs ...Peer) *fakePlatform {
	return &fakePlatform{
		dialogs:   dialogs,
		usernames: make(map[string]Peer),
		messages:  make(map[int]*Content),
		sendErrs:  make(map[int64]error),
		nextID:    100,
	}
}

func (f *fakePlatform) Dialogs(context.Context) ([]Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogCalls++
	if f.dialogsErr != nil {
		return nil, f.dialogsErr
	}
	return append([]Peer(nil), f.dialogs...), nil
}

func (f *fakePlatform) ResolveUsername(_ context.Context, username string) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, username)
	p, ok := f.usernames[username]
	if !ok {
		return Peer{}, ErrSourceUnreachable
	}
	return p, nil
}

func (f *fakePlatform) Message(_ context.Context, src Peer, id int) (*Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.messages[id]
	if !ok {
		return nil, ErrMessageMissing
	}
	cp := *c
	cp.Source = src
	cp.MessageID = id
	return &cp, nil
}

func (f *fakePlatform) deliver(dst Target, forward, drop bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := sendCall{Target: dst, Forward: forward, DropAuthor: drop}
	if err := f.sendErrs[dst.Peer.ID]; err != nil {
		f.sends = append(f.sends, call)
		return 0, err
	}
	f.nextID++
	call.MessageID = f.nextID
	f.sends = append(f.sends, call)
	return f.nextID, nil
}

func (f *fakePlatform) Forward(_ context.Context, _ *Content, dst Target, dropAuthor bool) (int, error) {
	return f.deliver(dst, true, dropAuthor)
}

func (f *fakePlatform) SendText(_ context.Context, _ *Content, dst Target) (int, error) {
	return f.deliver(dst, false, false)
}

func (f *fakePlatform) resolves() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resolved...)
}

func (f *fakePlatform) calls() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.sends...)
}

type fakeStore struct {
	mu        sync.Mutex
	running   []bool
	settings  models.AccountSettings
	premium   bool
	events    []models.SendEvent
	counters  models.Counters
	appendErr error
}

func (s *fakeStore) AppendSendEvent(_ context.Context, ev models.SendEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) BumpCounters(_ context.Context, accountID int64, template bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.AccountID = accountID
	s.counters.TotalSent++
	if template {
		s.counters.TemplateSent++
	}
	return nil
}

func (s *fakeStore) GetCounters(context.Context, int64) (models.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters, nil
}

func (s *fakeStore) SetCampaignRunning(_ context.Context, _ int64, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = append(s.running, running)
	return nil
}

func (s *fakeStore) GetSettings(context.Context, int64) (models.AccountSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) IsPremiumActive(context.Context, int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.premium, nil
}

func (s *fakeStore) snapshot() ([]models.SendEvent, []bool, models.Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SendEvent(nil), s.events...), append([]bool(nil), s.running...), s.counters
}

type fakeNotifier struct {
	mu    sync.Mutex
	lines []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, text)
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

// fakeClock двигается вперёд только при вызове Sleep.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int, d time.Duration)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n, d)
	}
	return ctx.Err()
}

func (c *fakeClock) durations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
