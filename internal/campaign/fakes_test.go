package campaign

import (
	"context"
	"sync"

	"adsender_go/models"
	"adsender_go/pkg/storage"
	dispatch "adsender_go/pkg/telegram/campaign"
)

type fakeStore struct {
	mu        sync.Mutex
	accounts  map[int64]*models.Account
	sessions  map[int64]*models.Session
	campaigns map[int64]*models.Campaign // по session_id
	inserted  []models.Campaign
	settings  models.AccountSettings
	running   map[int64][]bool
	events    []models.SendEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[int64]*models.Account{1: {ID: 1, Username: "owner"}},
		sessions:  map[int64]*models.Session{10: {ID: 10, AccountID: 1, Phone: "+100", IsActive: true}, 11: {ID: 11, AccountID: 1, Phone: "+200", IsActive: true}},
		campaigns: map[int64]*models.Campaign{},
		settings:  models.DefaultSettings(1),
		running:   map[int64][]bool{},
	}
}

func (s *fakeStore) addCampaign(id, sessionID int64) {
	s.campaigns[sessionID] = &models.Campaign{
		ID: id, AccountID: 1, SessionID: sessionID,
		Links: []string{"https://t.me/feed/1"}, IntervalSec: 60,
		GroupMode: models.GroupModeAll, Attribution: models.AttributionHidden,
	}
}

func (s *fakeStore) runningFlags(id int64) []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.running[id]...)
}

func (s *fakeStore) AppendSendEvent(_ context.Context, ev models.SendEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) BumpCounters(context.Context, int64, bool) error { return nil }

func (s *fakeStore) GetCounters(context.Context, int64) (models.Counters, error) {
	return models.Counters{}, nil
}

func (s *fakeStore) SetCampaignRunning(_ context.Context, id int64, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = append(s.running[id], running)
	return nil
}

func (s *fakeStore) GetSettings(context.Context, int64) (models.AccountSettings, error) {
	return s.settings, nil
}

func (s *fakeStore) IsPremiumActive(context.Context, int64) (bool, error) { return false, nil }

func (s *fakeStore) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) GetSession(_ context.Context, id int64) (*models.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeStore) ListSessions(_ context.Context, accountID int64) ([]models.Session, error) {
	var out []models.Session
	for _, id := range []int64{10, 11, 12} {
		if sess, ok := s.sessions[id]; ok && sess.AccountID == accountID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

// GetLatestCampaign как и хранилище отдаёт последнюю кампанию аккаунта, если у сессии своей нет.
func (s *fakeStore) GetLatestCampaign(_ context.Context, accountID, sessionID int64) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[sessionID]; ok {
		cp := *c
		return &cp, nil
	}
	var latest *models.Campaign
	for _, c := range s.campaigns {
		if c.AccountID == accountID && (latest == nil || c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeStore) InsertCampaign(_ context.Context, c models.Campaign) (*models.Campaign, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = int64(100 + len(s.inserted))
	s.inserted = append(s.inserted, c)
	s.campaigns[c.SessionID] = &c
	return &c, nil
}

func (s *fakeStore) ListRunningCampaigns(context.Context) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Campaign
	for _, c := range s.campaigns {
		if c.IsRunning {
			out = append(out, *c)
		}
	}
	return out, nil
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

// blockingRunner держит «соединение» до отмены контекста, не запуская цикл.
func blockingRunner(started chan<- int64) Runner {
	return func(ctx context.Context, s models.Session, _ func(context.Context, dispatch.Platform) error) error {
		started <- s.ID
		<-ctx.Done()
		return ctx.Err()
	}
}

// flagRunner ведёт себя как цикл рассылки: помечает последний снимок сессии
// запущенным, держит соединение до отмены и сбрасывает флаг при выходе.
func flagRunner(store *fakeStore, started chan<- int64) Runner {
	return func(ctx context.Context, s models.Session, _ func(context.Context, dispatch.Platform) error) error {
		c, err := store.GetLatestCampaign(ctx, s.AccountID, s.ID)
		if err != nil {
			return err
		}
		_ = store.SetCampaignRunning(ctx, c.ID, true)
		started <- s.ID
		<-ctx.Done()
		_ = store.SetCampaignRunning(context.WithoutCancel(ctx), c.ID, false)
		return ctx.Err()
	}
}

// errRunner сразу завершается с ошибкой.
func errRunner(err error) Runner {
	return func(context.Context, models.Session, func(context.Context, dispatch.Platform) error) error {
		return err
	}
}
