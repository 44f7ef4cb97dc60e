package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"adsender_go/internal/crash"
	"adsender_go/models"
	"adsender_go/pkg/metrics"
	"adsender_go/pkg/storage"
	dispatch "adsender_go/pkg/telegram/campaign"
	"adsender_go/pkg/telegram/module"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountBanned   = errors.New("account is banned")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoCampaign      = errors.New("no campaign configured for session")
	ErrShuttingDown    = errors.New("engine is shutting down")
)

// Store: данные, которые движок читает помимо самого цикла.
type Store interface {
	dispatch.Store
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	ListSessions(ctx context.Context, accountID int64) ([]models.Session, error)
	GetLatestCampaign(ctx context.Context, accountID, sessionID int64) (*models.Campaign, error)
	InsertCampaign(ctx context.Context, c models.Campaign) (*models.Campaign, error)
	ListRunningCampaigns(ctx context.Context) ([]models.Campaign, error)
}

// Runner открывает соединение сессии и выполняет f с платформой поверх него.
type Runner func(ctx context.Context, s models.Session, f func(ctx context.Context, p dispatch.Platform) error) error

// SessionRunner подключает сессию через gotd с хранилищем ключей в БД.
// apiID и apiHash используются для сессий, у которых своих ключей приложения нет.
func SessionRunner(db *sql.DB, apiID int, apiHash string) Runner {
	return func(ctx context.Context, s models.Session, f func(ctx context.Context, p dispatch.Platform) error) error {
		if s.ApiID == 0 {
			s.ApiID, s.ApiHash = apiID, apiHash
		}
		return module.RunSession(ctx, db, s, func(ctx context.Context, api *tg.Client) error {
			return f(ctx, dispatch.NewTGPlatform(api))
		})
	}
}

type Deps struct {
	Store       Store
	Registry    *Registry
	Runner      Runner
	Cache       dispatch.PeerCache
	CacheTTL    time.Duration
	Recorder    *dispatch.Recorder
	Notifier    dispatch.Notifier
	Location    *time.Location
	BotUsername string

	// Now и Sleep подменяются в тестах.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine запускает и останавливает кампании по ключу (аккаунт, сессия).
type Engine struct {
	d Deps

	mu        sync.Mutex
	campaigns map[Key]int64 // снимок, запущенный под ключом последним
	closed    bool
}

func NewEngine(d Deps) *Engine {
	if d.Registry == nil {
		d.Registry = NewRegistry()
	}
	if d.Cache == nil {
		d.Cache = dispatch.NewMemoryCache()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = dispatch.DefaultCacheTTL
	}
	if d.Recorder == nil {
		d.Recorder = dispatch.NewRecorder(d.Store, nil, "")
	}
	if d.Notifier == nil {
		d.Notifier = dispatch.NopNotifier{}
	}
	e := &Engine{d: d, campaigns: make(map[Key]int64)}
	d.Registry.OnExit = e.onExit
	metrics.RegisterRunning(d.Registry.Count)
	return e
}

// Start загружает последний снимок кампании и запускает его рассылку.
// Уже работающая кампания того же ключа перезапускается.
func (e *Engine) Start(ctx context.Context, accountID, sessionID int64) (*models.Campaign, error) {
	if e.isClosed() {
		return nil, ErrShuttingDown
	}
	acct, err := e.d.Store.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.IsBanned {
		return nil, ErrAccountBanned
	}

	sess, err := e.d.Store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && sess.AccountID != accountID) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	camp, err := e.d.Store.GetLatestCampaign(ctx, accountID, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCampaign
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if err := camp.Validate(); err != nil {
		return nil, err
	}
	if camp.SessionID != sessionID {
		if camp, err = e.adoptCampaign(ctx, *camp, sessionID); err != nil {
			return nil, err
		}
	}

	info := dispatch.SenderInfo{
		Index:       e.sessionIndex(ctx, accountID, sessionID),
		Phone:       sess.Phone,
		BotUsername: e.d.BotUsername,
	}
	snapshot, session := *camp, *sess
	key := Key{AccountID: accountID, SessionID: sessionID}
	// Регистрация под e.mu: Shutdown либо увидит задачу, либо запретит запуск.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	e.campaigns[key] = camp.ID
	e.d.Registry.Start(key, func(ctx context.Context) error {
		return e.run(ctx, snapshot, session, info)
	})
	e.mu.Unlock()
	metrics.RecordCampaign("start")
	log.Info().Str("key", key.String()).Int64("campaign", camp.ID).Msg("[ENGINE] кампания передана в реестр")
	return camp, nil
}

// adoptCampaign сохраняет копию чужого снимка для сессии. У каждой сессии своя
// строка, поэтому флаг running одной кампании не трогает цикл другой.
func (e *Engine) adoptCampaign(ctx context.Context, src models.Campaign, sessionID int64) (*models.Campaign, error) {
	c := src
	c.ID = 0
	c.SessionID = sessionID
	c.IsRunning = false
	c.CreatedAt = time.Time{}
	saved, err := e.d.Store.InsertCampaign(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("copy campaign %d: %w", src.ID, err)
	}
	log.Info().Int64("from", src.ID).Int64("campaign", saved.ID).Int64("session", sessionID).
		Msg("[ENGINE] снимок кампании скопирован для сессии")
	return saved, nil
}

func (e *Engine) run(ctx context.Context, c models.Campaign, s models.Session, info dispatch.SenderInfo) error {
	err := e.d.Runner(ctx, s, func(ctx context.Context, p dispatch.Platform) error {
		loop := dispatch.NewLoop(c, info, dispatch.Deps{
			Platform: p,
			Cache:    e.d.Cache,
			CacheTTL: e.d.CacheTTL,
			Store:    e.d.Store,
			Recorder: e.d.Recorder,
			Notifier: e.d.Notifier,
			Location: e.d.Location,
			Now:      e.d.Now,
			Sleep:    e.d.Sleep,
		})
		return loop.Run(ctx)
	})
	if err != nil && ctx.Err() != nil && !dispatch.IsFatal(err) {
		// Ошибка закрытия соединения после отмены.
		return nil
	}
	if errors.Is(err, module.ErrUnauthorized) {
		// Цикл не стартовал, поэтому флаг сбрасываем здесь, иначе кампания поднимется при каждом рестарте.
		if serr := e.d.Store.SetCampaignRunning(context.WithoutCancel(ctx), c.ID, false); serr != nil {
			log.Error().Err(serr).Int64("campaign", c.ID).Msg("[DB ERROR] не удалось сбросить флаг running")
		}
	}
	return err
}

func (e *Engine) onExit(key Key, err error) {
	ctx := context.Background()
	switch {
	case err == nil:
		metrics.RecordCampaign("stop")
	case dispatch.IsFatal(err), errors.Is(err, module.ErrUnauthorized), errors.Is(err, models.ErrNoLinks):
		metrics.RecordCampaign("fatal")
		e.d.Notifier.Notify(ctx, key.AccountID, FormatFatalNotice(err))
	default:
		metrics.RecordCampaign("fatal")
		e.d.Notifier.Notify(ctx, key.AccountID, FormatFatalNotice(err))
		crash.CaptureError(err, map[string]string{"key": key.String()})
	}
}

// FormatFatalNotice: сообщение в живой журнал о завершении кампании с ошибкой.
func FormatFatalNotice(err error) string {
	return "⛔ Campaign stopped: " + err.Error()
}

// sessionIndex: номер сессии среди активных сессий аккаунта, начиная с 1, или 0, если сессия не найдена.
func (e *Engine) sessionIndex(ctx context.Context, accountID, sessionID int64) int {
	sessions, err := e.d.Store.ListSessions(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).Int64("account", accountID).Msg("[DB WARN] не удалось получить список сессий")
		return 0
	}
	for i, s := range sessions {
		if s.ID == sessionID {
			return i + 1
		}
	}
	return 0
}

// Stop останавливает кампанию сессии. Возвращает false, если она не была запущена.
func (e *Engine) Stop(accountID, sessionID int64) bool {
	return e.d.Registry.Stop(Key{AccountID: accountID, SessionID: sessionID})
}

func (e *Engine) IsRunning(accountID, sessionID int64) bool {
	return e.d.Registry.IsRunning(Key{AccountID: accountID, SessionID: sessionID})
}

// StartAll запускает кампании на всех активных сессиях аккаунта.
// Возвращает число запущенных и объединённую ошибку по остальным.
func (e *Engine) StartAll(ctx context.Context, accountID int64) (int, error) {
	sessions, err := e.d.Store.ListSessions(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	started := 0
	var errs []error
	for _, s := range sessions {
		if _, err := e.Start(ctx, accountID, s.ID); err != nil {
			errs = append(errs, fmt.Errorf("session %d: %w", s.ID, err))
			if errors.Is(err, ErrAccountBanned) || errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrShuttingDown) {
				break
			}
			continue
		}
		started++
	}
	return started, errors.Join(errs...)
}

// StopAll останавливает все кампании аккаунта и возвращает их число.
func (e *Engine) StopAll(accountID int64) int {
	stopped := 0
	for _, k := range e.d.Registry.Keys() {
		if k.AccountID == accountID && e.d.Registry.Stop(k) {
			stopped++
		}
	}
	return stopped
}

// Status: ключи работающих кампаний аккаунта.
func (e *Engine) Status(accountID int64) []Key {
	var out []Key
	for _, k := range e.d.Registry.Keys() {
		if k.AccountID == accountID {
			out = append(out, k)
		}
	}
	return out
}

// Resume поднимает кампании, которые были запущены до остановки процесса.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	running, err := e.d.Store.ListRunningCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running campaigns: %w", err)
	}
	resumed := 0
	for _, c := range running {
		if ctx.Err() != nil {
			break
		}
		if _, err := e.Start(ctx, c.AccountID, c.SessionID); err != nil {
			if errors.Is(err, ErrShuttingDown) || ctx.Err() != nil {
				// Флаг не трогаем: кампания поднимется при следующем запуске.
				break
			}
			log.Warn().Err(err).Int64("account", c.AccountID).Int64("session", c.SessionID).
				Msg("[ENGINE] не удалось восстановить кампанию")
			if serr := e.d.Store.SetCampaignRunning(ctx, c.ID, false); serr != nil {
				log.Error().Err(serr).Int64("campaign", c.ID).Msg("[DB ERROR] не удалось сбросить флаг running")
			}
			continue
		}
		resumed++
	}
	log.Info().Int("resumed", resumed).Int("total", len(running)).Msg("[ENGINE] восстановление завершено")
	return resumed, nil
}

// Shutdown останавливает все кампании. Цикл при выходе сбрасывает флаг running,
// поэтому после остановки флаг выставляется заново: по нему Resume поднимет кампании.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	keys := e.d.Registry.Keys()
	e.d.Registry.StopAll(dispatch.ErrShutdown)

	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		id, ok := e.campaigns[k]
		if !ok {
			continue
		}
		if err := e.d.Store.SetCampaignRunning(ctx, id, true); err != nil {
			log.Error().Err(err).Int64("campaign", id).Msg("[DB ERROR] не удалось сохранить кампанию для восстановления")
		}
	}
	log.Info().Int("count", len(keys)).Msg("[ENGINE] кампании сохранены для восстановления")
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Running: общее число работающих кампаний.
func (e *Engine) Running() int { return e.d.Registry.Count() }

// CreateCampaign сохраняет новый снимок. Пустые режим пересылки и ссылки тем
// берутся из настроек аккаунта.
func (e *Engine) CreateCampaign(ctx context.Context, c models.Campaign) (*models.Campaign, error) {
	if c.Attribution == "" || c.TopicLinks == nil {
		settings, err := e.d.Store.GetSettings(ctx, c.AccountID)
		if err != nil {
			log.Warn().Err(err).Int64("account", c.AccountID).Msg("[DB WARN] настройки недоступны, используем значения по умолчанию")
			settings = models.DefaultSettings(c.AccountID)
		}
		if c.Attribution == "" {
			c.Attribution = settings.Attribution
		}
		if c.TopicLinks == nil {
			c.TopicLinks = settings.TopicLinks
		}
	}
	if c.SessionID != 0 {
		sess, err := e.d.Store.GetSession(ctx, c.SessionID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && sess.AccountID != c.AccountID) {
			return nil, ErrSessionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	return e.d.Store.InsertCampaign(ctx, c)
}
