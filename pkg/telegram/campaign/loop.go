package campaign

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"adsender_go/internal/common"
	"adsender_go/models"
	"adsender_go/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// State: текущая фаза цикла рассылки.
type State int32

const (
	StateIdle State = iota
	StateAnnouncing
	StateSending
	StateSleeping
	StateCanceled
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAnnouncing:
		return "announcing"
	case StateSending:
		return "sending"
	case StateSleeping:
		return "sleeping"
	case StateCanceled:
		return "canceled"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// Deps: зависимости цикла. Now, Sleep и Rand подменяются в тестах.
type Deps struct {
	Platform Platform
	Cache    PeerCache
	CacheTTL time.Duration
	Store    Store
	Recorder *Recorder
	Notifier Notifier
	Location *time.Location
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	Rand     *rand.Rand
}

// Loop: бесконечная рассылка одной кампании от имени одной сессии.
type Loop struct {
	campaign models.Campaign
	info     SenderInfo
	platform Platform
	resolver *Resolver
	sender   *Sender
	store    Store
	recorder *Recorder
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	rnd      *rand.Rand
	state    atomic.Int32
}

func NewLoop(c models.Campaign, info SenderInfo, d Deps) *Loop {
	l := &Loop{
		campaign: c,
		info:     info,
		platform: d.Platform,
		resolver: NewResolver(d.Platform, d.Cache, c.SessionID, d.CacheTTL),
		sender:   NewSender(d.Platform),
		store:    d.Store,
		recorder: d.Recorder,
		notifier: d.Notifier,
		loc:      d.Location,
		now:      d.Now,
		sleep:    d.Sleep,
		rnd:      d.Rand,
	}
	if l.recorder == nil {
		l.recorder = NewRecorder(d.Store, nil, "")
	}
	if l.notifier == nil {
		l.notifier = NopNotifier{}
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.sleep == nil {
		l.sleep = common.Sleep
	}
	if l.rnd == nil {
		l.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return l
}

// State возвращает текущую фазу цикла.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// Run выполняет кампанию до отмены контекста или фатальной ошибки.
// Отмена не считается ошибкой. При выходе флаг running всегда сбрасывается.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.setState(StateIdle)
	defer func() {
		if serr := l.store.SetCampaignRunning(context.WithoutCancel(ctx), l.campaign.ID, false); serr != nil {
			log.Error().Err(serr).Int64("campaign", l.campaign.ID).Msg("[DB ERROR] не удалось сбросить флаг running")
		}
		if cause := context.Cause(ctx); cause != nil {
			log.Info().Int64("campaign", l.campaign.ID).AnErr("cause", cause).Msg("[DISPATCH] кампания остановлена")
		}
		if err == nil && ctx.Err() != nil {
			l.setState(StateCanceled)
		} else {
			l.setState(StateTerminated)
		}
	}()

	if len(l.campaign.Links) == 0 {
		return models.ErrNoLinks
	}
	tier := l.tier(ctx)

	first, err := ParseLink(l.campaign.Links[0])
	if err != nil {
		return err
	}
	if _, err := l.resolver.Source(ctx, first); err != nil {
		return err
	}
	targets, err := l.targets(ctx, tier)
	if err != nil {
		return err
	}
	if countDeliverable(targets) == 0 {
		return ErrNoTargets
	}

	if err := l.store.SetCampaignRunning(ctx, l.campaign.ID, true); err != nil {
		log.Error().Err(err).Int64("campaign", l.campaign.ID).Msg("[DB ERROR] не удалось установить флаг running")
	}
	l.setState(StateAnnouncing)
	log.Info().Int64("campaign", l.campaign.ID).Int64("session", l.campaign.SessionID).
		Int("targets", len(targets)).Msg("[DISPATCH] кампания запущена")
	if tier.Downgraded {
		l.notifier.Notify(ctx, l.campaign.AccountID, FormatDowngradeNotice())
	}
	l.notifier.Notify(ctx, l.campaign.AccountID,
		FormatStartLine(l.localNow(), first.Raw, len(targets), l.campaign.Interval()))

	for cycle := 0; ; cycle++ {
		if err := l.waitWindow(ctx); err != nil {
			return nil
		}
		if cycle > 0 {
			fresh, err := l.targets(ctx, tier)
			switch {
			case err != nil:
				log.Warn().Err(err).Int64("campaign", l.campaign.ID).Msg("[DISPATCH] не удалось обновить цели, используем прежние")
			case countDeliverable(fresh) == 0:
				log.Warn().Int64("campaign", l.campaign.ID).Msg("[DISPATCH] список целей пуст, используем прежний")
			default:
				targets = fresh
			}
		}

		l.setState(StateSending)
		l.cycle(ctx, tier, targets)
		if ctx.Err() != nil {
			return nil
		}
		metrics.RecordCycle()

		l.setState(StateSleeping)
		d := SleepDuration(l.window(ctx), l.localNow(), l.campaign.Interval())
		log.Debug().Int64("campaign", l.campaign.ID).Dur("sleep", d).Msg("[DISPATCH] цикл завершён")
		if err := l.sleep(ctx, d); err != nil {
			return nil
		}
	}
}

func (l *Loop) localNow() time.Time { return l.now().In(l.loc) }

// tier читает подписку и настройки один раз на запуск.
func (l *Loop) tier(ctx context.Context) Tier {
	premium, err := l.store.IsPremiumActive(ctx, l.campaign.AccountID)
	if err != nil {
		log.Warn().Err(err).Int64("account", l.campaign.AccountID).Msg("[DB ERROR] статус подписки недоступен, считаем бесплатным")
		premium = false
	}
	settings := l.settings(ctx)
	return ResolveTier(premium, l.campaign.Attribution, l.campaign.TopicLinks, settings.TargetDelay)
}

func (l *Loop) settings(ctx context.Context) models.AccountSettings {
	s, err := l.store.GetSettings(ctx, l.campaign.AccountID)
	if err != nil {
		log.Warn().Err(err).Int64("account", l.campaign.AccountID).Msg("[DB ERROR] настройки недоступны, используем значения по умолчанию")
		return models.DefaultSettings(l.campaign.AccountID)
	}
	return s
}

func (l *Loop) window(ctx context.Context) models.AutoModeWindow {
	return l.settings(ctx).AutoMode
}

func (l *Loop) targets(ctx context.Context, tier Tier) ([]Target, error) {
	groups, err := l.resolver.Groups(ctx, l.campaign.GroupMode, l.campaign.SelectedGroups)
	if err != nil {
		return nil, err
	}
	return append(groups, l.resolver.Topics(ctx, tier.TopicLinks)...), nil
}

// waitWindow ждёт, пока окно авто-режима не откроется. Настройки перечитываются каждый раз.
func (l *Loop) waitWindow(ctx context.Context) error {
	for {
		w := l.window(ctx)
		now := l.localNow()
		if Allowed(w, MinuteOfDay(now)) {
			return nil
		}
		d := WaitDuration(w, now)
		l.setState(StateSleeping)
		log.Info().Int64("campaign", l.campaign.ID).Str("window", w.String()).Dur("wait", d).
			Msg("[DISPATCH] вне окна авто-режима, ожидание")
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// cycle проходит все ссылки кампании по порядку.
func (l *Loop) cycle(ctx context.Context, tier Tier, targets []Target) {
	var (
		src     Peer
		srcLink Link
		haveSrc bool
	)
	for _, raw := range l.campaign.Links {
		if ctx.Err() != nil {
			return
		}
		link, err := ParseLink(raw)
		if err != nil {
			log.Warn().Str("link", raw).Msg("[DISPATCH] ссылка не распознана, пропуск")
			l.notifier.Notify(ctx, l.campaign.AccountID, FormatSkipNotice(raw, "unrecognized link"))
			continue
		}
		if !haveSrc || !link.SameContainer(srcLink) {
			src, err = l.resolver.Source(ctx, link)
			if err != nil {
				haveSrc = false
				log.Warn().Err(err).Str("link", raw).Msg("[DISPATCH] источник недоступен")
				l.failAll(ctx, raw, targets, "Source unreachable")
				continue
			}
			srcLink, haveSrc = link, true
		}

		content, err := l.platform.Message(ctx, src, link.ItemID)
		if err != nil {
			res := Classify(err)
			if res.Kind == ResultRateLimited {
				metrics.RecordRateLimited(int(res.Wait / time.Second))
				if l.sleep(ctx, res.Wait) != nil {
					return
				}
			}
			log.Warn().Err(err).Str("link", raw).Msg("[DISPATCH] не удалось загрузить пост")
			l.failAll(ctx, raw, targets, res.Reason)
			continue
		}
		content.Link = link
		if !l.sendAll(ctx, tier, content, targets) {
			return
		}
	}
}

// sendAll рассылает один пост по всем целям. Возвращает false, если контекст отменён.
func (l *Loop) sendAll(ctx context.Context, tier Tier, content *Content, targets []Target) bool {
	for i, t := range targets {
		if ctx.Err() != nil {
			return false
		}
		if !t.Deliverable() {
			l.record(ctx, content.Link.Raw, t, i+1, len(targets), Result{Kind: ResultSkip, Reason: t.Unresolved}, "")
			continue
		}
		res := l.sender.Send(ctx, content, t, tier.Attribution)
		if res.Kind == ResultRateLimited {
			metrics.RecordRateLimited(int(res.Wait / time.Second))
			log.Warn().Int64("campaign", l.campaign.ID).Str("target", t.Peer.DisplayName()).Dur("wait", res.Wait).
				Msg("[DISPATCH] ограничение частоты, ожидание")
			// Отмена во время ожидания не отменяет запись попытки.
			_ = l.sleep(ctx, res.Wait)
		}
		l.record(ctx, content.Link.Raw, t, i+1, len(targets), res, content.Text)
		if ctx.Err() != nil {
			return false
		}
		delay := common.RandomDelay(l.rnd, [2]int{tier.Delay.Min, tier.Delay.Max})
		if err := l.sleep(ctx, delay); err != nil {
			return false
		}
	}
	return true
}

// failAll записывает неудачную попытку для каждой цели, когда пост недоступен.
// Для ненайденной темы сохраняется её собственная причина.
func (l *Loop) failAll(ctx context.Context, raw string, targets []Target, reason string) {
	for i, t := range targets {
		r := reason
		if !t.Deliverable() {
			r = t.Unresolved
		}
		l.record(ctx, raw, t, i+1, len(targets), Result{Kind: ResultSkip, Reason: r}, "")
	}
}

func (l *Loop) record(ctx context.Context, contentLink string, t Target, pos, total int, res Result, text string) {
	cctx := context.WithoutCancel(ctx)
	ev := models.SendEvent{
		Time:        l.localNow(),
		AccountID:   l.campaign.AccountID,
		SessionID:   l.campaign.SessionID,
		SenderLabel: l.info.label(),
		TargetID:    t.ID(),
		TargetName:  t.Peer.DisplayName(),
		TargetLink:  t.ContainerLink(),
		ContentLink: contentLink,
		PostLink:    models.Placeholder,
		Status:      models.StatusFailed,
		FailReason:  models.Placeholder,
		Position:    pos,
		Total:       total,
	}
	if res.Success() {
		ev.Status = models.StatusSuccess
		if res.Link != "" {
			ev.PostLink = res.Link
		}
	} else if res.Reason != "" {
		ev.FailReason = res.Reason
	}
	sent := l.recorder.Record(cctx, ev, t, text)
	l.notifier.Notify(cctx, l.campaign.AccountID, FormatAttemptLine(ev, l.info, sent))
}

// IsFatal сообщает, что ошибка завершила кампанию до первой попытки.
func IsFatal(err error) bool {
	return errors.Is(err, ErrLinkUnparsable) || errors.Is(err, ErrSourceUnreachable) || errors.Is(err, ErrNoTargets)
}
