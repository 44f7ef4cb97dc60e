package campaign

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"adsender_go/models"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	groupA = Peer{Kind: PeerGroup, ID: 11, AccessHash: 1, Title: "A", Username: "group_a"}
	groupB = Peer{Kind: PeerGroup, ID: 12, AccessHash: 1, Title: "B"}
	groupC = Peer{Kind: PeerGroup, ID: 13, AccessHash: 1, Title: "C"}
	feed   = Peer{Kind: PeerChannel, ID: 20, AccessHash: 2, Title: "Feed", Username: "feed"}
)

const testInterval = 600

type loopEnv struct {
	platform *fakePlatform
	store    *fakeStore
	notifier *fakeNotifier
	clock    *fakeClock
	loop     *Loop
}

func newLoopEnv(c models.Campaign, dialogs ...Peer) *loopEnv {
	p := newFakePlatform(dialogs...)
	p.usernames["feed"] = feed
	p.messages[1] = &Content{Text: "buy now"}
	p.messages[2] = &Content{Text: "second", HasMedia: true}

	store := &fakeStore{settings: models.DefaultSettings(c.AccountID)}
	env := &loopEnv{
		platform: p,
		store:    store,
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)},
	}
	env.loop = NewLoop(c, SenderInfo{Index: 1, Phone: "+100"}, Deps{
		Platform: p,
		Store:    store,
		Recorder: NewRecorder(store, nil, "buy now"),
		Notifier: env.notifier,
		Location: time.UTC,
		Now:      env.clock.Now,
		Sleep:    env.clock.Sleep,
		Rand:     rand.New(rand.NewSource(1)),
	})
	return env
}

func baseCampaign(links ...string) models.Campaign {
	return models.Campaign{
		ID:          1,
		AccountID:   7,
		SessionID:   70,
		Links:       links,
		IntervalSec: testInterval,
		GroupMode:   models.GroupModeAll,
		Attribution: models.AttributionHidden,
	}
}

// stopOnInterval отменяет контекст на первой паузе между циклами.
func stopOnInterval(cancel context.CancelFunc) func(int, time.Duration) {
	return func(_ int, d time.Duration) {
		if d == testInterval*time.Second {
			cancel()
		}
	}
}

func TestLoopOneCycle(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1"), groupA, groupB, feed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	events, running, counters := env.store.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, []bool{true, false}, running)
	assert.Equal(t, 1, events[0].Position)
	assert.Equal(t, 2, events[1].Total)
	assert.Equal(t, "https://t.me/group_a/101", events[0].PostLink)
	assert.Equal(t, "https://t.me/c/12/102", events[1].PostLink)
	assert.Equal(t, "+100", events[0].SenderLabel)
	assert.Equal(t, int64(2), counters.TotalSent)
	assert.Equal(t, int64(2), counters.TemplateSent)
	assert.Equal(t, StateCanceled, env.loop.State())

	lines := env.notifier.all()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Total Group: 2")
	assert.Contains(t, lines[2], "| 2/2 | #1 | +100 | success |")

	// Пауза между целями в бесплатном диапазоне.
	for _, d := range env.clock.durations()[:2] {
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 45*time.Second)
	}
}

func TestLoopRateLimitedTargetIsRecordedAndNotRetried(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1"), groupA, groupB, groupC)
	env.platform.sendErrs[groupB.ID] = tgerr.New(420, "FLOOD_WAIT_30")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	calls := env.platform.calls()
	require.Len(t, calls, 3)
	events, _, counters := env.store.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, models.StatusSuccess, events[0].Status)
	assert.Equal(t, models.StatusFailed, events[1].Status)
	assert.Equal(t, "Flood wait 30s", events[1].FailReason)
	assert.Equal(t, models.Placeholder, events[1].PostLink)
	assert.Equal(t, models.StatusSuccess, events[2].Status)
	assert.Equal(t, int64(2), counters.TotalSent)
	assert.Contains(t, env.clock.durations(), 31*time.Second)
}

func TestLoopPremiumDowngrade(t *testing.T) {
	c := baseCampaign("https://t.me/feed/1", "https://t.me/feed/2")
	c.Attribution = models.AttributionTagged
	c.TopicLinks = []string{"https://t.me/c/11/5"}
	env := newLoopEnv(c, groupA)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	calls := env.platform.calls()
	require.Len(t, calls, 2)
	// Текст отправляется заново, медиа пересылается со скрытым автором; тем нет.
	assert.False(t, calls[0].Forward)
	assert.True(t, calls[1].Forward)
	assert.True(t, calls[1].DropAuthor)
	for _, call := range calls {
		assert.False(t, call.Target.IsTopic())
	}

	notices := 0
	for _, line := range env.notifier.all() {
		if strings.HasPrefix(line, "Premium is not active") {
			notices++
		}
	}
	assert.Equal(t, 1, notices)
}

func TestLoopPremiumTaggedWithTopics(t *testing.T) {
	c := baseCampaign("https://t.me/feed/1")
	c.Attribution = models.AttributionTagged
	c.TopicLinks = []string{"https://t.me/c/11/5"}
	env := newLoopEnv(c, groupA)
	env.store.premium = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	calls := env.platform.calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Forward)
	assert.False(t, calls[0].DropAuthor)
	assert.Equal(t, 5, calls[1].Target.TopicID)

	events, _, _ := env.store.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "https://t.me/group_a/5/102", events[1].PostLink)
	assert.Equal(t, "https://t.me/c/11/5", events[1].TargetLink)
}

func TestLoopRecordsUnreachableTopic(t *testing.T) {
	c := baseCampaign("https://t.me/feed/1")
	c.Attribution = models.AttributionTagged
	c.TopicLinks = []string{"https://t.me/c/999/3", "https://t.me/c/11/5"}
	env := newLoopEnv(c, groupA)
	env.store.premium = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	calls := env.platform.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 5, calls[1].Target.TopicID)

	events, _, _ := env.store.snapshot()
	require.Len(t, events, 3)
	missing := events[1]
	assert.Equal(t, models.StatusFailed, missing.Status)
	assert.Equal(t, ReasonTopicGroupUnreachable, missing.FailReason)
	assert.Equal(t, "https://t.me/c/999/3", missing.TargetLink)
	assert.Equal(t, int64(-100999), missing.TargetID)
	assert.Equal(t, 2, missing.Position)
	assert.Equal(t, 3, missing.Total)
	assert.Equal(t, models.StatusSuccess, events[2].Status)

	lines := env.notifier.all()
	assert.Contains(t, lines[0], "Total Group: 3")
	found := false
	for _, line := range lines {
		if strings.Contains(line, "| 2/3 |") && strings.Contains(line, ReasonTopicGroupUnreachable) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoopOnlyUnreachableTopicsIsNoTargets(t *testing.T) {
	c := baseCampaign("https://t.me/feed/1")
	c.GroupMode = models.GroupModeSubset
	c.SelectedGroups = []int64{999}
	c.Attribution = models.AttributionTagged
	c.TopicLinks = []string{"https://t.me/c/999/3"}
	env := newLoopEnv(c, groupA)
	env.store.premium = true

	err := env.loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrNoTargets))
}

func TestLoopResolvesSourceOncePerContainer(t *testing.T) {
	other := Peer{Kind: PeerChannel, ID: 21, AccessHash: 2, Title: "Other", Username: "other"}
	env := newLoopEnv(baseCampaign("https://t.me/feed/1", "https://t.me/feed/2", "https://t.me/other/3"), groupA)
	env.platform.usernames["other"] = other
	env.platform.messages[3] = &Content{Text: "third"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	intervals := 0
	env.clock.onSleep = func(_ int, d time.Duration) {
		if d == testInterval*time.Second {
			intervals++
			if intervals == 2 {
				cancel()
			}
		}
	}

	require.NoError(t, env.loop.Run(ctx))

	// Первое обращение выполняет проверка источника при запуске, дальше по два на цикл.
	assert.Equal(t, []string{"feed", "feed", "other", "feed", "other"}, env.platform.resolves())
	events, _, _ := env.store.snapshot()
	assert.Len(t, events, 6)
}

func TestLoopFatalFirstLink(t *testing.T) {
	env := newLoopEnv(baseCampaign("not a link", "https://t.me/feed/1"), groupA)
	err := env.loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrLinkUnparsable))

	_, running, _ := env.store.snapshot()
	assert.NotContains(t, running, true)
	assert.Empty(t, env.platform.calls())
	assert.Equal(t, StateTerminated, env.loop.State())
}

func TestLoopFatalUnreachableSource(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/ghost/1"), groupA)
	err := env.loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrSourceUnreachable))
	assert.True(t, IsFatal(err))
}

func TestLoopNoTargets(t *testing.T) {
	c := baseCampaign("https://t.me/feed/1")
	c.GroupMode = models.GroupModeSubset
	c.SelectedGroups = []int64{999}
	env := newLoopEnv(c, groupA)
	err := env.loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrNoTargets))
}

func TestLoopSkipsUnparsableLaterLink(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1", "garbage", "https://t.me/feed/404"), groupA)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = stopOnInterval(cancel)

	require.NoError(t, env.loop.Run(ctx))

	events, _, _ := env.store.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusSuccess, events[0].Status)
	// Удалённый пост фиксируется как неудачная попытка без обращения к цели.
	assert.Equal(t, "Message not found", events[1].FailReason)
	assert.Len(t, env.platform.calls(), 1)

	skipped := false
	for _, line := range env.notifier.all() {
		if strings.HasPrefix(line, "skipped garbage") {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestLoopWaitsForWindow(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1"), groupA)
	env.store.settings.AutoMode = models.AutoModeWindow{Enabled: true, StartMinute: 13 * 60, EndMinute: 14 * 60}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = func(n int, d time.Duration) {
		if n >= 3 {
			cancel()
		}
	}

	require.NoError(t, env.loop.Run(ctx))

	durations := env.clock.durations()
	require.GreaterOrEqual(t, len(durations), 2)
	assert.Equal(t, time.Hour, durations[0])
	events, _, _ := env.store.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, 13, events[0].Time.Hour())
}

func TestLoopMisconfiguredWindowBacksOff(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1"), groupA)
	env.store.settings.AutoMode = models.AutoModeWindow{Enabled: true, StartMinute: 60, EndMinute: 60}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.clock.onSleep = func(n int, _ time.Duration) {
		if n == 3 {
			cancel()
		}
	}

	require.NoError(t, env.loop.Run(ctx))
	assert.Equal(t, []time.Duration{MisconfiguredBackoff, MisconfiguredBackoff, MisconfiguredBackoff}, env.clock.durations())
	assert.Empty(t, env.platform.calls())
}

func TestLoopStopDuringLongSleep(t *testing.T) {
	p := newFakePlatform(groupA)
	p.usernames["feed"] = feed
	p.messages[1] = &Content{Text: "x"}
	store := &fakeStore{settings: models.DefaultSettings(7)}
	sleeping := make(chan struct{}, 1)

	c := baseCampaign("https://t.me/feed/1")
	loop := NewLoop(c, SenderInfo{}, Deps{
		Platform: p,
		Store:    store,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if d < testInterval*time.Second {
				return ctx.Err()
			}
			sleeping <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case <-sleeping:
	case <-time.After(5 * time.Second):
		t.Fatal("цикл не дошёл до паузы")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("цикл не завершился после отмены")
	}
	assert.Len(t, p.calls(), 1)
	_, running, _ := store.snapshot()
	assert.Equal(t, false, running[len(running)-1])
	assert.Equal(t, StateCanceled, loop.State())
}

func TestLoopClearsRunningFlagOnShutdown(t *testing.T) {
	env := newLoopEnv(baseCampaign("https://t.me/feed/1"), groupA)
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	env.clock.onSleep = func(_ int, d time.Duration) {
		if d == testInterval*time.Second {
			cancel(ErrShutdown)
		}
	}

	require.NoError(t, env.loop.Run(ctx))
	_, running, _ := env.store.snapshot()
	assert.Equal(t, []bool{true, false}, running)
	assert.Equal(t, StateCanceled, env.loop.State())
}
