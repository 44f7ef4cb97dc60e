package campaign

import (
	"context"
	"fmt"
	"time"

	"adsender_go/models"

	"github.com/rs/zerolog/log"
)

// Resolver определяет места доставки и источники постов для одной сессии.
type Resolver struct {
	platform  Platform
	cache     PeerCache
	sessionID int64
	ttl       time.Duration
}

func NewResolver(p Platform, cache PeerCache, sessionID int64, ttl time.Duration) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{platform: p, cache: cache, sessionID: sessionID, ttl: ttl}
}

// Peers возвращает диалоги сессии, используя кэш.
func (r *Resolver) Peers(ctx context.Context) ([]Peer, error) {
	if peers, ok := r.cache.Get(ctx, r.sessionID); ok {
		return peers, nil
	}
	peers, err := r.platform.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, r.sessionID, peers, r.ttl)
	return peers, nil
}

// Groups возвращает группы для рассылки. В режиме subset остаются только
// сохранённые группы; устаревшие ID молча отбрасываются.
func (r *Resolver) Groups(ctx context.Context, mode models.GroupMode, selected []int64) ([]Target, error) {
	peers, err := r.Peers(ctx)
	if err != nil {
		return nil, err
	}
	var out []Target
	for _, p := range peers {
		if !p.IsGroup() {
			continue
		}
		if mode == models.GroupModeSubset && !selectedContains(selected, p) {
			continue
		}
		out = append(out, Target{Peer: p, Link: ContainerLink(p)})
	}
	return out, nil
}

func selectedContains(ids []int64, p Peer) bool {
	for _, id := range ids {
		if p.Matches(id) {
			return true
		}
	}
	return false
}

// Source находит чат, в котором лежит пост по ссылке.
func (r *Resolver) Source(ctx context.Context, l Link) (Peer, error) {
	if !l.Internal() {
		peer, err := r.platform.ResolveUsername(ctx, l.Username)
		if err != nil {
			return Peer{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
		}
		return peer, nil
	}
	if peer, ok := r.findInternal(ctx, l.ChannelID()); ok {
		return peer, nil
	}
	// Чат мог появиться после заполнения кэша.
	r.cache.Invalidate(ctx, r.sessionID)
	if peer, ok := r.findInternal(ctx, l.ChannelID()); ok {
		return peer, nil
	}
	return Peer{}, fmt.Errorf("%w: %s", ErrSourceUnreachable, l.Raw)
}

func (r *Resolver) findInternal(ctx context.Context, channelID int64) (Peer, bool) {
	peers, err := r.Peers(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("session", r.sessionID).Msg("[RESOLVER] не удалось получить диалоги")
		return Peer{}, false
	}
	for _, p := range peers {
		if p.Kind != PeerUser && !p.Basic && p.ID == channelID {
			return p, true
		}
	}
	return Peer{}, false
}

// Причины отказа для тем, которые не удалось подготовить к отправке.
const (
	ReasonTopicLinkInvalid      = "Unrecognized topic link"
	ReasonTopicGroupUnreachable = "Topic group unreachable"
)

// Topics разбирает ссылки на темы форума. Нераспознанные и недоступные темы
// остаются в списке с причиной отказа.
func (r *Resolver) Topics(ctx context.Context, links []string) []Target {
	var out []Target
	for _, raw := range links {
		l, err := ParseLink(raw)
		if err != nil {
			log.Warn().Str("link", raw).Msg("[RESOLVER] ссылка на тему не распознана")
			out = append(out, Target{Peer: Peer{Kind: PeerGroup, Title: raw}, Link: raw, Unresolved: ReasonTopicLinkInvalid})
			continue
		}
		peer, err := r.Source(ctx, l)
		if err != nil {
			log.Warn().Err(err).Str("link", raw).Msg("[RESOLVER] группа темы недоступна")
			out = append(out, Target{Peer: unresolvedPeer(l), TopicID: l.ItemID, Link: l.Raw, Unresolved: ReasonTopicGroupUnreachable})
			continue
		}
		out = append(out, Target{Peer: peer, TopicID: l.ItemID, Link: l.Raw})
	}
	return out
}

// unresolvedPeer описывает группу темы по данным самой ссылки.
func unresolvedPeer(l Link) Peer {
	if l.Internal() {
		return Peer{Kind: PeerGroup, ID: l.ChannelID()}
	}
	return Peer{Kind: PeerGroup, Username: l.Username}
}
