package campaign

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL: сколько живёт список диалогов сессии.
const DefaultCacheTTL = 10 * time.Minute

// PeerCache хранит результат перечисления диалогов по ID сессии.
type PeerCache interface {
	Get(ctx context.Context, sessionID int64) ([]Peer, bool)
	Set(ctx context.Context, sessionID int64, peers []Peer, ttl time.Duration)
	Invalidate(ctx context.Context, sessionID int64)
}

type cacheEntry struct {
	peers   []Peer
	expires time.Time
}

// MemoryCache: кэш в памяти процесса.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[int64]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[int64]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, sessionID int64) ([]Peer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionID]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.peers, true
}

func (c *MemoryCache) Set(_ context.Context, sessionID int64, peers []Peer, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = cacheEntry{peers: peers, expires: c.now().Add(ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Purge удаляет просроченные записи и возвращает их количество.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}
