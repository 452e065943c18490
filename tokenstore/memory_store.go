package tokenstore

import (
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the pair in process memory only. Used by tests and by
// hosts that deliberately do not want tokens to survive a restart.
type MemoryStore struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	lock    sync.RWMutex
	access  slot
	refresh slot
}

// MemoryStoreOption modifies a MemoryStore at construction.
type MemoryStoreOption func(*MemoryStore)

// WithTTLs overrides the advisory validity windows.
func WithTTLs(accessTTL, refreshTTL time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.accessTTL = accessTTL
		ms.refreshTTL = refreshTTL
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
	}
	for _, opt := range options {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStore) Set(pair Pair) {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.access = accessSlot(pair.AccessToken, ms.accessTTL)
	ms.refresh = refreshSlot(pair.RefreshToken, ms.refreshTTL)
}

func (ms *MemoryStore) Get() (Pair, bool) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	now := NowTimeFunc()
	var pair Pair
	if ms.access.valid(now) {
		pair.AccessToken = ms.access.Token
	}
	if ms.refresh.valid(now) {
		pair.RefreshToken = ms.refresh.Token
	}
	return pair, pair.AccessToken != "" || pair.RefreshToken != ""
}

func (ms *MemoryStore) Clear() {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.access = slot{}
	ms.refresh = slot{}
}
