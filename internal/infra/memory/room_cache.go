package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// RoomCache caches room snapshots with TTL to avoid repeated store hits.
type RoomCache struct {
	loader app.RoomLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedRoom
}

type cachedRoom struct {
	snap      domain.RoomSnapshot
	expiresAt time.Time
}

func NewRoomCache(loader app.RoomLoader, ttl time.Duration) *RoomCache {
	return &RoomCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedRoom),
	}
}

func (r *RoomCache) GetRoom(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	if snap, ok := r.lookup(code); ok {
		return snap, nil
	}

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		if snap, ok := r.lookup(code); ok {
			return snap, nil
		}

		snap, err := r.loader.LoadRoom(ctx, code)
		if err != nil {
			return domain.RoomSnapshot{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[code] = cachedRoom{snap: snap, expiresAt: r.clock().Add(ttl)}
			r.mu.Unlock()
		}
		return snap, nil
	})
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return result.(domain.RoomSnapshot), nil
}

func (r *RoomCache) Invalidate(_ context.Context, code string) {
	r.mu.Lock()
	delete(r.cache, code)
	r.mu.Unlock()
}

func (r *RoomCache) lookup(code string) (domain.RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[code]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.RoomSnapshot{}, false
	}
	return entry.snap, true
}

func (r *RoomCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
