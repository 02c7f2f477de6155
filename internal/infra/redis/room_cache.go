package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RoomCache caches room snapshots in Redis and falls back to a loader on miss.
// Snapshots are stored as JSON under room:{code}:snapshot so every instance
// shares them; admin writes drop the key.
type RoomCache struct {
	client *redis.Client
	loader app.RoomLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewRoomCache(client *redis.Client, loader app.RoomLoader, ttl time.Duration) *RoomCache {
	return &RoomCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RoomCache) GetRoom(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	if snap, ok := r.cached(ctx, code); ok {
		return snap, nil
	}

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if snap, ok := r.cached(ctx, code); ok {
			return snap, nil
		}

		snap, err := r.loader.LoadRoom(ctx, code)
		if err != nil {
			return domain.RoomSnapshot{}, err
		}

		if raw, err := json.Marshal(snap); err == nil {
			if err := r.client.Set(ctx, snapshotKey(code), raw, r.ttlWithJitter()).Err(); err != nil {
				log.Warn().Err(err).Str("room", code).Msg("cache room snapshot")
			}
		}
		return snap, nil
	})
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return result.(domain.RoomSnapshot), nil
}

func (r *RoomCache) Invalidate(ctx context.Context, code string) {
	if err := r.client.Del(ctx, snapshotKey(code)).Err(); err != nil {
		log.Warn().Err(err).Str("room", code).Msg("invalidate room snapshot")
	}
}

func (r *RoomCache) cached(ctx context.Context, code string) (domain.RoomSnapshot, bool) {
	raw, err := r.client.Get(ctx, snapshotKey(code)).Bytes()
	if err != nil {
		return domain.RoomSnapshot{}, false
	}
	var snap domain.RoomSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.RoomSnapshot{}, false
	}
	return snap, true
}

func snapshotKey(code string) string {
	return "room:" + code + ":snapshot"
}

func (r *RoomCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
