package redis

import (
	"context"
	"encoding/json"
	"sync"

	"giveaway-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SlotFeed fans slot updates out through Redis pub/sub so subscribers on any
// instance see completions committed by another.
type SlotFeed struct {
	client *redis.Client
}

func NewSlotFeed(client *redis.Client) *SlotFeed {
	return &SlotFeed{client: client}
}

func (f *SlotFeed) Publish(ctx context.Context, update domain.SlotUpdate) {
	raw, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := f.client.Publish(ctx, channel(update.RoomCode), raw).Err(); err != nil {
		log.Warn().Err(err).Str("room", update.RoomCode).Msg("publish slot update")
	}
}

func (f *SlotFeed) Subscribe(ctx context.Context, roomCode string) (<-chan domain.SlotUpdate, func(), error) {
	pubsub := f.client.Subscribe(ctx, channel(roomCode))
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.SlotUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var update domain.SlotUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					log.Warn().Err(err).Str("room", roomCode).Msg("decode slot update")
					continue
				}
				offer(out, update)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

func channel(roomCode string) string {
	return "room:" + roomCode + ":slots"
}

// offer keeps only the newest update when out is full.
func offer(out chan domain.SlotUpdate, update domain.SlotUpdate) {
	select {
	case out <- update:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- update:
		default:
		}
	}
}
