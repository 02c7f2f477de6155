package memory

import (
	"context"
	"sync"

	"giveaway-quiz-service/internal/domain"
)

// SlotFeed is an in-process fan-out of slot updates keyed by room code.
type SlotFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.SlotUpdate]struct{}
}

func NewSlotFeed() *SlotFeed {
	return &SlotFeed{subscribers: make(map[string]map[chan domain.SlotUpdate]struct{})}
}

func (f *SlotFeed) Publish(_ context.Context, update domain.SlotUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[update.RoomCode] {
		offer(ch, update)
	}
}

func (f *SlotFeed) Subscribe(_ context.Context, roomCode string) (<-chan domain.SlotUpdate, func(), error) {
	ch := make(chan domain.SlotUpdate, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[roomCode]
	if !ok {
		subs = make(map[chan domain.SlotUpdate]struct{})
		f.subscribers[roomCode] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[roomCode]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, roomCode)
		}
	}
	return ch, cancel, nil
}

// offer delivers update without blocking; when ch is full the oldest pending
// update is dropped since only the latest count matters.
func offer(ch chan domain.SlotUpdate, update domain.SlotUpdate) {
	select {
	case ch <- update:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- update:
		default:
		}
	}
}
