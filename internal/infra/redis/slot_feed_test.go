package redis

import (
	"context"
	"testing"
	"time"

	"giveaway-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSlotFeedRoundTripsThroughPubSub(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	publisher := NewSlotFeed(newClient(mr))
	subscriber := NewSlotFeed(newClient(mr))

	ch, cancel, err := subscriber.Subscribe(ctx, "ABC234")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	publisher.Publish(ctx, domain.SlotUpdate{RoomCode: "ABC234", Completed: 1, MaxParticipants: 2, SlotsRemaining: 1})

	select {
	case update := <-ch:
		if update.Completed != 1 || update.SlotsRemaining != 1 {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for slot update")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestOfferKeepsNewestUpdate(t *testing.T) {
	out := make(chan domain.SlotUpdate, 1)
	offer(out, domain.SlotUpdate{RoomCode: "ROOM22", Completed: 1})
	offer(out, domain.SlotUpdate{RoomCode: "ROOM22", Completed: 2})

	got := <-out
	if got.Completed != 2 {
		t.Fatalf("expected newest update, got %+v", got)
	}
	select {
	case extra := <-out:
		t.Fatalf("unexpected extra update %+v", extra)
	default:
	}
}
