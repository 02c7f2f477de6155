package memory

import (
	"context"
	"testing"

	"giveaway-quiz-service/internal/domain"
)

func TestSlotFeedDeliversPerRoom(t *testing.T) {
	feed := NewSlotFeed()
	ch, cancel, err := feed.Subscribe(context.Background(), "AAA222")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	feed.Publish(context.Background(), domain.SlotUpdate{RoomCode: "BBB333", Completed: 9})
	feed.Publish(context.Background(), domain.SlotUpdate{RoomCode: "AAA222", Completed: 1})

	update := <-ch
	if update.RoomCode != "AAA222" || update.Completed != 1 {
		t.Fatalf("unexpected update %+v", update)
	}
}

func TestSlotFeedKeepsLatestWhenSlow(t *testing.T) {
	feed := NewSlotFeed()
	ch, cancel, _ := feed.Subscribe(context.Background(), "AAA222")
	defer cancel()

	for i := 1; i <= 20; i++ {
		feed.Publish(context.Background(), domain.SlotUpdate{RoomCode: "AAA222", Completed: i})
	}
	var last domain.SlotUpdate
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Completed != 20 {
		t.Fatalf("expected latest update retained, got %d", last.Completed)
	}
}

func TestSlotFeedCancelClosesChannel(t *testing.T) {
	feed := NewSlotFeed()
	ch, cancel, _ := feed.Subscribe(context.Background(), "AAA222")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	feed.Publish(context.Background(), domain.SlotUpdate{RoomCode: "AAA222"})
}
