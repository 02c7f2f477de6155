package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"giveaway-quiz-service/internal/infra/memory"
	"giveaway-quiz-service/internal/infra/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) storeWithLoader
}

type storeWithLoader interface {
	app.Store
	app.RoomLoader
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T) storeWithLoader { return memory.NewStore() }},
		{name: "sqlite", open: func(t *testing.T) storeWithLoader {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "quiz.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

type fixture struct {
	admission *app.AdmissionService
	registry  *app.RegistryService
	store     storeWithLoader
	feed      *memory.SlotFeed
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, b backend) fixture {
	t.Helper()
	store := b.open(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	cache := memory.NewRoomCache(store, time.Minute)
	feed := memory.NewSlotFeed()
	return fixture{
		admission: app.NewAdmissionService(store, cache, store, feed, clock),
		registry:  app.NewRegistryService(store, store, cache, nil, clock),
		store:     store,
		feed:      feed,
		clock:     clock,
	}
}

func (f fixture) createRoom(t *testing.T, capacity int, active bool) domain.Room {
	t.Helper()
	snap, err := f.registry.CreateRoom(context.Background(), app.RoomInput{
		Title:           "Giveaway",
		MaxParticipants: capacity,
		RedirectLink:    "https://example.com/prize",
		Active:          &active,
		Questions:       []app.QuestionInput{{Text: "2+2", CorrectAnswer: "4"}},
	})
	require.NoError(t, err)
	return snap.Room
}

func forEachBackend(t *testing.T, fn func(t *testing.T, f fixture)) {
	for _, b := range backends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			fn(t, newFixture(t, b))
		})
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 2, true)

		for i := 0; i < 2; i++ {
			outcome, err := f.admission.JoinRoom(ctx, room.Code, "session-a", "visitor-a")
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeAccepted, outcome)
		}
		stats, err := f.store.RoomStats(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
	})
}

func TestJoinUnknownOrInactiveRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		inactive := f.createRoom(t, 2, false)

		outcome, err := f.admission.JoinRoom(ctx, "NOPE22", "s1", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNotFound, outcome)

		outcome, err = f.admission.JoinRoom(ctx, inactive.Code, "s1", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNotFound, outcome)

		_, err = f.admission.JoinRoom(ctx, inactive.Code, " ", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCompleteIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 1, true)
		_, err := f.admission.JoinRoom(ctx, room.Code, "s1", "")
		require.NoError(t, err)

		first, err := f.admission.CompleteQuiz(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeAccepted, first.Outcome)
		assert.Equal(t, "https://example.com/prize", first.Room.RedirectLink)

		p, err := f.store.FindParticipant(ctx, "s1")
		require.NoError(t, err)
		completedAt := *p.CompletedAt

		f.clock.Advance(time.Minute)
		second, err := f.admission.CompleteQuiz(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, second.Outcome)
		assert.Equal(t, room.RedirectLink, second.Room.RedirectLink)

		p, err = f.store.FindParticipant(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, p.CompletedAt.Equal(completedAt), "completion timestamp must not move")

		stats, err := f.store.RoomStats(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Completed)
	})
}

func TestCompleteUnknownSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		result, err := f.admission.CompleteQuiz(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNotFound, result.Outcome)
	})
}

func TestJoinRejectedOnceCompletionsReachCapacity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 1, true)

		// late joiner that never completes does not block the room
		_, err := f.admission.JoinRoom(ctx, room.Code, "idle", "")
		require.NoError(t, err)
		_, err = f.admission.JoinRoom(ctx, room.Code, "winner", "")
		require.NoError(t, err)

		outcome, err := f.admission.JoinRoom(ctx, room.Code, "another", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, outcome, "joins do not reserve slots")

		result, err := f.admission.CompleteQuiz(ctx, "winner")
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeAccepted, result.Outcome)

		outcome, err = f.admission.JoinRoom(ctx, room.Code, "latecomer", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFull, outcome)

		// already registered sessions still get their idempotent success
		outcome, err = f.admission.JoinRoom(ctx, room.Code, "idle", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, outcome)

		result, err = f.admission.CompleteQuiz(ctx, "idle")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFull, result.Outcome)

		p, err := f.store.FindParticipant(ctx, "idle")
		require.NoError(t, err)
		assert.False(t, p.Completed(), "a full completion must not mark the participant")
	})
}

func TestConcurrentCompletionsNeverExceedCapacity(t *testing.T) {
	cases := []struct{ capacity, contenders int }{
		{capacity: 1, contenders: 2},
		{capacity: 1, contenders: 16},
		{capacity: 3, contenders: 25},
	}
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		for _, tc := range cases {
			room := f.createRoom(t, tc.capacity, true)
			sessions := make([]string, tc.contenders)
			for i := range sessions {
				sessions[i] = fmt.Sprintf("%s-%d-%d", room.Code, tc.capacity, i)
				outcome, err := f.admission.JoinRoom(ctx, room.Code, sessions[i], "")
				require.NoError(t, err)
				require.Equal(t, domain.OutcomeAccepted, outcome)
			}

			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				wins, misses int
			)
			start := make(chan struct{})
			for _, session := range sessions {
				wg.Add(1)
				go func(session string) {
					defer wg.Done()
					<-start
					result, err := f.admission.CompleteQuiz(ctx, session)
					mu.Lock()
					defer mu.Unlock()
					if !assert.NoError(t, err) {
						return
					}
					switch result.Outcome {
					case domain.OutcomeAccepted:
						wins++
					case domain.OutcomeFull:
						misses++
					}
				}(session)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, tc.capacity, wins)
			assert.Equal(t, tc.contenders-tc.capacity, misses)
			stats, err := f.store.RoomStats(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.capacity, stats.Completed)
		}
	})
}

func TestEndToEndTwoWinnerRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 2, true)

		status, err := f.admission.RoomStatus(ctx, room.Code)
		require.NoError(t, err)
		require.True(t, status.Available)
		require.Len(t, status.Questions, 1)
		assert.True(t, domain.AnswerMatches(" 4 ", status.Questions[0].CorrectAnswer))

		for _, s := range []string{"A", "B", "D"} {
			outcome, err := f.admission.JoinRoom(ctx, room.Code, s, "")
			require.NoError(t, err)
			require.Equal(t, domain.OutcomeAccepted, outcome)
		}

		a, err := f.admission.CompleteQuiz(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, a.Outcome)
		status, _ = f.admission.RoomStatus(ctx, room.Code)
		assert.Equal(t, 1, status.Completed)

		b, err := f.admission.CompleteQuiz(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, b.Outcome)

		c, err := f.admission.JoinRoom(ctx, room.Code, "C", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFull, c)

		d, err := f.admission.CompleteQuiz(ctx, "D")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFull, d.Outcome)

		status, err = f.admission.RoomStatus(ctx, room.Code)
		require.NoError(t, err)
		assert.False(t, status.Available)
		assert.True(t, status.TooLate)
		assert.Nil(t, status.Room)
	})
}

func TestRoomStatusUnavailable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		inactive := f.createRoom(t, 2, false)

		status, err := f.admission.RoomStatus(ctx, "NOPE22")
		require.NoError(t, err)
		assert.Equal(t, domain.RoomStatus{Available: false}, status)

		status, err = f.admission.RoomStatus(ctx, inactive.Code)
		require.NoError(t, err)
		assert.False(t, status.Available)
		assert.False(t, status.TooLate)
	})
}

func TestActiveRoomFlowUsesNewestActiveRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()

		status, err := f.admission.ActiveRoomStatus(ctx)
		require.NoError(t, err)
		assert.False(t, status.Available)

		f.createRoom(t, 2, true)
		f.clock.Advance(time.Minute)
		newest := f.createRoom(t, 2, true)

		status, err = f.admission.ActiveRoomStatus(ctx)
		require.NoError(t, err)
		require.True(t, status.Available)
		assert.Equal(t, newest.Code, status.Room.Code)

		outcome, err := f.admission.JoinRoom(ctx, "", "legacy", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeAccepted, outcome)
		p, err := f.store.FindParticipant(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, newest.ID, p.RoomID)
	})
}

func TestDeactivatedRoomRejectsJoinDespiteCache(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 2, true)
		_, err := f.admission.RoomStatus(ctx, room.Code) // warm the cache
		require.NoError(t, err)

		off := false
		_, err = f.registry.UpdateRoom(ctx, room.ID, app.RoomInput{Active: &off})
		require.NoError(t, err)

		outcome, err := f.admission.JoinRoom(ctx, room.Code, "s1", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNotFound, outcome)
	})
}

func TestCompletionPublishesSlotUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		room := f.createRoom(t, 2, true)
		updates, cancel, err := f.admission.Subscribe(ctx, room.Code)
		require.NoError(t, err)
		defer cancel()

		_, err = f.admission.JoinRoom(ctx, room.Code, "s1", "")
		require.NoError(t, err)
		_, err = f.admission.CompleteQuiz(ctx, "s1")
		require.NoError(t, err)

		select {
		case update := <-updates:
			assert.Equal(t, domain.SlotUpdate{RoomCode: room.Code, Completed: 1, MaxParticipants: 2, SlotsRemaining: 1}, update)
		case <-time.After(time.Second):
			t.Fatal("expected slot update")
		}
	})
}
