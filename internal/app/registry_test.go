package app_test

import (
	"context"
	"testing"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"giveaway-quiz-service/internal/infra/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceCodes struct {
	codes []string
	calls int
}

func (s *sequenceCodes) NewCode() string {
	code := s.codes[len(s.codes)-1]
	if s.calls < len(s.codes) {
		code = s.codes[s.calls]
	}
	s.calls++
	return code
}

func newRegistry(t *testing.T, codes app.CodeGenerator) (*app.RegistryService, *memory.Store, *memory.RoomCache) {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewRoomCache(store, time.Minute)
	return app.NewRegistryService(store, store, cache, codes, clockwork.NewFakeClock()), store, cache
}

func oneQuestion() []app.QuestionInput {
	return []app.QuestionInput{{Text: "Capital of France?", CorrectAnswer: "Paris", Hint: "Eiffel"}}
}

func TestCreateRoomAppliesDefaults(t *testing.T) {
	registry, _, _ := newRegistry(t, nil)

	snap, err := registry.CreateRoom(context.Background(), app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)

	room := snap.Room
	assert.Len(t, room.Code, 6)
	assert.Regexp(t, `^[A-HJ-NP-Z2-9]{6}$`, room.Code)
	assert.Equal(t, "Quiz", room.Title)
	assert.Equal(t, "Prize", room.Prize)
	assert.Equal(t, 5, room.DurationMinutes)
	assert.Equal(t, 10, room.MaxParticipants)
	assert.Equal(t, "https://example.com", room.RedirectLink)
	assert.False(t, room.Active)
	require.Len(t, snap.Questions, 1)
	assert.Equal(t, room.ID, snap.Questions[0].RoomID)
}

func TestCreateRoomValidation(t *testing.T) {
	registry, _, _ := newRegistry(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   app.RoomInput
	}{
		{name: "no questions", in: app.RoomInput{}},
		{name: "only blank questions", in: app.RoomInput{Questions: []app.QuestionInput{{Text: " ", CorrectAnswer: ""}}}},
		{name: "question without answer", in: app.RoomInput{Questions: []app.QuestionInput{{Text: "Why?"}}}},
		{name: "negative capacity", in: app.RoomInput{MaxParticipants: -1, Questions: oneQuestion()}},
		{name: "negative duration", in: app.RoomInput{DurationMinutes: -5, Questions: oneQuestion()}},
		{name: "non http redirect", in: app.RoomInput{RedirectLink: "javascript:alert(1)", Questions: oneQuestion()}},
		{name: "redirect without host", in: app.RoomInput{RedirectLink: "https://", Questions: oneQuestion()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.CreateRoom(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateRoomSkipsBlankQuestionRows(t *testing.T) {
	registry, _, _ := newRegistry(t, nil)

	snap, err := registry.CreateRoom(context.Background(), app.RoomInput{Questions: []app.QuestionInput{
		{Text: "  first ", CorrectAnswer: " 1 "},
		{},
		{Text: "second", CorrectAnswer: "2"},
	}})
	require.NoError(t, err)
	require.Len(t, snap.Questions, 2)
	assert.Equal(t, "first", snap.Questions[0].Text)
	assert.Equal(t, "1", snap.Questions[0].CorrectAnswer)
	assert.Equal(t, 0, snap.Questions[0].Order)
	assert.Equal(t, 1, snap.Questions[1].Order)
}

func TestCreateRoomRetriesCodeCollisions(t *testing.T) {
	codes := &sequenceCodes{codes: []string{"AAAAAA", "AAAAAA", "BBBBBB"}}
	registry, _, _ := newRegistry(t, codes)
	ctx := context.Background()

	first, err := registry.CreateRoom(ctx, app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Room.Code)

	second, err := registry.CreateRoom(ctx, app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Room.Code)
	assert.Equal(t, 3, codes.calls)
}

func TestCreateRoomAcceptsLastCandidateAfterRetries(t *testing.T) {
	codes := &sequenceCodes{codes: []string{"AAAAAA"}}
	registry, _, _ := newRegistry(t, codes)
	ctx := context.Background()

	_, err := registry.CreateRoom(ctx, app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)
	snap, err := registry.CreateRoom(ctx, app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", snap.Room.Code)
}

func TestUpdateRoomMergesAndInvalidatesCache(t *testing.T) {
	registry, _, cache := newRegistry(t, nil)
	ctx := context.Background()

	created, err := registry.CreateRoom(ctx, app.RoomInput{Title: "Spring", MaxParticipants: 3, Questions: oneQuestion()})
	require.NoError(t, err)
	_, err = cache.GetRoom(ctx, created.Room.Code)
	require.NoError(t, err)

	on := true
	updated, err := registry.UpdateRoom(ctx, created.Room.ID, app.RoomInput{Prize: "Headphones", Active: &on})
	require.NoError(t, err)
	assert.Equal(t, "Spring", updated.Room.Title)
	assert.Equal(t, "Headphones", updated.Room.Prize)
	assert.Equal(t, 3, updated.Room.MaxParticipants)
	assert.True(t, updated.Room.Active)
	require.Len(t, updated.Questions, 1, "an empty question list keeps the stored questions")

	cached, err := cache.GetRoom(ctx, created.Room.Code)
	require.NoError(t, err)
	assert.True(t, cached.Room.Active)
	assert.Equal(t, "Headphones", cached.Room.Prize)

	replaced, err := registry.UpdateRoom(ctx, created.Room.ID, app.RoomInput{Questions: []app.QuestionInput{
		{Text: "a", CorrectAnswer: "1"},
		{Text: "b", CorrectAnswer: "2"},
	}})
	require.NoError(t, err)
	require.Len(t, replaced.Questions, 2)
	assert.Equal(t, "a", replaced.Questions[0].Text)

	_, err = registry.UpdateRoom(ctx, 9999, app.RoomInput{})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDeleteRoomRemovesEverything(t *testing.T) {
	registry, store, cache := newRegistry(t, nil)
	ctx := context.Background()

	created, err := registry.CreateRoom(ctx, app.RoomInput{Questions: oneQuestion()})
	require.NoError(t, err)
	_, err = cache.GetRoom(ctx, created.Room.Code)
	require.NoError(t, err)

	require.NoError(t, registry.DeleteRoom(ctx, created.Room.ID))

	_, err = cache.GetRoom(ctx, created.Room.Code)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	questions, err := store.ListQuestions(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)

	assert.ErrorIs(t, registry.DeleteRoom(ctx, created.Room.ID), domain.ErrRoomNotFound)
}

func TestListRoomsAndDetailReportStats(t *testing.T) {
	store := memory.NewStore()
	cache := memory.NewRoomCache(store, time.Minute)
	clock := clockwork.NewFakeClock()
	registry := app.NewRegistryService(store, store, cache, nil, clock)
	admission := app.NewAdmissionService(store, cache, store, nil, clock)
	ctx := context.Background()

	on := true
	older, err := registry.CreateRoom(ctx, app.RoomInput{Title: "older", MaxParticipants: 1, Active: &on, Questions: oneQuestion()})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = registry.CreateRoom(ctx, app.RoomInput{Title: "newer", Questions: oneQuestion()})
	require.NoError(t, err)

	for _, s := range []string{"s1", "s2"} {
		_, err := admission.JoinRoom(ctx, older.Room.Code, s, "")
		require.NoError(t, err)
	}
	_, err = admission.CompleteQuiz(ctx, "s1")
	require.NoError(t, err)

	rooms, err := registry.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "newer", rooms[0].Title)
	assert.Equal(t, "older", rooms[1].Title)
	assert.Equal(t, 2, rooms[1].TotalParticipants)
	assert.Equal(t, 1, rooms[1].CompletedParticipants)
	assert.Equal(t, 0, rooms[1].SlotsRemaining)

	detail, err := registry.GetRoom(ctx, older.Room.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Participants, 2)
	assert.Equal(t, 1, detail.CompletedCount)
	assert.Len(t, detail.Questions, 1)
}
