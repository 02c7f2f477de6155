package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"giveaway-quiz-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// AdmissionService decides who may play a room and who claims its winner slots.
type AdmissionService struct {
	rooms  RoomRepository
	cache  RoomCache
	ledger ParticipantLedger
	feed   SlotFeed
	clock  clockwork.Clock
}

func NewAdmissionService(rooms RoomRepository, cache RoomCache, ledger ParticipantLedger, feed SlotFeed, clock clockwork.Clock) *AdmissionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdmissionService{rooms: rooms, cache: cache, ledger: ledger, feed: feed, clock: clock}
}

// Completion is the result of CompleteQuiz.
type Completion struct {
	Outcome domain.Outcome
	Room    domain.Room
}

// RoomStatus assembles the public view of a room. Missing and inactive rooms
// are reported unavailable; rooms with every slot claimed are reported too late.
func (s *AdmissionService) RoomStatus(ctx context.Context, code string) (domain.RoomStatus, error) {
	snap, err := s.cache.GetRoom(ctx, normalizeCode(code))
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.RoomStatus{Available: false}, nil
	}
	if err != nil {
		return domain.RoomStatus{}, err
	}
	if !snap.Room.Active {
		return domain.RoomStatus{Available: false}, nil
	}

	stats, err := s.ledger.RoomStats(ctx, snap.Room.ID)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	if stats.Completed >= snap.Room.MaxParticipants {
		return domain.RoomStatus{Available: false, TooLate: true, Completed: stats.Completed}, nil
	}

	room := snap.Room
	return domain.RoomStatus{
		Available: true,
		Room:      &room,
		Completed: stats.Completed,
		EndsAt:    room.EndsAt(),
		Questions: snap.Questions,
	}, nil
}

// ActiveRoomStatus serves the single-room flow: the newest active room.
func (s *AdmissionService) ActiveRoomStatus(ctx context.Context) (domain.RoomStatus, error) {
	room, err := s.rooms.LatestActiveRoom(ctx)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.RoomStatus{Available: false}, nil
	}
	if err != nil {
		return domain.RoomStatus{}, err
	}
	return s.RoomStatus(ctx, room.Code)
}

// JoinRoom admits sessionID to play the room. Joining twice is a no-op
// success. New sessions are refused once completions reached capacity; a join
// never reserves a winner slot. An empty code targets the newest active room.
func (s *AdmissionService) JoinRoom(ctx context.Context, code, sessionID, visitorID string) (domain.Outcome, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.OutcomeNotFound, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	roomID, err := s.resolveRoom(ctx, normalizeCode(code))
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeNotFound, err
	}

	outcome := domain.OutcomeNotFound
	err = s.ledger.WithRoomLock(ctx, roomID, func(ctx context.Context, room domain.Room, tx LedgerTx) error {
		if !room.Active {
			outcome = domain.OutcomeNotFound
			return nil
		}
		if _, ok, err := tx.Participant(ctx, room.ID, sessionID); err != nil {
			return err
		} else if ok {
			outcome = domain.OutcomeAccepted
			return nil
		}

		completed, err := tx.CountCompleted(ctx, room.ID)
		if err != nil {
			return err
		}
		if completed >= room.MaxParticipants {
			outcome = domain.OutcomeFull
			return nil
		}

		p := &domain.Participant{
			RoomID:    room.ID,
			SessionID: sessionID,
			VisitorID: visitorID,
			JoinedAt:  s.clock.Now(),
		}
		if err := tx.AddParticipant(ctx, p); err != nil {
			return err
		}
		outcome = domain.OutcomeAccepted
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeNotFound, err
	}

	log.Debug().Str("room", code).Str("session", sessionID).Stringer("outcome", outcome).Msg("join")
	return outcome, nil
}

// CompleteQuiz claims a winner slot for sessionID. The capacity check and the
// completion write happen under the room lock, so a room never has more than
// MaxParticipants completed participants. Completing twice is a no-op success.
func (s *AdmissionService) CompleteQuiz(ctx context.Context, sessionID string) (Completion, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Completion{Outcome: domain.OutcomeNotFound}, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	participant, err := s.ledger.FindParticipant(ctx, sessionID)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return Completion{Outcome: domain.OutcomeNotFound}, nil
	}
	if err != nil {
		return Completion{Outcome: domain.OutcomeNotFound}, err
	}
	if participant.Completed() {
		room, err := s.rooms.GetRoom(ctx, participant.RoomID)
		if err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			return Completion{Outcome: domain.OutcomeNotFound}, err
		}
		return Completion{Outcome: domain.OutcomeAccepted, Room: room}, nil
	}

	result := Completion{Outcome: domain.OutcomeNotFound}
	var update *domain.SlotUpdate
	err = s.ledger.WithRoomLock(ctx, participant.RoomID, func(ctx context.Context, room domain.Room, tx LedgerTx) error {
		result.Room = room
		current, ok, err := tx.Participant(ctx, room.ID, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			result.Outcome = domain.OutcomeNotFound
			return nil
		}
		if current.Completed() {
			result.Outcome = domain.OutcomeAccepted
			return nil
		}

		completed, err := tx.CountCompleted(ctx, room.ID)
		if err != nil {
			return err
		}
		if completed >= room.MaxParticipants {
			result.Outcome = domain.OutcomeFull
			return nil
		}
		if err := tx.MarkCompleted(ctx, current.ID, s.clock.Now()); err != nil {
			return err
		}

		result.Outcome = domain.OutcomeAccepted
		completed++
		update = &domain.SlotUpdate{
			RoomCode:        room.Code,
			Completed:       completed,
			MaxParticipants: room.MaxParticipants,
			SlotsRemaining:  domain.RoomStats{Completed: completed}.SlotsRemaining(room.MaxParticipants),
		}
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return Completion{Outcome: domain.OutcomeNotFound}, nil
	}
	if err != nil {
		return Completion{Outcome: domain.OutcomeNotFound}, err
	}

	if update != nil {
		log.Info().Str("room", update.RoomCode).Str("session", sessionID).Int("completed", update.Completed).Msg("winner slot claimed")
		if s.feed != nil {
			s.feed.Publish(ctx, *update)
		}
	} else {
		log.Debug().Str("session", sessionID).Stringer("outcome", result.Outcome).Msg("complete")
	}
	return result, nil
}

// Subscribe streams slot updates of a room.
func (s *AdmissionService) Subscribe(ctx context.Context, code string) (<-chan domain.SlotUpdate, func(), error) {
	if s.feed == nil {
		return nil, nil, errors.New("slot feed not configured")
	}
	return s.feed.Subscribe(ctx, normalizeCode(code))
}

func (s *AdmissionService) resolveRoom(ctx context.Context, code string) (int64, error) {
	if code == "" {
		room, err := s.rooms.LatestActiveRoom(ctx)
		if err != nil {
			return 0, err
		}
		return room.ID, nil
	}
	snap, err := s.cache.GetRoom(ctx, code)
	if err != nil {
		return 0, err
	}
	return snap.Room.ID, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
