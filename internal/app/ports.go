package app

import (
	"context"
	"time"

	"giveaway-quiz-service/internal/domain"
)

// RoomRepository persists room configuration and question sets.
type RoomRepository interface {
	// CreateRoom inserts the room and its questions, filling in IDs and timestamps.
	CreateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error
	// UpdateRoom overwrites the room row. A nil question slice keeps the stored
	// set; anything else replaces it wholesale.
	UpdateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error
	DeleteRoom(ctx context.Context, id int64) error
	GetRoom(ctx context.Context, id int64) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListQuestions(ctx context.Context, roomID int64) ([]domain.Question, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	// LatestActiveRoom returns the most recently created active room.
	LatestActiveRoom(ctx context.Context) (domain.Room, error)
}

// RoomLoader loads a room snapshot by code from the backing store.
type RoomLoader interface {
	LoadRoom(ctx context.Context, code string) (domain.RoomSnapshot, error)
}

// RoomCache serves room snapshots (cache in front of a RoomLoader).
type RoomCache interface {
	GetRoom(ctx context.Context, code string) (domain.RoomSnapshot, error)
	Invalidate(ctx context.Context, code string)
}

// ParticipantLedger stores participants and serializes admission per room.
type ParticipantLedger interface {
	// FindParticipant returns the earliest participant registered under sessionID.
	FindParticipant(ctx context.Context, sessionID string) (domain.Participant, error)
	RoomStats(ctx context.Context, roomID int64) (domain.RoomStats, error)
	ListParticipants(ctx context.Context, roomID int64) ([]domain.Participant, error)
	// WithRoomLock runs fn while holding the admission lock of the room. Calls
	// for the same room never overlap, across processes when the store is
	// shared. Returns domain.ErrRoomNotFound if the room does not exist.
	WithRoomLock(ctx context.Context, roomID int64, fn func(ctx context.Context, room domain.Room, tx LedgerTx) error) error
}

// LedgerTx is the ledger view available while a room lock is held.
type LedgerTx interface {
	Participant(ctx context.Context, roomID int64, sessionID string) (domain.Participant, bool, error)
	CountCompleted(ctx context.Context, roomID int64) (int, error)
	AddParticipant(ctx context.Context, p *domain.Participant) error
	MarkCompleted(ctx context.Context, participantID int64, at time.Time) error
}

// AdminRepository stores organizer accounts.
type AdminRepository interface {
	CountAdmins(ctx context.Context) (int, error)
	CreateAdmin(ctx context.Context, admin *domain.Admin) error
	FindAdmin(ctx context.Context, username string) (domain.Admin, error)
}

// Store is implemented by every persistence backend.
type Store interface {
	RoomRepository
	ParticipantLedger
	AdminRepository
}

// AttemptLimiter tracks failed logins per client key with expiry.
type AttemptLimiter interface {
	// Blocked reports whether key is locked out and for how long.
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SlotFeed fans out completed-count changes per room.
type SlotFeed interface {
	Publish(ctx context.Context, update domain.SlotUpdate)
	// Subscribe returns a channel of updates for roomCode. The caller must
	// invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, roomCode string) (<-chan domain.SlotUpdate, func(), error)
}
