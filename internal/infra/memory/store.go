package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store for single-instance
// deployments and tests. Admission is serialized with a mutex per room.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	rooms        map[int64]domain.Room
	questions    map[int64][]domain.Question
	participants map[int64]*domain.Participant
	admins       map[string]domain.Admin

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[int64]domain.Room),
		questions:    make(map[int64][]domain.Question),
		participants: make(map[int64]*domain.Participant),
		admins:       make(map[string]domain.Admin),
		locks:        make(map[int64]*sync.Mutex),
	}
}

var _ app.Store = (*Store)(nil)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateRoom(_ context.Context, room *domain.Room, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.ID = s.id()
	s.rooms[room.ID] = *room
	s.putQuestionsLocked(room.ID, questions)
	return nil
}

func (s *Store) UpdateRoom(_ context.Context, room *domain.Room, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.rooms[room.ID] = *room
	if questions != nil {
		s.putQuestionsLocked(room.ID, questions)
	}
	return nil
}

func (s *Store) putQuestionsLocked(roomID int64, questions []domain.Question) {
	stored := make([]domain.Question, len(questions))
	for i := range questions {
		questions[i].ID = s.id()
		questions[i].RoomID = roomID
		questions[i].Order = i
		stored[i] = questions[i]
	}
	s.questions[roomID] = stored
}

func (s *Store) DeleteRoom(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, id)
	delete(s.questions, id)
	for pid, p := range s.participants {
		if p.RoomID == id {
			delete(s.participants, pid)
		}
	}
	s.dropRoomLock(id)
	return nil
}

func (s *Store) GetRoom(_ context.Context, id int64) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) ListRooms(_ context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sortNewestFirst(rooms)
	return rooms, nil
}

func (s *Store) ListQuestions(_ context.Context, roomID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Question(nil), s.questions[roomID]...), nil
}

func (s *Store) RoomCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roomByCodeLocked(code)
	return ok, nil
}

func (s *Store) LatestActiveRoom(_ context.Context) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.Active {
			rooms = append(rooms, room)
		}
	}
	if len(rooms) == 0 {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	sortNewestFirst(rooms)
	return rooms[0], nil
}

// LoadRoom implements app.RoomLoader.
func (s *Store) LoadRoom(_ context.Context, code string) (domain.RoomSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.roomByCodeLocked(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return domain.RoomSnapshot{
		Room:      room,
		Questions: append([]domain.Question(nil), s.questions[room.ID]...),
	}, nil
}

func (s *Store) roomByCodeLocked(code string) (domain.Room, bool) {
	for _, room := range s.rooms {
		if strings.EqualFold(room.Code, code) {
			return room, true
		}
	}
	return domain.Room{}, false
}

func (s *Store) FindParticipant(_ context.Context, sessionID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Participant
	for _, p := range s.participants {
		if p.SessionID == sessionID && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return *found, nil
}

func (s *Store) RoomStats(_ context.Context, roomID int64) (domain.RoomStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats domain.RoomStats
	for _, p := range s.participants {
		if p.RoomID != roomID {
			continue
		}
		stats.Total++
		if p.Completed() {
			stats.Completed++
		}
	}
	return stats, nil
}

func (s *Store) ListParticipants(_ context.Context, roomID int64) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.RoomID == roomID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) WithRoomLock(ctx context.Context, roomID int64, fn func(ctx context.Context, room domain.Room, tx app.LedgerTx) error) error {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.dropRoomLock(roomID)
		}
		return err
	}
	return fn(ctx, room, ledgerTx{s})
}

// dropRoomLock forgets the mutex of a deleted room. Current holders keep
// their pointer to it.
func (s *Store) dropRoomLock(roomID int64) {
	s.locksMu.Lock()
	delete(s.locks, roomID)
	s.locksMu.Unlock()
}

func (s *Store) roomLock(roomID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[roomID] = lock
	}
	return lock
}

// ledgerTx applies writes directly; the room mutex held by WithRoomLock
// provides the isolation.
type ledgerTx struct {
	s *Store
}

func (t ledgerTx) Participant(_ context.Context, roomID int64, sessionID string) (domain.Participant, bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, p := range t.s.participants {
		if p.RoomID == roomID && p.SessionID == sessionID {
			return *p, true, nil
		}
	}
	return domain.Participant{}, false, nil
}

func (t ledgerTx) CountCompleted(ctx context.Context, roomID int64) (int, error) {
	stats, err := t.s.RoomStats(ctx, roomID)
	return stats.Completed, err
}

func (t ledgerTx) AddParticipant(_ context.Context, p *domain.Participant) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p.ID = t.s.id()
	stored := *p
	t.s.participants[p.ID] = &stored
	return nil
}

func (t ledgerTx) MarkCompleted(_ context.Context, participantID int64, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.CompletedAt == nil {
		completed := at
		p.CompletedAt = &completed
	}
	return nil
}

func (s *Store) CountAdmins(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins), nil
}

func (s *Store) CreateAdmin(_ context.Context, admin *domain.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[admin.Username]; ok {
		return domain.ErrAdminExists
	}
	admin.ID = s.id()
	s.admins[admin.Username] = *admin
	return nil
}

func (s *Store) FindAdmin(_ context.Context, username string) (domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[username]
	if !ok {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	return admin, nil
}

func sortNewestFirst(rooms []domain.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
		}
		return rooms[i].ID > rooms[j].ID
	})
}
