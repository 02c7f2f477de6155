package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenDB opens a bun handle on a Postgres DSN.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements app.Store on Postgres. Admission is serialized by locking
// the room row (SELECT ... FOR UPDATE) for the duration of the transaction,
// which holds across every instance sharing the database.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var _ app.Store = (*Store)(nil)

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := newRoomModel(*room)
		if _, err := tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
			return err
		}
		room.ID = m.ID
		return insertQuestions(ctx, tx, room.ID, questions)
	})
}

func (s *Store) UpdateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := newRoomModel(*room)
		res, err := tx.NewUpdate().Model(&m).
			Column("title", "prize", "start_time", "duration_minutes", "max_participants", "redirect_link", "is_active", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrRoomNotFound
		}
		if questions == nil {
			return nil
		}
		if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("quiz_settings_id = ?", room.ID).Exec(ctx); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, room.ID, questions)
	})
}

func insertQuestions(ctx context.Context, db bun.IDB, roomID int64, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	models := make([]questionModel, len(questions))
	for i, q := range questions {
		models[i] = questionModel{
			RoomID:        roomID,
			Text:          q.Text,
			CorrectAnswer: q.CorrectAnswer,
			Hint:          q.Hint,
			Order:         i,
		}
	}
	if _, err := db.NewInsert().Model(&models).Returning("id").Exec(ctx); err != nil {
		return err
	}
	for i := range questions {
		questions[i].ID = models[i].ID
		questions[i].RoomID = roomID
		questions[i].Order = i
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*roomModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	return getRoom(ctx, s.db.NewSelect().Where("id = ?", id))
}

func (s *Store) LatestActiveRoom(ctx context.Context) (domain.Room, error) {
	return getRoom(ctx, s.db.NewSelect().Where("is_active").Order("created_at DESC", "id DESC").Limit(1))
}

func getRoom(ctx context.Context, q *bun.SelectQuery) (domain.Room, error) {
	var m roomModel
	if err := q.Model(&m).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var models []roomModel
	if err := s.db.NewSelect().Model(&models).Order("created_at DESC", "id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, len(models))
	for i, m := range models {
		rooms[i] = m.toDomain()
	}
	return rooms, nil
}

func (s *Store) ListQuestions(ctx context.Context, roomID int64) ([]domain.Question, error) {
	var models []questionModel
	err := s.db.NewSelect().Model(&models).Where("quiz_settings_id = ?", roomID).Order("order_index ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, len(models))
	for i, m := range models {
		questions[i] = m.toDomain()
	}
	return questions, nil
}

func (s *Store) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	return s.db.NewSelect().Model((*roomModel)(nil)).Where("room_code = ?", code).Exists(ctx)
}

func (s *Store) FindParticipant(ctx context.Context, sessionID string) (domain.Participant, error) {
	var m participantModel
	err := s.db.NewSelect().Model(&m).Where("session_id = ?", sessionID).Order("id ASC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) RoomStats(ctx context.Context, roomID int64) (domain.RoomStats, error) {
	var stats domain.RoomStats
	err := s.db.NewSelect().
		Model((*participantModel)(nil)).
		ColumnExpr("count(*)").
		ColumnExpr("count(completed_at)").
		Where("quiz_settings_id = ?", roomID).
		Scan(ctx, &stats.Total, &stats.Completed)
	return stats, err
}

func (s *Store) ListParticipants(ctx context.Context, roomID int64) ([]domain.Participant, error) {
	var models []participantModel
	if err := s.db.NewSelect().Model(&models).Where("quiz_settings_id = ?", roomID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	participants := make([]domain.Participant, len(models))
	for i, m := range models {
		participants[i] = m.toDomain()
	}
	return participants, nil
}

func (s *Store) WithRoomLock(ctx context.Context, roomID int64, fn func(ctx context.Context, room domain.Room, tx app.LedgerTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m roomModel
		err := tx.NewSelect().Model(&m).Where("id = ?", roomID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return fn(ctx, m.toDomain(), ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx bun.Tx
}

func (t ledgerTx) Participant(ctx context.Context, roomID int64, sessionID string) (domain.Participant, bool, error) {
	var m participantModel
	err := t.tx.NewSelect().Model(&m).Where("quiz_settings_id = ? AND session_id = ?", roomID, sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, err
	}
	return m.toDomain(), true, nil
}

func (t ledgerTx) CountCompleted(ctx context.Context, roomID int64) (int, error) {
	return t.tx.NewSelect().Model((*participantModel)(nil)).
		Where("quiz_settings_id = ? AND completed_at IS NOT NULL", roomID).
		Count(ctx)
}

func (t ledgerTx) AddParticipant(ctx context.Context, p *domain.Participant) error {
	m := participantModel{
		SessionID: p.SessionID,
		VisitorID: p.VisitorID,
		RoomID:    p.RoomID,
		JoinedAt:  p.JoinedAt,
	}
	if _, err := t.tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return err
	}
	p.ID = m.ID
	return nil
}

func (t ledgerTx) MarkCompleted(ctx context.Context, participantID int64, at time.Time) error {
	_, err := t.tx.NewUpdate().Model((*participantModel)(nil)).
		Set("completed_at = ?", at).
		Where("id = ? AND completed_at IS NULL", participantID).
		Exec(ctx)
	return err
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*adminModel)(nil)).Count(ctx)
}

func (s *Store) CreateAdmin(ctx context.Context, admin *domain.Admin) error {
	m := adminModel{Username: admin.Username, Password: admin.PasswordHash, CreatedAt: admin.CreatedAt}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return err
	}
	admin.ID = m.ID
	return nil
}

func (s *Store) FindAdmin(ctx context.Context, username string) (domain.Admin, error) {
	var m adminModel
	err := s.db.NewSelect().Model(&m).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	if err != nil {
		return domain.Admin{}, err
	}
	return domain.Admin{ID: m.ID, Username: m.Username, PasswordHash: m.Password, CreatedAt: m.CreatedAt}, nil
}
