package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strings"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var embeddedSchema embed.FS

// Store implements app.Store on a SQLite file for single-node deployments.
// Transactions start with BEGIN IMMEDIATE, so admission transactions take the
// database write lock up front and never interleave.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; one connection keeps lock waits in-process.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ app.Store = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}
	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(strings.TrimSpace(string(b)))
	return err
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ---------- Rooms ----------

const roomColumns = `id, room_code, title, prize, start_time, duration_minutes, max_participants, redirect_link, is_active, created_at, updated_at`

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_settings (room_code, title, prize, start_time, duration_minutes, max_participants, redirect_link, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			room.Code, room.Title, room.Prize, nullTime(room.StartTime), room.DurationMinutes, room.MaxParticipants,
			room.RedirectLink, room.Active, room.CreatedAt.UTC(), room.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		if room.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, room.ID, questions)
	})
}

func (s *Store) UpdateRoom(ctx context.Context, room *domain.Room, questions []domain.Question) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE quiz_settings
			SET title = ?, prize = ?, start_time = ?, duration_minutes = ?, max_participants = ?, redirect_link = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
			room.Title, room.Prize, nullTime(room.StartTime), room.DurationMinutes, room.MaxParticipants,
			room.RedirectLink, room.Active, room.UpdatedAt.UTC(), room.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrRoomNotFound
		}
		if questions == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_settings_id = ?`, room.ID); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, room.ID, questions)
	})
}

func insertQuestions(ctx context.Context, q queryer, roomID int64, questions []domain.Question) error {
	for i := range questions {
		res, err := q.ExecContext(ctx, `
			INSERT INTO questions (quiz_settings_id, question_text, correct_answer, hint, order_index)
			VALUES (?, ?, ?, ?, ?)`,
			roomID, questions[i].Text, questions[i].CorrectAnswer, nullString(questions[i].Hint), i)
		if err != nil {
			return err
		}
		if questions[i].ID, err = res.LastInsertId(); err != nil {
			return err
		}
		questions[i].RoomID = roomID
		questions[i].Order = i
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_settings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM quiz_settings WHERE id = ?`, id))
}

func (s *Store) LatestActiveRoom(ctx context.Context) (domain.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM quiz_settings WHERE is_active = 1 ORDER BY created_at DESC, id DESC LIMIT 1`))
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM quiz_settings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Store) ListQuestions(ctx context.Context, roomID int64) ([]domain.Question, error) {
	return listQuestions(ctx, s.db, roomID)
}

func listQuestions(ctx context.Context, q queryer, roomID int64) ([]domain.Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, question_text, correct_answer, coalesce(hint, ''), order_index
		FROM questions WHERE quiz_settings_id = ? ORDER BY order_index`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		qn := domain.Question{RoomID: roomID}
		if err := rows.Scan(&qn.ID, &qn.Text, &qn.CorrectAnswer, &qn.Hint, &qn.Order); err != nil {
			return nil, err
		}
		questions = append(questions, qn)
	}
	return questions, rows.Err()
}

func (s *Store) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var cnt int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM quiz_settings WHERE room_code = ?`, code).Scan(&cnt); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// LoadRoom implements app.RoomLoader.
func (s *Store) LoadRoom(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM quiz_settings WHERE room_code = ? COLLATE NOCASE`, code))
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	questions, err := listQuestions(ctx, s.db, room.ID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return domain.RoomSnapshot{Room: room, Questions: questions}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (domain.Room, error) {
	var r domain.Room
	var start sql.NullTime
	err := row.Scan(&r.ID, &r.Code, &r.Title, &r.Prize, &start, &r.DurationMinutes, &r.MaxParticipants,
		&r.RedirectLink, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, err
	}
	if start.Valid {
		t := start.Time
		r.StartTime = &t
	}
	return r, nil
}

// ---------- Participants ----------

const participantColumns = `id, quiz_settings_id, session_id, coalesce(visitor_id, ''), created_at, completed_at`

func scanParticipant(row rowScanner) (domain.Participant, error) {
	var p domain.Participant
	var completed sql.NullTime
	if err := row.Scan(&p.ID, &p.RoomID, &p.SessionID, &p.VisitorID, &p.JoinedAt, &completed); err != nil {
		return domain.Participant{}, err
	}
	if completed.Valid {
		t := completed.Time
		p.CompletedAt = &t
	}
	return p, nil
}

func (s *Store) FindParticipant(ctx context.Context, sessionID string) (domain.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE session_id = ? ORDER BY id LIMIT 1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) RoomStats(ctx context.Context, roomID int64) (domain.RoomStats, error) {
	var stats domain.RoomStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(completed_at) FROM participants WHERE quiz_settings_id = ?`, roomID).
		Scan(&stats.Total, &stats.Completed)
	return stats, err
}

func (s *Store) ListParticipants(ctx context.Context, roomID int64) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE quiz_settings_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Store) WithRoomLock(ctx context.Context, roomID int64, fn func(ctx context.Context, room domain.Room, tx app.LedgerTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		room, err := scanRoom(tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM quiz_settings WHERE id = ?`, roomID))
		if err != nil {
			return err
		}
		return fn(ctx, room, ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *sql.Tx
}

func (t ledgerTx) Participant(ctx context.Context, roomID int64, sessionID string) (domain.Participant, bool, error) {
	p, err := scanParticipant(t.tx.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE quiz_settings_id = ? AND session_id = ?`, roomID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, err
	}
	return p, true, nil
}

func (t ledgerTx) CountCompleted(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM participants WHERE quiz_settings_id = ? AND completed_at IS NOT NULL`, roomID).Scan(&n)
	return n, err
}

func (t ledgerTx) AddParticipant(ctx context.Context, p *domain.Participant) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO participants (session_id, visitor_id, quiz_settings_id, created_at) VALUES (?, ?, ?, ?)`,
		p.SessionID, nullString(p.VisitorID), p.RoomID, p.JoinedAt.UTC())
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (t ledgerTx) MarkCompleted(ctx context.Context, participantID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE participants SET completed_at = ? WHERE id = ? AND completed_at IS NULL`, at.UTC(), participantID)
	return err
}

// ---------- Admins ----------

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admins`).Scan(&n)
	return n, err
}

func (s *Store) CreateAdmin(ctx context.Context, admin *domain.Admin) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO admins (username, password, created_at) VALUES (?, ?, ?)`,
		admin.Username, admin.PasswordHash, admin.CreatedAt.UTC())
	if err != nil {
		return err
	}
	admin.ID, err = res.LastInsertId()
	return err
}

func (s *Store) FindAdmin(ctx context.Context, username string) (domain.Admin, error) {
	var a domain.Admin
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password, created_at FROM admins WHERE username = ?`, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	return a, err
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
