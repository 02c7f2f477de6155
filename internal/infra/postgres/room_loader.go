package postgres

import (
	"context"
	"errors"
	"fmt"

	"giveaway-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RoomLoader reads room snapshots straight from Postgres for the room cache.
type RoomLoader struct {
	pool *pgxpool.Pool
}

func NewRoomLoader(pool *pgxpool.Pool) *RoomLoader {
	return &RoomLoader{pool: pool}
}

func (l *RoomLoader) LoadRoom(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	var room domain.Room
	err := l.pool.QueryRow(ctx, `
		SELECT id, room_code, title, prize, start_time, duration_minutes,
		       max_participants, redirect_link, is_active, created_at, updated_at
		FROM quiz_settings
		WHERE upper(room_code) = upper($1)`, code).
		Scan(&room.ID, &room.Code, &room.Title, &room.Prize, &room.StartTime, &room.DurationMinutes,
			&room.MaxParticipants, &room.RedirectLink, &room.Active, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("load room: %w", err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, question_text, correct_answer, coalesce(hint, ''), order_index
		FROM questions
		WHERE quiz_settings_id = $1
		ORDER BY order_index`, room.ID)
	if err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		q := domain.Question{RoomID: room.ID}
		if err := rows.Scan(&q.ID, &q.Text, &q.CorrectAnswer, &q.Hint, &q.Order); err != nil {
			return domain.RoomSnapshot{}, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("load questions: %w", err)
	}
	return domain.RoomSnapshot{Room: room, Questions: questions}, nil
}
