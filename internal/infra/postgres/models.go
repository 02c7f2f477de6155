package postgres

import (
	"time"

	"giveaway-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type roomModel struct {
	bun.BaseModel `bun:"table:quiz_settings,alias:qs"`

	ID              int64      `bun:"id,pk,autoincrement"`
	Code            string     `bun:"room_code,notnull"`
	Title           string     `bun:"title,notnull"`
	Prize           string     `bun:"prize,notnull"`
	StartTime       *time.Time `bun:"start_time"`
	DurationMinutes int        `bun:"duration_minutes,notnull"`
	MaxParticipants int        `bun:"max_participants,notnull"`
	RedirectLink    string     `bun:"redirect_link,notnull"`
	Active          bool       `bun:"is_active,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
}

func newRoomModel(r domain.Room) roomModel {
	return roomModel{
		ID:              r.ID,
		Code:            r.Code,
		Title:           r.Title,
		Prize:           r.Prize,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		MaxParticipants: r.MaxParticipants,
		RedirectLink:    r.RedirectLink,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (m roomModel) toDomain() domain.Room {
	return domain.Room{
		ID:              m.ID,
		Code:            m.Code,
		Title:           m.Title,
		Prize:           m.Prize,
		StartTime:       m.StartTime,
		DurationMinutes: m.DurationMinutes,
		MaxParticipants: m.MaxParticipants,
		RedirectLink:    m.RedirectLink,
		Active:          m.Active,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64  `bun:"id,pk,autoincrement"`
	RoomID        int64  `bun:"quiz_settings_id,notnull"`
	Text          string `bun:"question_text,notnull"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
	Hint          string `bun:"hint,nullzero"`
	Order         int    `bun:"order_index,notnull"`
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:            m.ID,
		RoomID:        m.RoomID,
		Text:          m.Text,
		CorrectAnswer: m.CorrectAnswer,
		Hint:          m.Hint,
		Order:         m.Order,
	}
}

type participantModel struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID          int64      `bun:"id,pk,autoincrement"`
	SessionID   string     `bun:"session_id,notnull"`
	VisitorID   string     `bun:"visitor_id,nullzero"`
	RoomID      int64      `bun:"quiz_settings_id,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	JoinedAt    time.Time  `bun:"created_at,notnull"`
}

func (m participantModel) toDomain() domain.Participant {
	return domain.Participant{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SessionID:   m.SessionID,
		VisitorID:   m.VisitorID,
		JoinedAt:    m.JoinedAt,
		CompletedAt: m.CompletedAt,
	}
}

type adminModel struct {
	bun.BaseModel `bun:"table:admins,alias:a"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull"`
	Password  string    `bun:"password,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
