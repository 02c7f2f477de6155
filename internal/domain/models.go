package domain

import (
	"strings"
	"time"
)

// Room is a configured quiz instance reachable by its shareable code.
type Room struct {
	ID              int64      `json:"id"`
	Code            string     `json:"roomCode"`
	Title           string     `json:"title"`
	Prize           string     `json:"prize"`
	StartTime       *time.Time `json:"startTime"`
	DurationMinutes int        `json:"durationMinutes"`
	MaxParticipants int        `json:"maxParticipants"`
	RedirectLink    string     `json:"redirectLink"`
	Active          bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// EndsAt reports when the play window closes, if the room is scheduled.
func (r Room) EndsAt() *time.Time {
	if r.StartTime == nil {
		return nil
	}
	end := r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
	return &end
}

// Question belongs to a single room; Order is zero-based and unique per room.
type Question struct {
	ID            int64  `json:"id"`
	RoomID        int64  `json:"roomId"`
	Text          string `json:"questionText"`
	CorrectAnswer string `json:"correctAnswer"`
	Hint          string `json:"hint,omitempty"`
	Order         int    `json:"orderIndex"`
}

// Participant is one play-through attempt of a browser session in a room.
type Participant struct {
	ID          int64      `json:"id"`
	RoomID      int64      `json:"roomId"`
	SessionID   string     `json:"sessionId"`
	VisitorID   string     `json:"visitorId,omitempty"`
	JoinedAt    time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// Completed reports whether the participant has claimed a winner slot.
func (p Participant) Completed() bool {
	return p.CompletedAt != nil
}

// Admin is an organizer account allowed to manage rooms.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// RoomSnapshot is the cacheable part of a room: configuration and ordered questions.
type RoomSnapshot struct {
	Room      Room       `json:"room"`
	Questions []Question `json:"questions"`
}

// RoomStats counts participants of a room.
type RoomStats struct {
	Total     int `json:"totalParticipants"`
	Completed int `json:"completedParticipants"`
}

// SlotsRemaining returns the number of winner slots still open.
func (s RoomStats) SlotsRemaining(capacity int) int {
	if remaining := capacity - s.Completed; remaining > 0 {
		return remaining
	}
	return 0
}

// RoomStatus is the public view of a room returned to participants.
type RoomStatus struct {
	Available bool       `json:"available"`
	TooLate   bool       `json:"tooLate,omitempty"`
	Room      *Room      `json:"settings,omitempty"`
	Completed int        `json:"completedParticipants"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

// SlotUpdate is broadcast whenever a room's completed count changes.
type SlotUpdate struct {
	RoomCode        string `json:"roomCode"`
	Completed       int    `json:"completed"`
	MaxParticipants int    `json:"maxParticipants"`
	SlotsRemaining  int    `json:"slotsRemaining"`
}

// AnswerMatches compares a participant answer with the expected one, ignoring
// surrounding whitespace and letter case.
func AnswerMatches(given, correct string) bool {
	given = strings.TrimSpace(given)
	if given == "" {
		return false
	}
	return strings.EqualFold(given, strings.TrimSpace(correct))
}
