package app

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"giveaway-quiz-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultTitle        = "Quiz"
	defaultPrize        = "Prize"
	defaultDuration     = 5
	defaultCapacity     = 10
	defaultRedirectLink = "https://example.com"

	codeAttempts = 10
)

// RoomInput is the admin payload for creating or updating a room.
// On update, zero values keep the stored field and an empty question list
// keeps the stored questions.
type RoomInput struct {
	Title           string          `json:"title"`
	Prize           string          `json:"prize"`
	StartTime       *time.Time      `json:"startTime"`
	DurationMinutes int             `json:"durationMinutes"`
	MaxParticipants int             `json:"maxParticipants"`
	RedirectLink    string          `json:"redirectLink"`
	Active          *bool           `json:"isActive"`
	Questions       []QuestionInput `json:"questionsList"`
}

// QuestionInput is one question of a RoomInput; order follows the slice.
type QuestionInput struct {
	Text          string `json:"questionText"`
	CorrectAnswer string `json:"correctAnswer"`
	Hint          string `json:"hint"`
}

// RoomSummary is a room with its participation counters.
type RoomSummary struct {
	domain.Room
	TotalParticipants     int `json:"totalParticipants"`
	CompletedParticipants int `json:"completedParticipants"`
	SlotsRemaining        int `json:"slotsRemaining"`
}

// RoomDetail is the admin view of one room.
type RoomDetail struct {
	Room           domain.Room          `json:"quiz"`
	Questions      []domain.Question    `json:"questions"`
	Participants   []domain.Participant `json:"participants"`
	CompletedCount int                  `json:"completedCount"`
}

// CodeGenerator yields candidate room codes.
type CodeGenerator interface {
	NewCode() string
}

// RandomCodes generates six-character codes without look-alike symbols.
type RandomCodes struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func NewRandomCodes() *RandomCodes {
	return &RandomCodes{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *RandomCodes) NewCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(codeAlphabet[g.rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// RegistryService manages rooms on behalf of administrators.
type RegistryService struct {
	rooms  RoomRepository
	ledger ParticipantLedger
	cache  RoomCache
	codes  CodeGenerator
	clock  clockwork.Clock
}

func NewRegistryService(rooms RoomRepository, ledger ParticipantLedger, cache RoomCache, codes CodeGenerator, clock clockwork.Clock) *RegistryService {
	if codes == nil {
		codes = NewRandomCodes()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RegistryService{rooms: rooms, ledger: ledger, cache: cache, codes: codes, clock: clock}
}

// CreateRoom stores a new room under a freshly generated code.
func (s *RegistryService) CreateRoom(ctx context.Context, in RoomInput) (domain.RoomSnapshot, error) {
	questions, err := cleanQuestions(in.Questions)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if len(questions) == 0 {
		return domain.RoomSnapshot{}, fmt.Errorf("%w: at least one question is required", domain.ErrValidation)
	}
	if err := validateInput(in); err != nil {
		return domain.RoomSnapshot{}, err
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	now := s.clock.Now()
	room := domain.Room{
		Code:            code,
		Title:           orDefault(in.Title, defaultTitle),
		Prize:           orDefault(in.Prize, defaultPrize),
		StartTime:       in.StartTime,
		DurationMinutes: orDefaultInt(in.DurationMinutes, defaultDuration),
		MaxParticipants: orDefaultInt(in.MaxParticipants, defaultCapacity),
		RedirectLink:    orDefault(in.RedirectLink, defaultRedirectLink),
		Active:          in.Active != nil && *in.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.rooms.CreateRoom(ctx, &room, questions); err != nil {
		return domain.RoomSnapshot{}, err
	}
	log.Info().Str("room", room.Code).Int("capacity", room.MaxParticipants).Msg("room created")
	return domain.RoomSnapshot{Room: room, Questions: withRoom(questions, room.ID)}, nil
}

// UpdateRoom merges in over the stored room and replaces the question set when
// one is supplied.
func (s *RegistryService) UpdateRoom(ctx context.Context, id int64, in RoomInput) (domain.RoomSnapshot, error) {
	questions, err := cleanQuestions(in.Questions)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.RoomSnapshot{}, err
	}

	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	room.Title = orDefault(in.Title, room.Title)
	room.Prize = orDefault(in.Prize, room.Prize)
	if in.StartTime != nil {
		room.StartTime = in.StartTime
	}
	room.DurationMinutes = orDefaultInt(in.DurationMinutes, room.DurationMinutes)
	room.MaxParticipants = orDefaultInt(in.MaxParticipants, room.MaxParticipants)
	room.RedirectLink = orDefault(in.RedirectLink, room.RedirectLink)
	if in.Active != nil {
		room.Active = *in.Active
	}
	room.UpdatedAt = s.clock.Now()

	var replacement []domain.Question
	if len(questions) > 0 {
		replacement = questions
	}
	if err := s.rooms.UpdateRoom(ctx, &room, replacement); err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.cache.Invalidate(ctx, room.Code)

	stored, err := s.rooms.ListQuestions(ctx, room.ID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return domain.RoomSnapshot{Room: room, Questions: stored}, nil
}

// DeleteRoom removes a room; its questions and participants go with it.
func (s *RegistryService) DeleteRoom(ctx context.Context, id int64) error {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, room.Code)
	log.Info().Str("room", room.Code).Msg("room deleted")
	return nil
}

// ListRooms returns every room, newest first, with participation counters.
func (s *RegistryService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		stats, err := s.ledger.RoomStats(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, RoomSummary{
			Room:                  room,
			TotalParticipants:     stats.Total,
			CompletedParticipants: stats.Completed,
			SlotsRemaining:        stats.SlotsRemaining(room.MaxParticipants),
		})
	}
	return summaries, nil
}

// GetRoom returns the admin detail view of a room.
func (s *RegistryService) GetRoom(ctx context.Context, id int64) (RoomDetail, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return RoomDetail{}, err
	}
	questions, err := s.rooms.ListQuestions(ctx, id)
	if err != nil {
		return RoomDetail{}, err
	}
	participants, err := s.ledger.ListParticipants(ctx, id)
	if err != nil {
		return RoomDetail{}, err
	}
	completed := 0
	for _, p := range participants {
		if p.Completed() {
			completed++
		}
	}
	return RoomDetail{Room: room, Questions: questions, Participants: participants, CompletedCount: completed}, nil
}

// uniqueCode retries on collision a bounded number of times and then accepts
// the last candidate.
func (s *RegistryService) uniqueCode(ctx context.Context) (string, error) {
	code := s.codes.NewCode()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		exists, err := s.rooms.RoomCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		code = s.codes.NewCode()
	}
	log.Warn().Str("room", code).Msg("room code retries exhausted")
	return code, nil
}

func cleanQuestions(in []QuestionInput) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(in))
	for _, q := range in {
		text := strings.TrimSpace(q.Text)
		answer := strings.TrimSpace(q.CorrectAnswer)
		if text == "" && answer == "" {
			continue
		}
		if text == "" || answer == "" {
			return nil, fmt.Errorf("%w: question %d needs both text and answer", domain.ErrValidation, len(out)+1)
		}
		out = append(out, domain.Question{
			Text:          text,
			CorrectAnswer: answer,
			Hint:          strings.TrimSpace(q.Hint),
			Order:         len(out),
		})
	}
	return out, nil
}

func validateInput(in RoomInput) error {
	if in.MaxParticipants < 0 {
		return fmt.Errorf("%w: maxParticipants must be at least 1", domain.ErrValidation)
	}
	if in.DurationMinutes < 0 {
		return fmt.Errorf("%w: durationMinutes must be positive", domain.ErrValidation)
	}
	if in.RedirectLink != "" {
		u, err := url.Parse(in.RedirectLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: redirectLink must be an http(s) URL", domain.ErrValidation)
		}
	}
	return nil
}

func withRoom(questions []domain.Question, roomID int64) []domain.Question {
	for i := range questions {
		questions[i].RoomID = roomID
	}
	return questions
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func orDefaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
