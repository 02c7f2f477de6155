package http

import (
	"net/http"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
)

// Handler serves the participant API.
type Handler struct {
	admission *app.AdmissionService
}

func NewHandler(admission *app.AdmissionService) *Handler {
	return &Handler{admission: admission}
}

// Register mounts the participant routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/room/{code}", h.RoomStatus)
	mux.HandleFunc("GET /api/quiz/public", h.PublicRoomStatus)
	mux.HandleFunc("POST /api/quiz/join", h.Join)
	mux.HandleFunc("POST /api/quiz/complete", h.Complete)
}

type joinRequest struct {
	SessionID string `json:"sessionId"`
	RoomCode  string `json:"roomCode"`
	VisitorID string `json:"visitorId"`
}

type completeRequest struct {
	SessionID string `json:"sessionId"`
}

type successResponse struct {
	Success      bool   `json:"success"`
	RedirectLink string `json:"redirectLink,omitempty"`
}

func (h *Handler) RoomStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.admission.RoomStatus(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) PublicRoomStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.admission.ActiveRoomStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.admission.JoinRoom(r.Context(), req.RoomCode, req.SessionID, req.VisitorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := outcome.Err(domain.ErrRoomNotFound); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.admission.CompleteQuiz(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := result.Outcome.Err(domain.ErrParticipantNotFound); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, RedirectLink: result.Room.RedirectLink})
}
