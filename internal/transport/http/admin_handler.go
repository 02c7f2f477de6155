package http

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
)

// AdminHandler serves administrator account and room management routes.
type AdminHandler struct {
	auth           *app.AuthService
	registry       *app.RegistryService
	trustedProxies []netip.Prefix
}

type AdminOption func(*AdminHandler)

// WithTrustedProxies makes login throttling key on the X-Forwarded-For
// client when the request arrives through one of proxies.
func WithTrustedProxies(proxies []netip.Prefix) AdminOption {
	return func(h *AdminHandler) {
		h.trustedProxies = proxies
	}
}

func NewAdminHandler(auth *app.AuthService, registry *app.RegistryService, opts ...AdminOption) *AdminHandler {
	h := &AdminHandler{auth: auth, registry: registry}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the admin routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/exists", h.Exists)
	mux.HandleFunc("POST /api/admin/setup", h.Setup)
	mux.HandleFunc("POST /api/admin/login", h.Login)

	mux.Handle("GET /api/quizzes", h.authorized(h.ListRooms))
	mux.Handle("POST /api/quizzes", h.authorized(h.CreateRoom))
	mux.Handle("GET /api/quizzes/{id}", h.authorized(h.GetRoom))
	mux.Handle("PUT /api/quizzes/{id}", h.authorized(h.UpdateRoom))
	mux.Handle("DELETE /api/quizzes/{id}", h.authorized(h.DeleteRoom))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type roomResponse struct {
	Room      domain.Room       `json:"quiz"`
	Questions []domain.Question `json:"questions"`
}

// authorized accepts a bearer token or the secretKey query parameter.
func (h *AdminHandler) authorized(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := r.URL.Query().Get("secretKey")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			credential = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		if _, err := h.auth.Authorize(r.Context(), credential); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	})
}

func (h *AdminHandler) Exists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.auth.AdminExists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *AdminHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, err := h.auth.SetupAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "admin created",
		"admin":   adminView{ID: admin.ID, Username: admin.Username},
	})
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := h.auth.Login(r.Context(), clientIP(r, h.trustedProxies), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AdminHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.registry.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": rooms})
}

func (h *AdminHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var in app.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	snap, err := h.registry.CreateRoom(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{Room: snap.Room, Questions: snap.Questions})
}

func (h *AdminHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	detail, err := h.registry.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *AdminHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	var in app.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	snap, err := h.registry.UpdateRoom(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: snap.Room, Questions: snap.Questions})
}

func (h *AdminHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	if err := h.registry.DeleteRoom(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "room deleted"})
}

func roomID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid room id"})
		return 0, false
	}
	return id, true
}
