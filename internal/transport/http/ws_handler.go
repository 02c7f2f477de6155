package http

import (
	"net/http"

	"giveaway-quiz-service/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSHandler streams the live winner-slot count of a room.
type WSHandler struct {
	admission *app.AdmissionService
	upgrader  websocket.Upgrader
}

func NewWSHandler(admission *app.AdmissionService) *WSHandler {
	return &WSHandler{
		admission: admission,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/room/{code}", h.ServeWS)
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS sends the current room status followed by a "slots" message for
// every claimed winner slot until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", code).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	// subscribe before reading the status so no update falls in between
	updates, cancel, err := h.admission.Subscribe(r.Context(), code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	status, err := h.admission.RoomStatus(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("ws room status")
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "internal server error"}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("room", code).Msg("ws write")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "slots", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "status", Payload: status}

	// the stream is server to client; reads only detect disconnects
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
