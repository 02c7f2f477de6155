package http

import "net/http"

// NewMux mounts the participant, admin and live-feed routes plus /healthz.
func NewMux(public *Handler, admin *AdminHandler, ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	public.Register(mux)
	admin.Register(mux)
	ws.Register(mux)
	return mux
}
