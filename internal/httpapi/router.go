package httpapi

import "net/http"

// NewRouter wires the /api/v1 endpoints. Everything except login requires
// the current session's bearer credential.
func NewRouter(h *Handler) http.Handler {
	auth := RequireSession(h.Store)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/session/login", h.Login)
	mux.Handle("POST /api/v1/session/logout", auth(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/v1/dashboard", auth(http.HandlerFunc(h.Dashboard)))
	mux.Handle("POST /api/v1/availability", auth(http.HandlerFunc(h.SetAvailability)))
	mux.Handle("POST /api/v1/tasks/{id}/accept", auth(http.HandlerFunc(h.AcceptTask)))
	mux.Handle("POST /api/v1/tasks/active/advance", auth(http.HandlerFunc(h.AdvanceTask)))
	mux.Handle("GET /api/v1/notifications", auth(http.HandlerFunc(h.Notifications)))
	return mux
}
