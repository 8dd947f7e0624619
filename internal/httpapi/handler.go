// Package httpapi is the presentation boundary: a small local JSON API the
// browser-based driver UI consumes. It owns the session lifecycle — a
// coordinator and its scheduler are constructed on login and torn down on
// logout, never shared across sessions.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fooddash/courierd/internal/coordinator"
	"github.com/fooddash/courierd/internal/ledger"
	"github.com/fooddash/courierd/internal/models"
	"github.com/fooddash/courierd/internal/notify"
	"github.com/fooddash/courierd/internal/orderapi"
	"github.com/fooddash/courierd/internal/session"
)

const feedRetention = 50

// OrderClient is the full order API surface the handler needs: everything
// the coordinator consumes plus login.
type OrderClient interface {
	coordinator.OrderService
	Login(ctx context.Context, email, password string) (string, *models.AgentProfile, error)
}

// Handler serves the /api/v1 driver endpoints.
type Handler struct {
	Orders       OrderClient
	Store        *session.Store
	Logger       *slog.Logger
	PollInterval time.Duration

	mu sync.Mutex
	rt *agentRuntime
}

// agentRuntime is everything constructed for one logged-in driver.
type agentRuntime struct {
	sess  *session.Session
	coord *coordinator.Coordinator
	sched *coordinator.Scheduler
	feed  *notify.Feed
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

// Login exchanges driver credentials for a backend token and brings up the
// coordinator for that driver. A still-running previous session is torn down
// first.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"email and password required"}`, http.StatusBadRequest)
		return
	}

	token, profile, err := h.Orders.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.Logger.Warn("login failed", "email", req.Email, "error", err)
		writeError(w, err)
		return
	}

	sess, err := session.New(token, profile.ID, profile.DisplayName)
	if err != nil {
		h.Logger.Error("unusable credential from backend", "error", err)
		http.Error(w, `{"error":"backend returned an unusable credential"}`, http.StatusBadGateway)
		return
	}
	sess.SetOnline(profile.IsOnline)

	feed := notify.NewFeed(feedRetention)
	notifier := notify.Fanout{&notify.LogNotifier{Logger: h.Logger}, feed}
	coord := coordinator.New(h.Orders, sess, notifier, ledger.New(), h.Logger)
	sched := coordinator.NewScheduler(coord, h.PollInterval)

	h.mu.Lock()
	prev := h.rt
	h.rt = &agentRuntime{sess: sess, coord: coord, sched: sched, feed: feed}
	h.mu.Unlock()
	if prev != nil {
		prev.sched.Stop()
	}

	// The store must carry the credential before the first outbound fetch.
	h.Store.Set(sess)
	sched.Start(context.Background())

	h.Logger.Info("driver session started", "agent_id", sess.AgentID())
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		AgentID:     sess.AgentID(),
		DisplayName: sess.DisplayName(),
		Online:      sess.Online(),
	})
}

// Logout stops the scheduler and discards all session state.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	rt := h.rt
	h.rt = nil
	h.mu.Unlock()

	h.Store.Clear()
	if rt != nil {
		rt.sched.Stop()
		h.Logger.Info("driver session ended", "agent_id", rt.sess.AgentID())
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard returns the full coordinator snapshot the UI renders.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.runtime(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.coord.Snapshot())
}

type availabilityRequest struct {
	Online bool `json:"online"`
}

// SetAvailability flips the driver online/offline.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.runtime(w)
	if !ok {
		return
	}
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if err := rt.coord.SetOnline(r.Context(), req.Online); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.coord.Snapshot())
}

// AcceptTask claims a pool task for the driver.
func (h *Handler) AcceptTask(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.runtime(w)
	if !ok {
		return
	}
	taskID := r.PathValue("id")
	if taskID == "" {
		http.Error(w, `{"error":"task id required"}`, http.StatusBadRequest)
		return
	}
	task, err := rt.coord.AcceptTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type advanceRequest struct {
	Status models.TaskStatus `json:"status"`
}

// AdvanceTask moves the active delivery to the requested status.
func (h *Handler) AdvanceTask(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.runtime(w)
	if !ok {
		return
	}
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, `{"error":"status required"}`, http.StatusBadRequest)
		return
	}
	task, err := rt.coord.Advance(r.Context(), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Notifications returns the recent notification feed, newest first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.runtime(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.feed.Recent())
}

// runtime fetches the current session runtime, writing a 401 when nobody is
// logged in.
func (h *Handler) runtime(w http.ResponseWriter) (*agentRuntime, bool) {
	h.mu.Lock()
	rt := h.rt
	h.mu.Unlock()
	if rt == nil {
		http.Error(w, `{"error":"not logged in"}`, http.StatusUnauthorized)
		return nil, false
	}
	return rt, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the coordinator error taxonomy to HTTP statuses: local
// conflicts are 409, stale tasks 410, backend trouble 502.
func writeError(w http.ResponseWriter, err error) {
	var (
		conflict  *coordinator.ConflictError
		stale     *orderapi.StaleTaskError
		transport *orderapi.TransportError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &stale):
		status = http.StatusGone
	case errors.As(err, &transport):
		status = http.StatusBadGateway
		if transport.StatusCode == http.StatusUnauthorized {
			status = http.StatusUnauthorized
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
