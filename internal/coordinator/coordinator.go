// Package coordinator manages one driver's view of the shared delivery pool:
// at most one active task at a time, driven through its status sequence and
// folded into the history ledger on completion. All mutation of pool, active,
// and history happens through the operations here, and local state is only
// ever re-derived from the order service's authoritative responses.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fooddash/courierd/internal/ledger"
	"github.com/fooddash/courierd/internal/models"
	"github.com/fooddash/courierd/internal/notify"
	"github.com/fooddash/courierd/internal/orderapi"
	"github.com/fooddash/courierd/internal/session"
)

// OrderService is the slice of the order API the coordinator consumes.
type OrderService interface {
	ListAvailable(ctx context.Context) ([]models.Task, error)
	ListActiveFor(ctx context.Context, agentID string) (*models.Task, error)
	ListHistoryFor(ctx context.Context, agentID string) ([]models.Task, error)
	Accept(ctx context.Context, taskID, agentID string) (*models.Task, error)
	UpdateStatus(ctx context.Context, taskID, backendStatus string) (*models.Task, error)
	UpdateAvailability(ctx context.Context, agentID string, online bool) error
}

// Coordinator owns the pool, active slot, and history for one agent session.
// Construct on login, discard on logout; it is never a process-wide singleton.
type Coordinator struct {
	orders   OrderService
	session  *session.Session
	notifier notify.Notifier
	history  *ledger.Ledger
	logger   *slog.Logger

	mu     sync.Mutex
	pool   []models.Task
	active *models.Task
	sched  *Scheduler

	// One in-flight operation per class; a second attempt is rejected
	// immediately, never queued.
	refreshBusy bool
	acceptBusy  bool
	advanceBusy bool
}

// New returns a Coordinator bound to one driver session.
func New(orders OrderService, sess *session.Session, notifier notify.Notifier, history *ledger.Ledger, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		orders:   orders,
		session:  sess,
		notifier: notifier,
		history:  history,
		logger:   logger,
	}
}

// Snapshot is the coordinator state the presentation layer renders.
type Snapshot struct {
	AgentID       string        `json:"agent_id"`
	DisplayName   string        `json:"display_name"`
	Online        bool          `json:"online"`
	Pool          []models.Task `json:"pool"`
	Active        *models.Task  `json:"active,omitempty"`
	History       []models.Task `json:"history"`
	EarningsCents int64         `json:"earnings_cents"`
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	pool := make([]models.Task, len(c.pool))
	copy(pool, c.pool)
	var active *models.Task
	if c.active != nil {
		cp := *c.active
		active = &cp
	}
	c.mu.Unlock()

	return Snapshot{
		AgentID:       c.session.AgentID(),
		DisplayName:   c.session.DisplayName(),
		Online:        c.session.Online(),
		Pool:          pool,
		Active:        active,
		History:       c.history.List(),
		EarningsCents: c.history.Earnings(),
	}
}

// RefreshPool replaces the pool wholesale with the server's current snapshot
// of acceptable tasks. Offline drivers get an empty pool without a fetch; a
// fetch error leaves the previous snapshot in place. A refresh already in
// flight makes this a no-op.
func (c *Coordinator) RefreshPool(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshBusy {
		c.mu.Unlock()
		return nil
	}
	c.refreshBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.refreshBusy = false
		c.mu.Unlock()
	}()

	if !c.session.Online() {
		c.mu.Lock()
		c.pool = nil
		c.mu.Unlock()
		return nil
	}

	tasks, err := c.orders.ListAvailable(ctx)
	if err != nil {
		c.logger.Error("pool refresh failed", "error", err)
		c.notifier.Notify("Could not load available deliveries.", notify.LevelError)
		return err
	}

	c.mu.Lock()
	c.pool = c.withoutActive(tasks)
	c.mu.Unlock()

	c.warnUnknown(tasks)
	return nil
}

// AcceptTask claims a pool task for this driver. The at-most-one-active
// invariant is checked locally before any network call; the server remains
// authoritative for the race against other drivers.
func (c *Coordinator) AcceptTask(ctx context.Context, taskID string) (*models.Task, error) {
	c.mu.Lock()
	if c.acceptBusy {
		c.mu.Unlock()
		return nil, &ConflictError{Reason: "an accept is already in flight"}
	}
	if c.active != nil {
		c.mu.Unlock()
		err := &ConflictError{Reason: "you already have an active delivery"}
		c.notifier.Notify(err.Reason, notify.LevelError)
		return nil, err
	}
	c.acceptBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.acceptBusy = false
		c.mu.Unlock()
	}()

	task, err := c.orders.Accept(ctx, taskID, c.session.AgentID())
	if err != nil {
		var stale *orderapi.StaleTaskError
		if errors.As(err, &stale) {
			c.notifier.Notify("That delivery was already taken; refreshing offers.", notify.LevelInfo)
			if rerr := c.RefreshPool(ctx); rerr != nil {
				c.logger.Warn("pool refresh after stale accept failed", "error", rerr)
			}
			return nil, err
		}
		c.notifier.Notify("Could not accept the delivery.", notify.LevelError)
		return nil, err
	}

	c.mu.Lock()
	c.active = task
	c.pool = c.withoutActive(c.pool)
	c.mu.Unlock()

	c.notifier.Notify(fmt.Sprintf("Delivery #%s accepted.", task.ID), notify.LevelSuccess)
	c.warnUnknown([]models.Task{*task})
	c.stateChanged()
	return task, nil
}

// Advance asks the server to move the active task to the requested status.
// Transitions are all-or-nothing relative to the server response: on failure
// the active slot is untouched; on a terminal response the task is stamped,
// appended to history, and the slot cleared before the follow-up pool refresh.
func (c *Coordinator) Advance(ctx context.Context, intent models.TaskStatus) (*models.Task, error) {
	c.mu.Lock()
	if c.advanceBusy {
		c.mu.Unlock()
		return nil, &ConflictError{Reason: "a status update is already in flight"}
	}
	if c.active == nil {
		c.mu.Unlock()
		err := &ConflictError{Reason: "no active delivery to update"}
		c.notifier.Notify(err.Reason, notify.LevelError)
		return nil, err
	}
	taskID := c.active.ID
	c.advanceBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.advanceBusy = false
		c.mu.Unlock()
	}()

	command, ok := models.BackendCommand(intent)
	if !ok {
		err := &ConflictError{Reason: fmt.Sprintf("cannot request status %q", intent)}
		c.notifier.Notify(err.Reason, notify.LevelError)
		return nil, err
	}

	task, err := c.orders.UpdateStatus(ctx, taskID, command)
	if err != nil {
		c.logger.Error("status update failed", "task_id", taskID, "error", err)
		c.notifier.Notify("Could not update the delivery status.", notify.LevelError)
		return nil, err
	}

	if task.Status.Terminal() {
		now := time.Now().UTC()
		task.CompletedAt = &now

		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()

		c.history.Append(*task)
		if task.Status == models.StatusDelivered {
			c.notifier.Notify(fmt.Sprintf("Delivery #%s completed.", task.ID), notify.LevelSuccess)
		} else {
			c.notifier.Notify(fmt.Sprintf("Delivery #%s cancelled.", task.ID), notify.LevelInfo)
		}

		c.stateChanged()
		// The driver is free again; refresh after the history mutation, never
		// concurrently with it.
		if rerr := c.RefreshPool(ctx); rerr != nil {
			c.logger.Warn("pool refresh after completion failed", "error", rerr)
		}
		return task, nil
	}

	// Non-terminal: replace, don't patch, so unanticipated server fields win.
	c.mu.Lock()
	c.active = task
	c.pool = c.withoutActive(c.pool)
	c.mu.Unlock()

	c.notifier.Notify(fmt.Sprintf("Status changed to %q.", string(task.Status)), notify.LevelSuccess)
	c.warnUnknown([]models.Task{*task})
	return task, nil
}

// SetOnline flips the driver's availability. The flag changes only after the
// backend acknowledges; going offline clears the pool, coming online
// re-hydrates the active slot and refreshes offers.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) error {
	if err := c.orders.UpdateAvailability(ctx, c.session.AgentID(), online); err != nil {
		c.logger.Error("availability update failed", "error", err)
		c.notifier.Notify("Could not change availability.", notify.LevelError)
		return err
	}

	c.session.SetOnline(online)
	if online {
		c.hydrateActive(ctx)
		c.notifier.Notify("You are online.", notify.LevelSuccess)
		if err := c.RefreshPool(ctx); err != nil {
			c.logger.Warn("pool refresh after going online failed", "error", err)
		}
	} else {
		c.mu.Lock()
		c.pool = nil
		c.mu.Unlock()
		c.notifier.Notify("You are offline.", notify.LevelSuccess)
	}

	c.stateChanged()
	return nil
}

// Hydrate performs the session-start fetches: the driver's current active
// task (if any), their history, and — when online — the pool.
func (c *Coordinator) Hydrate(ctx context.Context) {
	c.hydrateActive(ctx)

	history, err := c.orders.ListHistoryFor(ctx, c.session.AgentID())
	if err != nil {
		c.logger.Error("history fetch failed", "error", err)
		c.notifier.Notify("Could not load delivery history.", notify.LevelError)
	} else {
		c.history.Hydrate(history)
	}

	if c.session.Online() {
		if err := c.RefreshPool(ctx); err != nil {
			c.logger.Warn("initial pool refresh failed", "error", err)
		}
	}
}

// hydrateActive re-derives the active slot from the server. No active task is
// the normal case, not an error worth a notification.
func (c *Coordinator) hydrateActive(ctx context.Context) {
	task, err := c.orders.ListActiveFor(ctx, c.session.AgentID())
	if err != nil {
		c.logger.Warn("active task fetch failed", "error", err)
		return
	}

	c.mu.Lock()
	c.active = task
	c.pool = c.withoutActive(c.pool)
	c.mu.Unlock()

	if task != nil {
		c.warnUnknown([]models.Task{*task})
	}
	c.stateChanged()
}

// withoutActive filters the active task's id out of a pool snapshot so the
// two collections stay disjoint. Callers hold c.mu.
func (c *Coordinator) withoutActive(tasks []models.Task) []models.Task {
	if c.active == nil {
		return tasks
	}
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.ID != c.active.ID {
			out = append(out, t)
		}
	}
	return out
}

// warnUnknown reports tasks the status mapper could not classify. They stay
// in place for manual recovery.
func (c *Coordinator) warnUnknown(tasks []models.Task) {
	for _, t := range tasks {
		if t.Status == models.StatusUnknown {
			uerr := &UnknownStatusError{TaskID: t.ID}
			c.logger.Warn("unrecognized task status", "task_id", t.ID)
			c.notifier.Notify(uerr.Error(), notify.LevelWarning)
		}
	}
}

func (c *Coordinator) attachScheduler(s *Scheduler) {
	c.mu.Lock()
	c.sched = s
	c.mu.Unlock()
}

// stateChanged wakes the scheduler so it re-evaluates whether polling should
// run, the instant online/active transitions happen.
func (c *Coordinator) stateChanged() {
	c.mu.Lock()
	s := c.sched
	c.mu.Unlock()
	if s != nil {
		s.Kick()
	}
}

// shouldPoll reports whether the periodic pool refresh should be running.
func (c *Coordinator) shouldPoll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Online() && c.active == nil
}
