package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/fooddash/courierd/internal/models"
)

func listCount(m *mockOrders) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func TestSchedulerPollsWhileOnlineAndIdle(t *testing.T) {
	orders := newMockOrders(poolTask("T1", 100))
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()

	// Hydration fires one refresh; the ticker must add more.
	waitFor(t, func() bool { return listCount(orders) >= 3 })
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	orders := newMockOrders()
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	// A second Stop on an already-stopped scheduler must not hang or panic.
	s.Stop()
}

func TestSchedulerStopsPollingWhenTaskAccepted(t *testing.T) {
	orders := newMockOrders(poolTask("T1", 100))
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return listCount(orders) >= 1 })

	if _, err := c.AcceptTask(context.Background(), "T1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Let any already-queued tick drain, then confirm polling has ceased.
	time.Sleep(30 * time.Millisecond)
	before := listCount(orders)
	time.Sleep(60 * time.Millisecond)
	if after := listCount(orders); after != before {
		t.Errorf("pool refreshes continued with an active task: %d -> %d", before, after)
	}
}

func TestSchedulerStopsPollingWhenOffline(t *testing.T) {
	orders := newMockOrders(poolTask("T1", 100))
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return listCount(orders) >= 1 })

	if err := c.SetOnline(context.Background(), false); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	before := listCount(orders)
	time.Sleep(60 * time.Millisecond)
	if after := listCount(orders); after != before {
		t.Errorf("pool refreshes continued while offline: %d -> %d", before, after)
	}
	if len(c.Snapshot().Pool) != 0 {
		t.Error("pool must be empty while offline")
	}
}

// Stop must kill the polling goroutine outright; a timer that keeps firing
// after teardown is a leak.
func TestSchedulerStopHaltsCompletely(t *testing.T) {
	orders := newMockOrders(poolTask("T1", 100))
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	waitFor(t, func() bool { return listCount(orders) >= 2 })
	s.Stop()

	before := listCount(orders)
	time.Sleep(60 * time.Millisecond)
	if after := listCount(orders); after != before {
		t.Errorf("refreshes after Stop: %d -> %d", before, after)
	}
}

func TestSchedulerResumesWhenTaskCompletes(t *testing.T) {
	orders := newMockOrders(poolTask("T1", 100))
	c, _ := newCoordinator(t, orders, "driver-1")
	s := NewScheduler(c, 10*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return listCount(orders) >= 1 })

	ctx := context.Background()
	if _, err := c.AcceptTask(ctx, "T1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := c.Advance(ctx, models.StatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// Free again: polling must restart.
	before := listCount(orders)
	waitFor(t, func() bool { return listCount(orders) > before })
}
