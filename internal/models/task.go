package models

import "time"

// Task is one deliverable order as seen by a driver. Display fields are
// opaque strings already flattened from the order service's nested shape.
// PayoutCents is what the driver earns on delivery; amounts are integer cents
// to keep the earnings fold exact.
type Task struct {
	ID                   string     `json:"id"`
	PayoutCents          int64      `json:"payout_cents"`
	RestaurantName       string     `json:"restaurant_name"`
	RestaurantAddress    string     `json:"restaurant_address"`
	CustomerName         string     `json:"customer_name,omitempty"`
	CustomerAddress      string     `json:"customer_address"`
	ItemsSummary         string     `json:"items_summary"`
	DeliveryInstructions string     `json:"delivery_instructions,omitempty"`
	Status               TaskStatus `json:"status"`
	AgentID              string     `json:"agent_id,omitempty"`
	// CompletedAt is stamped client-side when a status update reports a
	// terminal status, just before the task enters history.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AgentProfile is the driver identity returned by the order service on login.
type AgentProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	IsOnline    bool   `json:"is_online"`
}
