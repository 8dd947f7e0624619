package orderapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fooddash/courierd/internal/models"
)

// wireTask is the order service's JSON shape for one order, as produced by
// its serializers. Ids arrive as numbers, money as decimal strings, the
// restaurant as a nested object and the driver as a nullable id.
type wireTask struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	Driver            json.RawMessage `json:"driver"`
	Restaurant        *wireRestaurant `json:"restaurant"`
	RestaurantDetails *wireRestaurant `json:"restaurant_details"`
	Customer          *wireCustomer   `json:"customer"`
	DeliveryStreet    string          `json:"delivery_address_street"`
	DeliveryCity      string          `json:"delivery_address_city"`
	DeliveryNotes     string          `json:"delivery_address_notes"`
	Items             []wireItem      `json:"items"`
	TotalAmount       string          `json:"total_amount"`
	DriverPayout      string          `json:"driver_payout"`
}

type wireRestaurant struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	AddressDetails *struct {
		Street string `json:"street"`
		City   string `json:"city"`
	} `json:"address_details"`
}

type wireCustomer struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type wireItem struct {
	Quantity int    `json:"quantity"`
	Name     string `json:"item_name_at_purchase"`
	MenuName string `json:"menu_item_name_at_purchase"`
}

// driverPayoutShare is applied to the order total when the serializer omits
// an explicit driver_payout.
const driverPayoutShare = 8

// taskFromWire flattens a wire order into the coordinator's Task. It never
// fails on content: unparseable money becomes zero and unrecognized statuses
// become StatusUnknown, so a single malformed order cannot poison a fetch.
func taskFromWire(w wireTask) models.Task {
	agentID := driverID(w.Driver)

	t := models.Task{
		ID:                   w.ID.String(),
		Status:               models.MapStatus(w.Status, agentID != ""),
		AgentID:              agentID,
		DeliveryInstructions: w.DeliveryNotes,
	}

	rest := w.RestaurantDetails
	if rest == nil {
		rest = w.Restaurant
	}
	if rest != nil {
		t.RestaurantName = rest.Name
		t.RestaurantAddress = rest.Address
		if rest.AddressDetails != nil && rest.AddressDetails.Street != "" {
			t.RestaurantAddress = rest.AddressDetails.Street + ", " + rest.AddressDetails.City
		}
	}

	if w.Customer != nil {
		t.CustomerName = w.Customer.FullName
		if t.CustomerName == "" {
			t.CustomerName = w.Customer.Email
		}
	}
	t.CustomerAddress = joinNonEmpty(w.DeliveryStreet, w.DeliveryCity)

	parts := make([]string, 0, len(w.Items))
	for _, it := range w.Items {
		name := it.Name
		if name == "" {
			name = it.MenuName
		}
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, name))
	}
	t.ItemsSummary = strings.Join(parts, ", ")

	if cents, err := parseCents(w.DriverPayout); err == nil && cents > 0 {
		t.PayoutCents = cents
	} else if total, err := parseCents(w.TotalAmount); err == nil {
		t.PayoutCents = total * driverPayoutShare / 100
	}

	return t
}

// driverID extracts the owning driver's id from the nullable driver field,
// which arrives either as a bare id (number or string) or as null.
func driverID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// parseCents converts a decimal money string like "25.50" to integer cents
// without going through floats.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if units < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	var cents int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	return units*100 + cents, nil
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
