package models

import "strings"

// TaskStatus is the coordinator's view of where a delivery task sits in its
// lifecycle. The backend speaks a wider vocabulary; MapStatus collapses it
// into this closed set.
type TaskStatus string

const (
	StatusAwaitingAcceptance TaskStatus = "awaiting_acceptance"
	StatusAssigned           TaskStatus = "assigned"
	StatusPickedUp           TaskStatus = "picked_up"
	StatusEnRoute            TaskStatus = "en_route"
	StatusDelivered          TaskStatus = "delivered"
	StatusCancelled          TaskStatus = "cancelled"
	StatusUnknown            TaskStatus = "unknown"
)

// Backend status vocabulary (order service wire values).
const (
	BackendStatusPending            = "PENDING"
	BackendStatusConfirmed          = "CONFIRMED"
	BackendStatusCooking            = "COOKING"
	BackendStatusReadyForPickup     = "READY_FOR_PICKUP"
	BackendStatusPickedUp           = "PICKED_UP"
	BackendStatusOnTheWay           = "ON_THE_WAY"
	BackendStatusDelivered          = "DELIVERED"
	BackendStatusCancelled          = "CANCELLED"
	BackendStatusCancelledByUser    = "CANCELLED_BY_USER"
	BackendStatusCancelledByKitchen = "CANCELLED_BY_RESTAURANT"
	BackendStatusCancelledByDriver  = "CANCELLED_BY_DRIVER"
	BackendStatusFailedDelivery     = "FAILED_DELIVERY"
)

// MapStatus translates a backend status string into a TaskStatus. It is total:
// anything outside the known vocabulary maps to StatusUnknown rather than
// failing, so a backend rollout of a new status can never crash the
// coordinator. CONFIRMED is context-sensitive: the backend reuses it both for
// orders a restaurant has confirmed and for orders a driver has accepted, so
// it only counts as assigned when the task already carries an agent id.
func MapStatus(backendStatus string, hasAgent bool) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(backendStatus)) {
	case BackendStatusReadyForPickup:
		return StatusAwaitingAcceptance
	case BackendStatusConfirmed:
		if hasAgent {
			return StatusAssigned
		}
		return StatusUnknown
	case BackendStatusPickedUp:
		return StatusPickedUp
	case BackendStatusOnTheWay:
		return StatusEnRoute
	case BackendStatusDelivered:
		return StatusDelivered
	case BackendStatusCancelled,
		BackendStatusCancelledByUser,
		BackendStatusCancelledByKitchen,
		BackendStatusCancelledByDriver,
		BackendStatusFailedDelivery:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// BackendCommand maps an advance intent to the backend command word for the
// status-update call. The second return is false for statuses a driver can
// never request (there is no command to re-enter the pool or to jump to
// assigned). Cancellation is always attributed to the driver.
func BackendCommand(intent TaskStatus) (string, bool) {
	switch intent {
	case StatusPickedUp:
		return BackendStatusPickedUp, true
	case StatusEnRoute:
		return BackendStatusOnTheWay, true
	case StatusDelivered:
		return BackendStatusDelivered, true
	case StatusCancelled:
		return BackendStatusCancelledByDriver, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PoolEligible reports whether a task with this status belongs in the shared
// pool of unassigned offers.
func (s TaskStatus) PoolEligible() bool {
	return s == StatusAwaitingAcceptance
}
