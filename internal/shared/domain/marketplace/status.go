package marketplace

import (
	"fmt"
	"strings"
)

// OrderStatus is the canonical lifecycle status of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// statusRank orders statuses along the lifecycle. Cancellation ranks highest
// so it can terminate an order from any earlier state.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusReady:     3,
	StatusPickedUp:  4,
	StatusCompleted: 5,
	StatusCancelled: 6,
}

// Rank returns the position of s in the lifecycle, or -1 for an unknown status.
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a canonical status.
func (s OrderStatus) Valid() bool {
	return s.Rank() >= 0
}

// Terminal reports whether no further transitions are expected.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus accepts a canonical status name in any case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Advances reports whether moving from current to next moves the order forward.
// Equal ranks are not an advance; the caller acknowledges them as no-ops.
func Advances(current, next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	return next.Rank() > current.Rank()
}
