// Package queue defines message payloads exchanged over the message broker
// and the best-effort publisher that delivers them.  Downstream consumers
// (notification emails, analytics) are out of scope; the pipeline only
// guarantees that events are offered to the broker without ever blocking
// or failing a booking.
package queue

// AssignmentStateChangedEvent is published on every assignment state
// transition as "booking.assignment_state.{to}".  It carries enough
// information for consumers to react without querying the primary
// database.
type AssignmentStateChangedEvent struct {
    BookingID    uint64         `json:"booking_id"`
    RestaurantID uint64         `json:"restaurant_id"`
    FromState    string         `json:"from_state"`
    ToState      string         `json:"to_state"`
    Version      int64          `json:"version"`
    Metadata     map[string]any `json:"metadata,omitempty"`
    OccurredAt   string         `json:"occurred_at"`
}

// AssignmentConfirmedEvent is published once a hold has been durably
// converted into a confirmed table assignment.
type AssignmentConfirmedEvent struct {
    BookingID    uint64   `json:"booking_id"`
    RestaurantID uint64   `json:"restaurant_id"`
    HoldID       string   `json:"hold_id"`
    Strategy     string   `json:"strategy"`
    TableIDs     []uint64 `json:"table_ids"`
    ConfirmedAt  string   `json:"confirmed_at"`
}
