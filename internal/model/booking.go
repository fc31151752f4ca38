package model

import "time"

// AssignmentState is the coordination lifecycle state of a booking's table
// assignment.  It is distinct from the booking's guest-facing status: a
// booking may be "confirmed" to the guest while its assignment is still
// being worked on.  States are advanced exclusively through the assignment
// state machine and persisted together with a strictly increasing version.
type AssignmentState string

// The full set of assignment states.  Created, CapacityVerified and
// AssignmentPending are transient pre-states; Confirmed, Failed and
// ManualReview are terminal.
const (
    StateCreated              AssignmentState = "created"
    StateCapacityVerified     AssignmentState = "capacity_verified"
    StateAssignmentPending    AssignmentState = "assignment_pending"
    StateAssignmentInProgress AssignmentState = "assignment_in_progress"
    StateAssigned             AssignmentState = "assigned"
    StateConfirmed            AssignmentState = "confirmed"
    StateFailed               AssignmentState = "failed"
    StateManualReview         AssignmentState = "manual_review"
)

// Terminal reports whether the state permits no further transitions.
// Re-triggering assignment on a booking in a terminal state is a no-op.
func (s AssignmentState) Terminal() bool {
    switch s {
    case StateConfirmed, StateFailed, StateManualReview:
        return true
    }
    return false
}

// Booking is the subset of a booking row that the assignment pipeline reads
// and advances.  Bookings are created and validated by the booking
// subsystem; this module never inserts them and only ever writes the
// assignment fields and the guest-facing status during hold confirmation.
//
// Fields:
//  ID                     – primary key identifier.
//  RestaurantID           – restaurant the booking belongs to.
//  RestaurantTimezone     – IANA timezone of the restaurant (joined in).
//  BookingDate            – local calendar date, "2006-01-02".
//  StartTime              – local start time, "15:04" (used when StartAt is unset).
//  StartAt / EndAt        – absolute UTC window when already materialised.
//  PartySize              – number of guests to seat.
//  AssignedZoneID         – floor zone pinned by an operator (nil when unset).
//  Status                 – guest-facing booking status.
//  AssignmentState        – coordination state, see AssignmentState.
//  AssignmentStateVersion – optimistic-concurrency counter for the state.
//  AssignmentStrategy     – strategy that produced the confirmed assignment.
type Booking struct {
    ID                     uint64          // bookings.id
    RestaurantID           uint64          // bookings.restaurant_id
    RestaurantTimezone     string          // restaurants.timezone
    BookingDate            string          // bookings.booking_date
    StartTime              string          // bookings.start_time
    StartAt                *time.Time      // bookings.start_at (nullable)
    EndAt                  *time.Time      // bookings.end_at (nullable)
    PartySize              int             // bookings.party_size
    AssignedZoneID         *uint64         // bookings.assigned_zone_id (nullable)
    Status                 string          // bookings.status
    AssignmentState        AssignmentState // bookings.assignment_state
    AssignmentStateVersion int64           // bookings.assignment_state_version
    AssignmentStrategy     *string         // bookings.assignment_strategy (nullable)
}

// TimeSlot is the absolute UTC window a booking occupies, including any
// pre/post buffer mandated by the restaurant's operating policy.  Two
// bookings contend for a table iff their slots overlap.
type TimeSlot struct {
    Start time.Time // inclusive lower bound, UTC
    End   time.Time // exclusive upper bound, UTC
}

// Overlaps reports whether two slots share any instant.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
    return s.Start.Before(other.End) && other.Start.Before(s.End)
}
