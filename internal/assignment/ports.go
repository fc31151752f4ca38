// Package assignment contains the table-assignment coordination engine: the
// state machine that advances a booking's assignment lifecycle, the
// multi-strategy planner that proposes and scores candidate table sets, and
// the coordinator that drives one booking from "needs a table" to
// "confirmed" under locks, rate limits and a circuit breaker.
package assignment

import (
    "context"
    "time"

    "github.com/restobook/assignd/internal/availability"
    "github.com/restobook/assignd/internal/lock"
    "github.com/restobook/assignd/internal/model"
    "github.com/restobook/assignd/internal/repository"
)

// BookingStore is the slice of the booking store the pipeline writes
// through.  Implemented by repository.BookingRepo; tests substitute fakes.
type BookingStore interface {
    BookingByID(ctx context.Context, id uint64) (*model.Booking, error)
    UpdateAssignmentState(ctx context.Context, bookingID uint64, to model.AssignmentState, expectedVersion int64) error
    AppendStateHistory(ctx context.Context, bookingID uint64, from, to model.AssignmentState, metadata map[string]any) error
    SetAssignmentStrategy(ctx context.Context, bookingID uint64, strategy string) error
}

// AttemptStore persists and aggregates the assignment attempt audit trail.
// Implemented by repository.AttemptRepo.
type AttemptStore interface {
    InsertAttempts(ctx context.Context, records []repository.AttemptRecord) error
    CountAttempts(ctx context.Context, bookingID uint64) (int, error)
    NextAttemptNo(ctx context.Context, bookingID uint64) (int, error)
    StrategySuccessRate(ctx context.Context, strategy string, since time.Time, limit int) (float64, bool, error)
}

// HoldService places and confirms table holds.  Implemented by
// repository.HoldRepo.
type HoldService interface {
    CreateHold(ctx context.Context, req model.HoldRequest) (*model.TableHold, error)
    ConfirmHold(ctx context.Context, bookingID uint64, holdID string, metadata map[string]any) error
    ReleaseHold(ctx context.Context, holdID string) error
}

// AvailabilityProvider serves availability snapshots.  Implemented by
// availability.Tracker.
type AvailabilityProvider interface {
    Snapshot(ctx context.Context, restaurantID uint64, slot model.TimeSlot, includePending bool) (*availability.Snapshot, error)
}

// AdjacencyProvider loads the adjacency graph restricted to a table set.
// Implemented by repository.TableRepo.
type AdjacencyProvider interface {
    Adjacency(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]map[uint64]bool, error)
}

// Locker acquires distributed locks.  Implemented by lock.Manager; a nil
// lock with a nil error signals contention.
type Locker interface {
    Acquire(ctx context.Context, resource string, ttl time.Duration) (*lock.Lock, error)
}
