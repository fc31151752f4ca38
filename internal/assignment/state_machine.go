package assignment

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/hashicorp/go-hclog"

    "github.com/restobook/assignd/internal/model"
    "github.com/restobook/assignd/internal/observability"
    "github.com/restobook/assignd/internal/queue"
    "github.com/restobook/assignd/internal/repository"
)

// transitions is the legal transition table.  Terminal states map to an
// empty set.  assignment_in_progress may fall back to assignment_pending
// (retry) and assigned may fall back too (a hold that could not be
// confirmed), which is why the table is not a simple forward chain.
var transitions = map[model.AssignmentState][]model.AssignmentState{
    model.StateCreated:              {model.StateCapacityVerified, model.StateFailed},
    model.StateCapacityVerified:     {model.StateAssignmentPending, model.StateFailed},
    model.StateAssignmentPending:    {model.StateAssignmentInProgress, model.StateManualReview, model.StateFailed},
    model.StateAssignmentInProgress: {model.StateAssigned, model.StateAssignmentPending, model.StateFailed, model.StateManualReview},
    model.StateAssigned:             {model.StateConfirmed, model.StateAssignmentPending, model.StateManualReview},
    model.StateConfirmed:            {},
    model.StateFailed:               {},
    model.StateManualReview:         {},
}

// TransitionAllowed reports whether from → to is in the transition table.
func TransitionAllowed(from, to model.AssignmentState) bool {
    for _, allowed := range transitions[from] {
        if allowed == to {
            return true
        }
    }
    return false
}

// TransitionError is returned for an illegal or version-conflicted
// transition.  VersionConflict distinguishes "another writer advanced the
// booking first" from "this transition is never legal".
type TransitionError struct {
    From            model.AssignmentState
    To              model.AssignmentState
    VersionConflict bool
}

func (e *TransitionError) Error() string {
    if e.VersionConflict {
        return fmt.Sprintf("transition %s -> %s lost a version race", e.From, e.To)
    }
    return fmt.Sprintf("transition %s -> %s is not permitted", e.From, e.To)
}

const stateMachineEventSource = "booking.state_machine"

// StateMachine enforces legal assignment-state transitions and persists
// each one with optimistic concurrency control and an audit trail.  It is
// the only component that writes assignment state; the distributed lock
// bounds how many processes act on a booking, the version check bounds
// what any one of them may write.
type StateMachine struct {
    bookings BookingStore
    sink     observability.Sink
    bus      queue.Publisher
    logger   hclog.Logger
}

// NewStateMachine wires a state machine to its store and its two
// best-effort side channels.
func NewStateMachine(bookings BookingStore, sink observability.Sink, bus queue.Publisher, logger hclog.Logger) *StateMachine {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &StateMachine{
        bookings: bookings,
        sink:     sink,
        bus:      bus,
        logger:   logger.Named("state_machine"),
    }
}

// CanProcess reports whether the booking's assignment can still be worked
// on.  Terminal states make every re-trigger a harmless no-op.
func (m *StateMachine) CanProcess(state model.AssignmentState) bool {
    return !state.Terminal()
}

// Transition advances the booking to newState.  Same-state calls are
// no-ops.  Illegal transitions and version conflicts return
// *TransitionError without mutating anything.  On success the booking's
// in-memory state and version are updated to match the store, a history
// row is appended and both an observability event and an integration
// event are emitted — all three best-effort: their failures are logged,
// never returned, and never roll back the committed transition.
func (m *StateMachine) Transition(ctx context.Context, b *model.Booking, newState model.AssignmentState, metadata map[string]any) error {
    from := b.AssignmentState
    if from == newState {
        return nil
    }
    if !TransitionAllowed(from, newState) {
        return &TransitionError{From: from, To: newState}
    }

    err := m.bookings.UpdateAssignmentState(ctx, b.ID, newState, b.AssignmentStateVersion)
    if errors.Is(err, repository.ErrVersionConflict) {
        return &TransitionError{From: from, To: newState, VersionConflict: true}
    }
    if err != nil {
        return err
    }
    b.AssignmentState = newState
    b.AssignmentStateVersion++

    if err := m.bookings.AppendStateHistory(ctx, b.ID, from, newState, metadata); err != nil {
        m.logger.Warn("state history append failed", "booking_id", b.ID, "to", newState, "error", err)
    }

    m.sink.Record(observability.Event{
        Source:       stateMachineEventSource,
        Type:         "state.transition",
        BookingID:    b.ID,
        RestaurantID: b.RestaurantID,
        Context: map[string]any{
            "from":    string(from),
            "to":      string(newState),
            "version": b.AssignmentStateVersion,
        },
    })
    m.bus.PublishStateChanged(queue.AssignmentStateChangedEvent{
        BookingID:    b.ID,
        RestaurantID: b.RestaurantID,
        FromState:    string(from),
        ToState:      string(newState),
        Version:      b.AssignmentStateVersion,
        Metadata:     metadata,
        OccurredAt:   time.Now().UTC().Format(time.RFC3339),
    })
    return nil
}
