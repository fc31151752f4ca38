package assignment

import (
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/restobook/assignd/internal/availability"
    "github.com/restobook/assignd/internal/model"
)

// Plan is one candidate solution: an ordered set of tables whose combined
// capacity seats the party.  Plans are value objects generated fresh per
// request; only the attempt audit row derived from them is ever persisted.
type Plan struct {
    ID                 string        // "plan:" + sorted table ids
    TableIDs           []uint64      // tables in proposal order
    Tables             []model.Table // full table records, same order
    TotalCapacity      int           // summed capacity
    Slack              int           // TotalCapacity − party size
    AdjacencySatisfied bool          // always true for single-table plans
    ZoneID             string        // zone key when all tables share one, else ""
}

// signature returns the sorted-id identity used for deduplication: the
// same table set proposed by two strategies is one plan.
func (p Plan) signature() string {
    ids := make([]uint64, len(p.TableIDs))
    copy(ids, p.TableIDs)
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    parts := make([]string, len(ids))
    for i, id := range ids {
        parts[i] = fmt.Sprintf("%d", id)
    }
    return strings.Join(parts, ":")
}

// Attempt is an ephemeral ranked candidate: a plan, the strategy that
// proposed it and its score.  The top-ranked attempts are tried in order
// until one acquires a hold.
type Attempt struct {
    Plan     Plan
    Strategy string
    Score    float64
}

// Context is the immutable per-request input to plan generation: the
// booking, its slot, the availability snapshot and the adjacency graph
// restricted to available tables.  It is never shared across requests.
type Context struct {
    Booking             *model.Booking
    TimeSlot            model.TimeSlot
    Availability        *availability.Snapshot
    Adjacency           map[uint64]map[uint64]bool
    IncludePendingHolds bool
}

// Result is the outcome of one engine run.  Attempts always carries the
// plans that reached the hold step, in the order they were tried, for
// auditing even on total failure.
type Result struct {
    Success  bool
    Reason   string           // set on failure
    Hold     *model.TableHold // set on success
    Strategy string           // winning strategy
    Plan     Plan             // winning plan
    Score    float64          // winning score
    Attempts []Attempt
}

// OutcomeKind is the externally visible verdict of one ProcessBooking call.
type OutcomeKind string

const (
    OutcomeConfirmed    OutcomeKind = "confirmed"
    OutcomeRetry        OutcomeKind = "retry"
    OutcomeManualReview OutcomeKind = "manual_review"
    OutcomeNoop         OutcomeKind = "noop"
)

// Outcome is what the coordinator reports to its caller.  Delay is only
// meaningful for retries; Strategy and HoldID only for confirmations.
type Outcome struct {
    Kind     OutcomeKind
    Reason   string
    Delay    time.Duration
    Strategy string
    HoldID   string
}

func confirmedOutcome(strategy, holdID string) Outcome {
    return Outcome{Kind: OutcomeConfirmed, Strategy: strategy, HoldID: holdID}
}

func retryOutcome(reason string, delay time.Duration) Outcome {
    return Outcome{Kind: OutcomeRetry, Reason: reason, Delay: delay}
}

func manualReviewOutcome(reason string) Outcome {
    return Outcome{Kind: OutcomeManualReview, Reason: reason}
}

func noopOutcome(reason string) Outcome {
    return Outcome{Kind: OutcomeNoop, Reason: reason}
}
