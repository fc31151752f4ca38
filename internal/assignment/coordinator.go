package assignment

import (
    "context"
    "errors"
    "fmt"
    "math"
    "math/rand"
    "time"

    "github.com/hashicorp/go-hclog"

    "github.com/restobook/assignd/internal/breaker"
    "github.com/restobook/assignd/internal/lock"
    "github.com/restobook/assignd/internal/model"
    "github.com/restobook/assignd/internal/observability"
    "github.com/restobook/assignd/internal/policy"
    "github.com/restobook/assignd/internal/queue"
    "github.com/restobook/assignd/internal/ratelimit"
    "github.com/restobook/assignd/internal/repository"
)

// Mode controls how much of the pipeline actually runs.
type Mode string

const (
    // ModeActive runs the full pipeline including state writes and hold
    // confirmation.
    ModeActive Mode = "active"
    // ModeShadow plans and audits what would happen but writes no booking
    // state and confirms nothing; holds placed while planning are
    // released immediately.
    ModeShadow Mode = "shadow"
    // ModeDisabled short-circuits every trigger before taking any lock.
    ModeDisabled Mode = "disabled"
)

// ParseMode maps a config string onto a Mode, defaulting unknown values
// to disabled so a typo can never accidentally activate the pipeline.
func ParseMode(s string) Mode {
    switch Mode(s) {
    case ModeActive, ModeShadow, ModeDisabled:
        return Mode(s)
    default:
        return ModeDisabled
    }
}

const (
    coordinatorEventSource = "assignment.coordinator"

    // backoff parameters for retryable failures.
    backoffBase      = time.Second
    backoffCap       = 30 * time.Second
    backoffJitterCap = time.Second

    // rateLimitRetryDelay is the flat delay suggested when the
    // per-restaurant concurrency limit rejects a trigger.
    rateLimitRetryDelay = 2 * time.Second

    // circuitRetryFloor bounds the circuit-open retry delay from below;
    // circuitRetryDefault is used when the breaker reports no remaining
    // cooldown (it just half-opened for someone else's trial).
    circuitRetryFloor   = time.Second
    circuitRetryDefault = 5 * time.Second
)

// Config tunes the coordinator.
type Config struct {
    Mode       Mode
    LockTTL    time.Duration // distributed lock TTL per booking
    MaxRetries int           // audited attempts before manual review
}

func (c Config) withDefaults() Config {
    if c.Mode == "" {
        c.Mode = ModeActive
    }
    if c.LockTTL <= 0 {
        c.LockTTL = 30 * time.Second
    }
    if c.MaxRetries < 1 {
        c.MaxRetries = 5
    }
    return c
}

// planner is the slice of the engine the coordinator drives.  Satisfied
// by *Engine; tests substitute scripted planners.
type planner interface {
    BuildContext(ctx context.Context, b *model.Booking, slot model.TimeSlot) (*Context, error)
    FindOptimalAssignment(ctx context.Context, actx *Context) (*Result, error)
}

// invalidator drops cached availability after a confirmed assignment.
// Satisfied by *availability.Tracker.
type invalidator interface {
    Invalidate(restaurantID uint64)
}

// Coordinator drives one booking from "needs a table" to "confirmed"
// under the distributed lock, the circuit breaker and the per-restaurant
// rate limit.  It is the only component that writes booking assignment
// state, always through the state machine.
type Coordinator struct {
    cfg      Config
    bookings BookingStore
    attempts AttemptStore
    holds    HoldService
    machine  *StateMachine
    engine   planner
    locker   Locker
    breaker  *breaker.Breaker
    limiter  *ratelimit.Limiter
    cache    invalidator
    sink     observability.Sink
    bus      queue.Publisher
    logger   hclog.Logger

    // jitter is injectable so backoff tests are deterministic.
    jitter func() float64
}

// NewCoordinator wires a coordinator to its collaborators.
func NewCoordinator(
    cfg Config,
    bookings BookingStore,
    attempts AttemptStore,
    holds HoldService,
    machine *StateMachine,
    engine *Engine,
    locker Locker,
    brk *breaker.Breaker,
    limiter *ratelimit.Limiter,
    cache invalidator,
    sink observability.Sink,
    bus queue.Publisher,
    logger hclog.Logger,
) *Coordinator {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &Coordinator{
        cfg:      cfg.withDefaults(),
        bookings: bookings,
        attempts: attempts,
        holds:    holds,
        machine:  machine,
        engine:   engine,
        locker:   locker,
        breaker:  brk,
        limiter:  limiter,
        cache:    cache,
        sink:     sink,
        bus:      bus,
        logger:   logger.Named("coordinator"),
        jitter:   rand.Float64,
    }
}

// ProcessBooking runs one assignment pass for the booking.  Expected
// contention and backpressure conditions come back as typed outcomes, not
// errors; a non-nil error means something genuinely broke (and the
// breaker has already recorded it).
func (c *Coordinator) ProcessBooking(ctx context.Context, bookingID uint64, trigger string) (Outcome, error) {
    if c.cfg.Mode == ModeDisabled {
        return noopOutcome("pipeline_disabled"), nil
    }

    started := time.Now()
    c.emit("coordinator.start", bookingID, 0, observability.SeverityInfo, map[string]any{
        "trigger": trigger,
        "mode":    string(c.cfg.Mode),
    })

    lk, err := c.locker.Acquire(ctx, fmt.Sprintf("booking:%d", bookingID), c.cfg.LockTTL)
    if err != nil {
        return Outcome{}, fmt.Errorf("acquire booking lock: %w", err)
    }
    if lk == nil {
        c.emit("coordinator.lock_contention", bookingID, 0, observability.SeverityInfo, map[string]any{
            "trigger": trigger,
        })
        return noopOutcome("lock_contention"), nil
    }
    defer c.releaseLock(ctx, lk, bookingID)
    c.emit("coordinator.lock_acquired", bookingID, 0, observability.SeverityInfo, map[string]any{
        "lock_id": lk.ID,
        "ttl_ms":  c.cfg.LockTTL.Milliseconds(),
    })

    if c.breaker.IsOpen() {
        delay := c.circuitRetryDelay()
        c.emit("coordinator.circuit_open", bookingID, 0, observability.SeverityWarning, map[string]any{
            "delay_ms": delay.Milliseconds(),
        })
        return retryOutcome("circuit_open", delay), nil
    }

    var outcome Outcome
    err = c.breaker.Execute(ctx, func(ctx context.Context) error {
        var opErr error
        outcome, opErr = c.process(ctx, bookingID, trigger)
        return opErr
    })
    if err != nil {
        return c.mapExecutionError(bookingID, err)
    }

    c.emitOutcome(bookingID, trigger, outcome, time.Since(started))
    return outcome, nil
}

// process is the body run under the breaker: everything from loading the
// booking to deciding the outcome.
func (c *Coordinator) process(ctx context.Context, bookingID uint64, trigger string) (Outcome, error) {
    b, err := c.bookings.BookingByID(ctx, bookingID)
    if errors.Is(err, repository.ErrNotFound) {
        return noopOutcome("booking_not_found"), nil
    }
    if err != nil {
        return Outcome{}, err
    }

    if !c.machine.CanProcess(b.AssignmentState) {
        return noopOutcome("terminal_state"), nil
    }

    if c.cfg.Mode == ModeActive {
        if err := c.ensureReady(ctx, b); err != nil {
            return Outcome{}, err
        }
    }

    release, err := c.limiter.Acquire(fmt.Sprintf("restaurant:%d", b.RestaurantID))
    if err != nil {
        return Outcome{}, err
    }
    defer release()
    c.emit("coordinator.rate_permit_acquired", bookingID, b.RestaurantID, observability.SeverityInfo, nil)

    if c.cfg.Mode == ModeActive {
        if err := c.machine.Transition(ctx, b, model.StateAssignmentInProgress, map[string]any{
            "trigger": trigger,
        }); err != nil {
            return Outcome{}, err
        }
    }

    venue, err := policy.ForTimezone(b.RestaurantTimezone)
    if err != nil {
        return Outcome{}, err
    }
    slot, err := policy.ComputeBookingWindow(b, venue)
    if err != nil {
        return Outcome{}, err
    }

    actx, err := c.engine.BuildContext(ctx, b, slot)
    if err != nil {
        return Outcome{}, err
    }
    result, err := c.engine.FindOptimalAssignment(ctx, actx)
    if err != nil {
        return Outcome{}, err
    }

    if c.cfg.Mode == ModeShadow {
        return c.finishShadow(ctx, b, result)
    }
    if result.Success {
        return c.finishSuccess(ctx, b, result)
    }
    return c.finishFailure(ctx, b, result)
}

// ensureReady fast-forwards the transient pre-states.  created and
// capacity_verified mean "not yet attempted", not genuine waiting points,
// so a trigger on either walks the booking straight to assignment_pending.
func (c *Coordinator) ensureReady(ctx context.Context, b *model.Booking) error {
    if b.AssignmentState == model.StateCreated {
        if err := c.machine.Transition(ctx, b, model.StateCapacityVerified, nil); err != nil {
            return err
        }
    }
    if b.AssignmentState == model.StateCapacityVerified {
        if err := c.machine.Transition(ctx, b, model.StateAssignmentPending, nil); err != nil {
            return err
        }
    }
    return nil
}

// finishSuccess converts the engine result into a confirmed assignment:
// audit the attempts, walk assigned → confirmed around the atomic hold
// confirmation, then stamp the winning strategy, invalidate cached
// availability and announce the assignment.  The stamp is bookkeeping on
// an already-confirmed booking, so it happens after the confirm and its
// failure is logged, not returned.
func (c *Coordinator) finishSuccess(ctx context.Context, b *model.Booking, result *Result) (Outcome, error) {
    if err := c.recordAttempts(ctx, b.ID, result); err != nil {
        return Outcome{}, err
    }
    if err := c.machine.Transition(ctx, b, model.StateAssigned, map[string]any{
        "strategy": result.Strategy,
        "hold_id":  result.Hold.ID,
        "score":    result.Score,
    }); err != nil {
        return Outcome{}, err
    }
    if err := c.holds.ConfirmHold(ctx, b.ID, result.Hold.ID, map[string]any{
        "strategy":  result.Strategy,
        "table_ids": result.Hold.TableIDs,
    }); err != nil {
        return Outcome{}, err
    }
    if err := c.machine.Transition(ctx, b, model.StateConfirmed, map[string]any{
        "hold_id": result.Hold.ID,
    }); err != nil {
        return Outcome{}, err
    }
    if err := c.bookings.SetAssignmentStrategy(ctx, b.ID, result.Strategy); err != nil {
        c.logger.Warn("strategy stamp failed", "booking_id", b.ID, "strategy", result.Strategy, "error", err)
    }

    c.cache.Invalidate(b.RestaurantID)
    c.bus.PublishConfirmed(queue.AssignmentConfirmedEvent{
        BookingID:    b.ID,
        RestaurantID: b.RestaurantID,
        HoldID:       result.Hold.ID,
        Strategy:     result.Strategy,
        TableIDs:     result.Hold.TableIDs,
        ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
    })
    return confirmedOutcome(result.Strategy, result.Hold.ID), nil
}

// finishFailure audits the failed run and decides between another retry
// and manual review, per the retry budget.
func (c *Coordinator) finishFailure(ctx context.Context, b *model.Booking, result *Result) (Outcome, error) {
    if err := c.recordAttempts(ctx, b.ID, result); err != nil {
        return Outcome{}, err
    }
    return c.handleAssignmentFailure(ctx, b, result.Reason)
}

// finishShadow reports what the pipeline would have done without writing
// any booking state.  A hold placed while planning is released so shadow
// traffic never blocks real tables beyond this call.
func (c *Coordinator) finishShadow(ctx context.Context, b *model.Booking, result *Result) (Outcome, error) {
    evCtx := map[string]any{
        "would_succeed": result.Success,
        "plans_tried":   len(result.Attempts),
    }
    if result.Success {
        evCtx["strategy"] = result.Strategy
        evCtx["score"] = result.Score
        evCtx["table_ids"] = result.Hold.TableIDs
        if err := c.holds.ReleaseHold(ctx, result.Hold.ID); err != nil {
            c.logger.Warn("shadow hold release failed", "booking_id", b.ID, "hold_id", result.Hold.ID, "error", err)
        }
    } else {
        evCtx["reason"] = result.Reason
    }
    c.emit("coordinator.shadow_result", b.ID, b.RestaurantID, observability.SeverityInfo, evCtx)
    return noopOutcome("shadow_mode"), nil
}

// handleAssignmentFailure counts prior attempts against the retry budget.
// At or over budget the booking lands in manual_review; under budget it
// returns to assignment_pending with an exponential-backoff delay.  A
// transition rejected because a concurrent process already moved the
// booking is swallowed; the outcome stands either way.
func (c *Coordinator) handleAssignmentFailure(ctx context.Context, b *model.Booking, reason string) (Outcome, error) {
    count, err := c.attempts.CountAttempts(ctx, b.ID)
    if err != nil {
        return Outcome{}, err
    }

    if count >= c.cfg.MaxRetries {
        err := c.machine.Transition(ctx, b, model.StateManualReview, map[string]any{
            "reason":   reason,
            "attempts": count,
        })
        var terr *TransitionError
        if err != nil && !errors.As(err, &terr) {
            return Outcome{}, err
        }
        return manualReviewOutcome(reason), nil
    }

    err = c.machine.Transition(ctx, b, model.StateAssignmentPending, map[string]any{
        "reason":   reason,
        "attempts": count,
    })
    var terr *TransitionError
    if err != nil && !errors.As(err, &terr) {
        return Outcome{}, err
    }
    return retryOutcome(reason, c.computeBackoff(count)), nil
}

// recordAttempts audits every plan the engine tried.  Attempt numbering
// continues from the highest recorded number; only the final row of a
// successful run is marked success, and the failure reason rides on the
// final row of a failed run.
func (c *Coordinator) recordAttempts(ctx context.Context, bookingID uint64, result *Result) error {
    if len(result.Attempts) == 0 {
        return nil
    }
    next, err := c.attempts.NextAttemptNo(ctx, bookingID)
    if err != nil {
        return err
    }
    records := make([]repository.AttemptRecord, 0, len(result.Attempts))
    for i, attempt := range result.Attempts {
        last := i == len(result.Attempts)-1
        rec := repository.AttemptRecord{
            BookingID: bookingID,
            AttemptNo: next + i,
            Strategy:  attempt.Strategy,
            Result:    "failure",
            Metadata: map[string]any{
                "score":       attempt.Score,
                "slack":       attempt.Plan.Slack,
                "table_count": len(attempt.Plan.TableIDs),
                "zone_id":     attempt.Plan.ZoneID,
            },
        }
        if last {
            if result.Success {
                rec.Result = "success"
            } else {
                rec.Reason = result.Reason
            }
        }
        records = append(records, rec)
    }
    return c.attempts.InsertAttempts(ctx, records)
}

// computeBackoff returns min(30s, 1s·2^attempts + jitter up to 1s).
func (c *Coordinator) computeBackoff(attempts int) time.Duration {
    raw := float64(backoffBase) * math.Pow(2, float64(attempts))
    raw += c.jitter() * float64(backoffJitterCap)
    if raw > float64(backoffCap) {
        return backoffCap
    }
    return time.Duration(raw)
}

// circuitRetryDelay is the delay suggested while the breaker is open: the
// remaining cooldown floored at one second, or a flat default when the
// breaker reports none.
func (c *Coordinator) circuitRetryDelay() time.Duration {
    remaining := c.breaker.RemainingCooldown()
    if remaining <= 0 {
        return circuitRetryDefault
    }
    if remaining < circuitRetryFloor {
        return circuitRetryFloor
    }
    return remaining
}

// mapExecutionError converts the expected backpressure errors escaping
// the breaker into retry outcomes; everything else is recorded and
// rethrown for the caller's own retry layer.
func (c *Coordinator) mapExecutionError(bookingID uint64, err error) (Outcome, error) {
    var openErr *breaker.OpenError
    if errors.As(err, &openErr) {
        delay := openErr.RetryAfter
        if delay < circuitRetryFloor {
            delay = circuitRetryDefault
        }
        c.emit("coordinator.circuit_open", bookingID, 0, observability.SeverityWarning, map[string]any{
            "delay_ms": delay.Milliseconds(),
        })
        return retryOutcome("circuit_open", delay), nil
    }
    var rateErr *ratelimit.ExceededError
    if errors.As(err, &rateErr) {
        c.emit("coordinator.rate_limited", bookingID, 0, observability.SeverityWarning, map[string]any{
            "key":      rateErr.Key,
            "delay_ms": rateLimitRetryDelay.Milliseconds(),
        })
        return retryOutcome("rate_limited", rateLimitRetryDelay), nil
    }
    c.emit("coordinator.error", bookingID, 0, observability.SeverityError, map[string]any{
        "error": err.Error(),
    })
    return Outcome{}, err
}

// emitOutcome records the per-call terminal event.
func (c *Coordinator) emitOutcome(bookingID uint64, trigger string, outcome Outcome, elapsed time.Duration) {
    evCtx := map[string]any{
        "trigger":     trigger,
        "reason":      outcome.Reason,
        "duration_ms": elapsed.Milliseconds(),
    }
    switch outcome.Kind {
    case OutcomeConfirmed:
        evCtx["strategy"] = outcome.Strategy
        evCtx["hold_id"] = outcome.HoldID
        delete(evCtx, "reason")
        c.emit("coordinator.confirmed", bookingID, 0, observability.SeverityInfo, evCtx)
    case OutcomeRetry:
        evCtx["delay_ms"] = outcome.Delay.Milliseconds()
        c.emit("coordinator.retry", bookingID, 0, observability.SeverityWarning, evCtx)
    case OutcomeManualReview:
        c.emit("coordinator.manual_review", bookingID, 0, observability.SeverityWarning, evCtx)
    default:
        c.emit("coordinator.noop", bookingID, 0, observability.SeverityInfo, evCtx)
    }
}

func (c *Coordinator) releaseLock(ctx context.Context, lk *lock.Lock, bookingID uint64) {
    if err := lk.Release(ctx); err != nil {
        c.logger.Warn("lock release failed", "booking_id", bookingID, "resource", lk.Resource, "error", err)
    }
}

func (c *Coordinator) emit(eventType string, bookingID, restaurantID uint64, severity observability.Severity, evCtx map[string]any) {
    c.sink.Record(observability.Event{
        Source:       coordinatorEventSource,
        Type:         eventType,
        BookingID:    bookingID,
        RestaurantID: restaurantID,
        Severity:     severity,
        Context:      evCtx,
    })
}
