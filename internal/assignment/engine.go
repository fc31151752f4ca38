package assignment

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "time"

    "github.com/hashicorp/go-hclog"

    "github.com/restobook/assignd/internal/model"
    "github.com/restobook/assignd/internal/repository"
)

const (
    // holdActor is recorded as the creator of every hold the engine places.
    holdActor = "assignment_coordinator"

    defaultMaxPlansToTry = 5
    defaultHoldTTL       = 3 * time.Minute

    // Strategy success rates are computed over a trailing week of audit
    // rows, capped to keep the query cheap; with no history a strategy is
    // scored neutrally.
    historyLookback    = 7 * 24 * time.Hour
    historyRowLimit    = 200
    neutralSuccessRate = 0.5
)

// EngineConfig tunes the engine.  Zero values fall back to defaults.
type EngineConfig struct {
    MaxPlansToTry       int
    HoldTTL             time.Duration
    IncludePendingHolds bool
}

func (c EngineConfig) withDefaults() EngineConfig {
    if c.MaxPlansToTry < 1 {
        c.MaxPlansToTry = defaultMaxPlansToTry
    }
    if c.HoldTTL <= 0 {
        c.HoldTTL = defaultHoldTTL
    }
    return c
}

// Engine builds candidate table combinations via its registered
// strategies, scores and ranks them, and attempts to place a short-lived
// hold on the winner.  Strategies run in a fixed registration order so
// that results are reproducible.
type Engine struct {
    cfg        EngineConfig
    tracker    AvailabilityProvider
    adjacency  AdjacencyProvider
    holds      HoldService
    attempts   AttemptStore
    strategies []Strategy
    logger     hclog.Logger
}

// NewEngine wires an engine to its collaborators and registers the five
// production strategies.
func NewEngine(cfg EngineConfig, tracker AvailabilityProvider, adjacency AdjacencyProvider, holds HoldService, attempts AttemptStore, logger hclog.Logger) *Engine {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &Engine{
        cfg:       cfg.withDefaults(),
        tracker:   tracker,
        adjacency: adjacency,
        holds:     holds,
        attempts:  attempts,
        strategies: []Strategy{
            optimalFitStrategy{},
            adjacencyStrategy{},
            zonePreferenceStrategy{},
            loadBalancingStrategy{},
            historicalSuccessStrategy{},
        },
        logger: logger.Named("engine"),
    }
}

// BuildContext fetches the availability snapshot and the adjacency graph
// restricted to currently available tables, returning the immutable input
// for one planning run.
func (e *Engine) BuildContext(ctx context.Context, b *model.Booking, slot model.TimeSlot) (*Context, error) {
    snap, err := e.tracker.Snapshot(ctx, b.RestaurantID, slot, e.cfg.IncludePendingHolds)
    if err != nil {
        return nil, fmt.Errorf("availability snapshot: %w", err)
    }
    ids := make([]uint64, len(snap.AvailableTables))
    for i, t := range snap.AvailableTables {
        ids[i] = t.ID
    }
    graph, err := e.adjacency.Adjacency(ctx, b.RestaurantID, ids)
    if err != nil {
        return nil, fmt.Errorf("adjacency graph: %w", err)
    }
    return &Context{
        Booking:             b,
        TimeSlot:            slot,
        Availability:        snap,
        Adjacency:           graph,
        IncludePendingHolds: e.cfg.IncludePendingHolds,
    }, nil
}

// FindOptimalAssignment runs every strategy, deduplicates and scores the
// surviving plans, then tries to hold the top candidates in rank order.
// Attempts lists every plan that reached the hold step, tried in order,
// whether or not the run succeeded.
func (e *Engine) FindOptimalAssignment(ctx context.Context, actx *Context) (*Result, error) {
    candidates := e.collectPlans(ctx, actx)
    if len(candidates) == 0 {
        return &Result{Success: false, Reason: "No viable plans", Attempts: []Attempt{}}, nil
    }

    ranked, err := e.rankPlans(ctx, actx, candidates)
    if err != nil {
        return nil, err
    }
    limit := e.cfg.MaxPlansToTry
    if limit > len(ranked) {
        limit = len(ranked)
    }

    tried := make([]Attempt, 0, limit)
    for _, attempt := range ranked[:limit] {
        hold, err := e.attemptHold(ctx, actx, attempt.Plan)
        if err != nil {
            return nil, err
        }
        tried = append(tried, attempt)
        if hold != nil {
            return &Result{
                Success:  true,
                Hold:     hold,
                Strategy: attempt.Strategy,
                Plan:     attempt.Plan,
                Score:    attempt.Score,
                Attempts: tried,
            }, nil
        }
    }
    return &Result{Success: false, Reason: "No viable assignments found", Attempts: tried}, nil
}

// candidate pairs a plan with the strategy that proposed it.
type candidate struct {
    plan     Plan
    strategy Strategy
}

// collectPlans gathers plans from every strategy and deduplicates them by
// sorted table-id signature, keeping the proposal from the
// highest-priority strategy when the same table set appears twice.
func (e *Engine) collectPlans(ctx context.Context, actx *Context) []candidate {
    seen := make(map[string]candidate)
    var order []string
    for _, strategy := range e.strategies {
        for _, plan := range strategy.Evaluate(ctx, actx) {
            if len(plan.TableIDs) == 0 {
                continue
            }
            sig := plan.signature()
            existing, ok := seen[sig]
            if !ok {
                order = append(order, sig)
                seen[sig] = candidate{plan: plan, strategy: strategy}
                continue
            }
            if existing.strategy.Priority() < strategy.Priority() {
                seen[sig] = candidate{plan: plan, strategy: strategy}
            }
        }
    }
    out := make([]candidate, 0, len(seen))
    for _, sig := range order {
        out = append(out, seen[sig])
    }
    return out
}

// rankPlans scores every candidate and sorts descending.  Success rates
// are looked up once per strategy and cached for the request.
func (e *Engine) rankPlans(ctx context.Context, actx *Context, candidates []candidate) ([]Attempt, error) {
    rates := make(map[string]float64)
    attempts := make([]Attempt, 0, len(candidates))
    for _, c := range candidates {
        rate, ok := rates[c.strategy.Name()]
        if !ok {
            var err error
            rate, err = e.historicalSuccessRate(ctx, c.strategy.Name())
            if err != nil {
                return nil, err
            }
            rates[c.strategy.Name()] = rate
        }
        score := scorePlan(c.plan, actx, c.strategy.Priority(), rate)
        attempts = append(attempts, Attempt{Plan: c.plan, Strategy: c.strategy.Name(), Score: score})
    }
    sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].Score > attempts[j].Score })
    return attempts, nil
}

// attemptHold asks the hold service to reserve the plan's tables.  A
// multi-table plan that satisfied adjacency requests the hold with the
// adjacency requirement so the store re-validates it; single-table plans
// never do.  A validation rejection means "try the next plan" and returns
// (nil, nil); infrastructure failures propagate.
func (e *Engine) attemptHold(ctx context.Context, actx *Context, plan Plan) (*model.TableHold, error) {
    hold, err := e.holds.CreateHold(ctx, model.HoldRequest{
        BookingID:        actx.Booking.ID,
        RestaurantID:     actx.Booking.RestaurantID,
        TableIDs:         plan.TableIDs,
        RequireAdjacency: len(plan.Tables) > 1 && plan.AdjacencySatisfied,
        Slot:             actx.TimeSlot,
        TTL:              e.cfg.HoldTTL,
        CreatedBy:        holdActor,
    })
    if errors.Is(err, repository.ErrManualSelection) {
        e.logger.Debug("plan rejected by hold validation", "booking_id", actx.Booking.ID, "plan", plan.ID)
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return hold, nil
}

// historicalSuccessRate returns the strategy's trailing success rate, or
// the neutral default when no history exists.
func (e *Engine) historicalSuccessRate(ctx context.Context, strategy string) (float64, error) {
    since := time.Now().UTC().Add(-historyLookback)
    rate, ok, err := e.attempts.StrategySuccessRate(ctx, strategy, since, historyRowLimit)
    if err != nil {
        return 0, err
    }
    if !ok {
        return neutralSuccessRate, nil
    }
    return rate, nil
}

// scorePlan combines strategy priority, capacity fit, adjacency, history
// and size penalties into one comparable number.  Tight fits (up to 1.3×
// the party) score highest; plans needing more tables or leaving more
// slack are penalised.
func scorePlan(plan Plan, actx *Context, priority int, successRate float64) float64 {
    if priority < 1 {
        priority = 1
    }
    score := float64(priority) * 100

    partySize := actx.Booking.PartySize
    if partySize > 0 {
        ratio := float64(plan.TotalCapacity) / float64(partySize)
        switch {
        case ratio >= 1 && ratio < 1.3:
            score += 50
        case ratio >= 1.3 && ratio < 1.6:
            score += 20
        }
    }

    if len(plan.Tables) > 1 && plan.AdjacencySatisfied {
        score += 30
    }

    score += successRate * 20
    score -= float64(len(plan.Tables)) * 5
    score -= float64(plan.Slack)

    return score
}
