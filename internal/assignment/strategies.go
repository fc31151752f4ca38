package assignment

import (
    "context"
    "sort"

    "github.com/restobook/assignd/internal/model"
)

// Strategy proposes candidate plans for one request context.  Evaluate
// must not mutate the context; priority feeds both deduplication (higher
// priority wins a shared table set) and the score's base term.
type Strategy interface {
    Name() string
    Priority() int
    Evaluate(ctx context.Context, actx *Context) []Plan
}

// tableSample caps how many tables any strategy combines.  Tables are
// sorted by capacity first, so the sample keeps the tightest fits and the
// combination search stays bounded even for very large floors.
const tableSample = 18

// optimalFitStrategy searches the whole floor for the tightest capacity
// fits.  It is the highest-priority generalist: every other strategy is a
// restriction of its search space.
type optimalFitStrategy struct{}

func (optimalFitStrategy) Name() string  { return "optimal_fit" }
func (optimalFitStrategy) Priority() int { return 5 }

func (s optimalFitStrategy) Evaluate(_ context.Context, actx *Context) []Plan {
    return generatePlans(actx, actx.Availability.AvailableTables, planParams{
        maxTables: 3,
        limit:     20,
    })
}

// adjacencyStrategy proposes only multi-table combinations that form a
// connected block, for parties no single table can seat comfortably.
type adjacencyStrategy struct{}

func (adjacencyStrategy) Name() string  { return "adjacency" }
func (adjacencyStrategy) Priority() int { return 4 }

func (s adjacencyStrategy) Evaluate(_ context.Context, actx *Context) []Plan {
    return generatePlans(actx, actx.Availability.AvailableTables, planParams{
        minTables:        2,
        maxTables:        3,
        limit:            15,
        requireAdjacency: true,
    })
}

// zonePreferenceStrategy concentrates the search on one zone: the zone
// pinned on the booking when an operator set one, otherwise the named
// zone with the most available capacity.  Keeping a party within one
// zone keeps service sections coherent.
type zonePreferenceStrategy struct{}

func (zonePreferenceStrategy) Name() string  { return "zone_preference" }
func (zonePreferenceStrategy) Priority() int { return 4 }

func (s zonePreferenceStrategy) Evaluate(_ context.Context, actx *Context) []Plan {
    zone := preferredZone(actx)
    if zone == "" {
        return nil
    }
    return generatePlans(actx, tablesInZone(actx, zone), planParams{
        maxTables: 3,
        limit:     12,
    })
}

// loadBalancingStrategy steers bookings toward the named zone with the
// most free tables, spreading load across sections.
type loadBalancingStrategy struct{}

func (loadBalancingStrategy) Name() string  { return "load_balancing" }
func (loadBalancingStrategy) Priority() int { return 3 }

func (s loadBalancingStrategy) Evaluate(_ context.Context, actx *Context) []Plan {
    zone := dominantZone(actx, byTableCount)
    if zone == "" {
        return nil
    }
    return generatePlans(actx, tablesInZone(actx, zone), planParams{
        maxTables: 2,
        limit:     10,
    })
}

// historicalSuccessStrategy contributes a small set of simple plans whose
// ranking is driven almost entirely by the trailing success-rate term.
type historicalSuccessStrategy struct{}

func (historicalSuccessStrategy) Name() string  { return "historical_success" }
func (historicalSuccessStrategy) Priority() int { return 2 }

func (s historicalSuccessStrategy) Evaluate(_ context.Context, actx *Context) []Plan {
    return generatePlans(actx, actx.Availability.AvailableTables, planParams{
        maxTables: 2,
        limit:     8,
    })
}

// preferredZone honours the zone pinned on the booking while it still
// has available tables; otherwise the dominant zone by capacity wins.
func preferredZone(actx *Context) string {
    if z := actx.Booking.AssignedZoneID; z != nil {
        key := model.ZoneKey(*z)
        if stats, ok := actx.Availability.Zones[key]; ok && stats.Available > 0 {
            return key
        }
    }
    return dominantZone(actx, byCapacity)
}

// zoneMetric selects which ZoneStats field ranks zones.
type zoneMetric int

const (
    byCapacity zoneMetric = iota
    byTableCount
)

// dominantZone returns the best named zone by the given metric, skipping
// the "unassigned" pseudo zone.  Ties break on the lexically smaller key
// so the choice is stable.
func dominantZone(actx *Context, metric zoneMetric) string {
    best := ""
    bestVal := -1
    keys := make([]string, 0, len(actx.Availability.Zones))
    for key := range actx.Availability.Zones {
        keys = append(keys, key)
    }
    sort.Strings(keys)
    for _, key := range keys {
        if key == "unassigned" {
            continue
        }
        stats := actx.Availability.Zones[key]
        val := stats.Capacity
        if metric == byTableCount {
            val = stats.Available
        }
        if val > bestVal {
            best, bestVal = key, val
        }
    }
    return best
}

// tablesInZone filters the snapshot's available tables to one zone key.
func tablesInZone(actx *Context, zone string) []model.Table {
    stats, ok := actx.Availability.Zones[zone]
    if !ok {
        return nil
    }
    member := make(map[uint64]bool, len(stats.TableIDs))
    for _, id := range stats.TableIDs {
        member[id] = true
    }
    out := make([]model.Table, 0, len(stats.TableIDs))
    for _, t := range actx.Availability.AvailableTables {
        if member[t.ID] {
            out = append(out, t)
        }
    }
    return out
}

type planParams struct {
    minTables        int // 0 means 1
    maxTables        int
    limit            int
    requireAdjacency bool
}

// generatePlans enumerates table combinations of minTables..maxTables
// whose summed capacity seats the party, smallest tables first so tight
// fits surface before oversized ones.  The search stops at limit plans.
func generatePlans(actx *Context, tables []model.Table, p planParams) []Plan {
    partySize := actx.Booking.PartySize
    if partySize < 1 || len(tables) == 0 || p.maxTables < 1 {
        return nil
    }
    minTables := p.minTables
    if minTables < 1 {
        minTables = 1
    }

    pool := make([]model.Table, len(tables))
    copy(pool, tables)
    sort.SliceStable(pool, func(i, j int) bool { return pool[i].Capacity < pool[j].Capacity })
    if len(pool) > tableSample {
        pool = pool[:tableSample]
    }

    var plans []Plan
    var combo []model.Table
    var walk func(start, capacity int)
    walk = func(start, capacity int) {
        if len(plans) >= p.limit {
            return
        }
        if len(combo) >= minTables && capacity >= partySize {
            plan := buildPlan(actx, combo)
            if !p.requireAdjacency || plan.AdjacencySatisfied {
                plans = append(plans, plan)
            }
            if !p.requireAdjacency {
                // A superset of a seating combination only adds slack.
                return
            }
            // Connectivity may need a bridging table beyond the
            // capacity minimum, so adjacency searches keep extending.
        }
        if len(combo) == p.maxTables {
            return
        }
        for i := start; i < len(pool); i++ {
            combo = append(combo, pool[i])
            walk(i+1, capacity+pool[i].Capacity)
            combo = combo[:len(combo)-1]
            if len(plans) >= p.limit {
                return
            }
        }
    }
    walk(0, 0)
    return plans
}

// buildPlan materialises one combination into a Plan, computing slack,
// adjacency and the shared zone (empty when tables span zones).
func buildPlan(actx *Context, combo []model.Table) Plan {
    plan := Plan{
        TableIDs: make([]uint64, len(combo)),
        Tables:   make([]model.Table, len(combo)),
    }
    copy(plan.Tables, combo)
    for i, t := range combo {
        plan.TableIDs[i] = t.ID
        plan.TotalCapacity += t.Capacity
    }
    plan.ID = "plan:" + plan.signature()
    plan.Slack = plan.TotalCapacity - actx.Booking.PartySize
    plan.AdjacencySatisfied = len(combo) == 1 || tablesAdjacent(actx.Adjacency, plan.TableIDs)
    plan.ZoneID = sharedZone(combo)
    return plan
}

// tablesAdjacent reports whether the tables form one connected component
// of the adjacency graph.
func tablesAdjacent(graph map[uint64]map[uint64]bool, ids []uint64) bool {
    if len(ids) < 2 {
        return true
    }
    member := make(map[uint64]bool, len(ids))
    for _, id := range ids {
        member[id] = true
    }
    visited := map[uint64]bool{ids[0]: true}
    queue := []uint64{ids[0]}
    for len(queue) > 0 {
        cur := queue[0]
        queue = queue[1:]
        for next := range graph[cur] {
            if member[next] && !visited[next] {
                visited[next] = true
                queue = append(queue, next)
            }
        }
    }
    return len(visited) == len(ids)
}

// sharedZone returns the zone key when every table sits in the same zone,
// "unassigned" when none has a zone, and "" for a mix.
func sharedZone(combo []model.Table) string {
    zone := ""
    for i, t := range combo {
        key := "unassigned"
        if t.ZoneID != nil {
            key = model.ZoneKey(*t.ZoneID)
        }
        if i == 0 {
            zone = key
            continue
        }
        if key != zone {
            return ""
        }
    }
    return zone
}
