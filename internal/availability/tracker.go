// Package availability computes point-in-time views of which tables are
// free for a restaurant and time window.  Snapshots are built from two or
// three store queries and cached with a short TTL, so hot paths such as
// plan generation do not hammer the database while still seeing changes
// within about a second.
package availability

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/hashicorp/go-hclog"
    "github.com/hashicorp/golang-lru/v2/expirable"

    "github.com/restobook/assignd/internal/model"
)

const (
    cacheSize = 256
    cacheTTL  = time.Second
)

// ZoneStats aggregates availability per floor zone.  The pseudo zone
// "unassigned" collects tables without a zone.
type ZoneStats struct {
    TableIDs  []uint64 // available tables in the zone
    Capacity  int      // summed capacity of those tables
    Available int      // count of available tables
}

// Snapshot is an immutable view of table availability for one
// (restaurant, slot, includePending) key.  Occupied tables come from
// blocking bookings and, when includePending is set, from unexpired holds
// overlapping the slot.
type Snapshot struct {
    Timestamp        time.Time
    RestaurantID     uint64
    TimeSlot         model.TimeSlot
    IncludePending   bool
    AvailableTables  []model.Table
    OccupiedTableIDs []uint64
    TotalCapacity    int
    LargestTable     int
    Zones            map[string]ZoneStats
}

// Store is the narrow slice of the table store the tracker reads.
type Store interface {
    TablesForRestaurant(ctx context.Context, restaurantID uint64) ([]model.Table, error)
    OccupiedTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error)
    HeldTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error)
}

// Subscriber receives every freshly computed snapshot for the key it
// registered on.  Subscriber failures are logged and never propagate.
type Subscriber func(*Snapshot)

// Tracker caches snapshots in a TTL'd LRU and notifies subscribers on
// refresh.  Instances are cheap and self-contained; tests construct an
// independent tracker per case rather than sharing process state.
type Tracker struct {
    store  Store
    logger hclog.Logger
    cache  *expirable.LRU[string, *Snapshot]

    mu     sync.Mutex
    subs   map[string]map[int]Subscriber
    nextID int
}

// NewTracker returns a tracker bound to the given store.
func NewTracker(store Store, logger hclog.Logger) *Tracker {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &Tracker{
        store:  store,
        logger: logger.Named("availability"),
        cache:  expirable.NewLRU[string, *Snapshot](cacheSize, nil, cacheTTL),
        subs:   make(map[string]map[int]Subscriber),
    }
}

// Snapshot returns the availability view for the key, serving from cache
// when a fresh entry exists.  On a miss the snapshot is rebuilt, cached and
// pushed to subscribers registered for the exact same key.
func (t *Tracker) Snapshot(ctx context.Context, restaurantID uint64, slot model.TimeSlot, includePending bool) (*Snapshot, error) {
    key := cacheKey(restaurantID, slot, includePending)
    if snap, ok := t.cache.Get(key); ok {
        return snap, nil
    }
    snap, err := t.build(ctx, restaurantID, slot, includePending)
    if err != nil {
        return nil, err
    }
    t.cache.Add(key, snap)
    t.notify(key, snap)
    return snap, nil
}

// Subscribe registers a callback for one exact (restaurant, slot,
// includePending) key and returns a cancel function.
func (t *Tracker) Subscribe(restaurantID uint64, slot model.TimeSlot, includePending bool, fn Subscriber) func() {
    key := cacheKey(restaurantID, slot, includePending)
    t.mu.Lock()
    defer t.mu.Unlock()
    set := t.subs[key]
    if set == nil {
        set = make(map[int]Subscriber)
        t.subs[key] = set
    }
    id := t.nextID
    t.nextID++
    set[id] = fn
    return func() {
        t.mu.Lock()
        defer t.mu.Unlock()
        if listeners, ok := t.subs[key]; ok {
            delete(listeners, id)
            if len(listeners) == 0 {
                delete(t.subs, key)
            }
        }
    }
}

// Invalidate drops every cached entry for the restaurant.  Called whenever
// a booking or hold affecting its availability changes.
func (t *Tracker) Invalidate(restaurantID uint64) {
    prefix := fmt.Sprintf("%d:", restaurantID)
    for _, key := range t.cache.Keys() {
        if strings.HasPrefix(key, prefix) {
            t.cache.Remove(key)
        }
    }
}

// InvalidateAll clears the entire cache.
func (t *Tracker) InvalidateAll() {
    t.cache.Purge()
}

func (t *Tracker) build(ctx context.Context, restaurantID uint64, slot model.TimeSlot, includePending bool) (*Snapshot, error) {
    tables, err := t.store.TablesForRestaurant(ctx, restaurantID)
    if err != nil {
        return nil, err
    }
    occupied := make(map[uint64]bool)
    booked, err := t.store.OccupiedTableIDs(ctx, restaurantID, slot)
    if err != nil {
        return nil, err
    }
    for _, id := range booked {
        occupied[id] = true
    }
    if includePending {
        held, err := t.store.HeldTableIDs(ctx, restaurantID, slot)
        if err != nil {
            return nil, err
        }
        for _, id := range held {
            occupied[id] = true
        }
    }

    snap := &Snapshot{
        Timestamp:      time.Now().UTC(),
        RestaurantID:   restaurantID,
        TimeSlot:       slot,
        IncludePending: includePending,
        Zones:          make(map[string]ZoneStats),
    }
    for id := range occupied {
        snap.OccupiedTableIDs = append(snap.OccupiedTableIDs, id)
    }
    for _, table := range tables {
        if !table.Active || occupied[table.ID] {
            continue
        }
        snap.AvailableTables = append(snap.AvailableTables, table)
        snap.TotalCapacity += table.Capacity
        if table.Capacity > snap.LargestTable {
            snap.LargestTable = table.Capacity
        }
        zone := "unassigned"
        if table.ZoneID != nil {
            zone = model.ZoneKey(*table.ZoneID)
        }
        stats := snap.Zones[zone]
        stats.TableIDs = append(stats.TableIDs, table.ID)
        stats.Capacity += table.Capacity
        stats.Available++
        snap.Zones[zone] = stats
    }
    return snap, nil
}

func (t *Tracker) notify(key string, snap *Snapshot) {
    t.mu.Lock()
    listeners := make([]Subscriber, 0, len(t.subs[key]))
    for _, fn := range t.subs[key] {
        listeners = append(listeners, fn)
    }
    t.mu.Unlock()
    for _, fn := range listeners {
        func() {
            defer func() {
                if r := recover(); r != nil {
                    t.logger.Warn("subscriber panicked", "key", key, "panic", r)
                }
            }()
            fn(snap)
        }()
    }
}

func cacheKey(restaurantID uint64, slot model.TimeSlot, includePending bool) string {
    mode := "confirmed"
    if includePending {
        mode = "pending"
    }
    return fmt.Sprintf("%d:%d:%d:%s", restaurantID, slot.Start.UnixMilli(), slot.End.UnixMilli(), mode)
}
