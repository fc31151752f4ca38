package assignment

import (
    "context"
    "fmt"
    "time"

    "github.com/restobook/assignd/internal/availability"
    "github.com/restobook/assignd/internal/model"
    "github.com/restobook/assignd/internal/repository"
)

// Shared in-memory fakes for the coordinator, engine and state machine
// tests.  Each test constructs fresh instances; nothing here is shared
// process state.

type historyEntry struct {
    from, to model.AssignmentState
    metadata map[string]any
}

type fakeBookingStore struct {
    booking     *model.Booking // the persisted row
    missing     bool
    updateErr   error
    strategyErr error
    history     []historyEntry
    strategy    string
}

func (s *fakeBookingStore) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
    if s.missing || s.booking == nil || s.booking.ID != id {
        return nil, repository.ErrNotFound
    }
    copied := *s.booking
    return &copied, nil
}

func (s *fakeBookingStore) UpdateAssignmentState(ctx context.Context, bookingID uint64, to model.AssignmentState, expectedVersion int64) error {
    if s.updateErr != nil {
        return s.updateErr
    }
    if expectedVersion != s.booking.AssignmentStateVersion {
        return repository.ErrVersionConflict
    }
    s.booking.AssignmentState = to
    s.booking.AssignmentStateVersion++
    return nil
}

func (s *fakeBookingStore) AppendStateHistory(ctx context.Context, bookingID uint64, from, to model.AssignmentState, metadata map[string]any) error {
    s.history = append(s.history, historyEntry{from: from, to: to, metadata: metadata})
    return nil
}

func (s *fakeBookingStore) SetAssignmentStrategy(ctx context.Context, bookingID uint64, strategy string) error {
    if s.strategyErr != nil {
        return s.strategyErr
    }
    s.strategy = strategy
    return nil
}

type fakeAttemptStore struct {
    preexisting int // audited rows from earlier runs
    records     []repository.AttemptRecord
    rates       map[string]float64
}

func (s *fakeAttemptStore) InsertAttempts(ctx context.Context, records []repository.AttemptRecord) error {
    s.records = append(s.records, records...)
    return nil
}

func (s *fakeAttemptStore) CountAttempts(ctx context.Context, bookingID uint64) (int, error) {
    return s.preexisting + len(s.records), nil
}

func (s *fakeAttemptStore) NextAttemptNo(ctx context.Context, bookingID uint64) (int, error) {
    return s.preexisting + len(s.records) + 1, nil
}

func (s *fakeAttemptStore) StrategySuccessRate(ctx context.Context, strategy string, since time.Time, limit int) (float64, bool, error) {
    rate, ok := s.rates[strategy]
    return rate, ok, nil
}

type fakeHolds struct {
    reject     func(model.HoldRequest) bool // nil accepts everything
    created    []model.HoldRequest
    confirmed  []string
    released   []string
    confirmErr error
}

func (s *fakeHolds) CreateHold(ctx context.Context, req model.HoldRequest) (*model.TableHold, error) {
    if s.reject != nil && s.reject(req) {
        return nil, fmt.Errorf("%w: selection rejected", repository.ErrManualSelection)
    }
    s.created = append(s.created, req)
    return &model.TableHold{
        ID:               fmt.Sprintf("hold-%d", len(s.created)),
        BookingID:        req.BookingID,
        RestaurantID:     req.RestaurantID,
        TableIDs:         append([]uint64(nil), req.TableIDs...),
        RequireAdjacency: req.RequireAdjacency,
        Slot:             req.Slot,
        ExpiresAt:        time.Now().UTC().Add(req.TTL),
        CreatedBy:        req.CreatedBy,
        CreatedAt:        time.Now().UTC(),
    }, nil
}

func (s *fakeHolds) ConfirmHold(ctx context.Context, bookingID uint64, holdID string, metadata map[string]any) error {
    if s.confirmErr != nil {
        return s.confirmErr
    }
    s.confirmed = append(s.confirmed, holdID)
    return nil
}

func (s *fakeHolds) ReleaseHold(ctx context.Context, holdID string) error {
    s.released = append(s.released, holdID)
    return nil
}

type fakeAvailability struct {
    snap  *availability.Snapshot
    err   error
    calls int
}

func (s *fakeAvailability) Snapshot(ctx context.Context, restaurantID uint64, slot model.TimeSlot, includePending bool) (*availability.Snapshot, error) {
    s.calls++
    if s.err != nil {
        return nil, s.err
    }
    return s.snap, nil
}

func (s *fakeAvailability) Invalidate(restaurantID uint64) {}

type fakeAdjacency struct {
    graph map[uint64]map[uint64]bool
}

func (s *fakeAdjacency) Adjacency(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]map[uint64]bool, error) {
    if s.graph == nil {
        return map[uint64]map[uint64]bool{}, nil
    }
    return s.graph, nil
}

// table builds an active table with the given id, zone and capacity.
// Pass zone 0 for an unzoned table.
func table(id uint64, zoneID uint64, capacity int) model.Table {
    t := model.Table{ID: id, RestaurantID: 1, Capacity: capacity, Active: true}
    if zoneID != 0 {
        z := zoneID
        t.ZoneID = &z
    }
    return t
}

// snapshotFor builds an availability snapshot over the given tables with
// the same zone rollups the tracker computes.
func snapshotFor(tables ...model.Table) *availability.Snapshot {
    snap := &availability.Snapshot{
        Timestamp:    time.Now().UTC(),
        RestaurantID: 1,
        Zones:        make(map[string]availability.ZoneStats),
    }
    for _, t := range tables {
        snap.AvailableTables = append(snap.AvailableTables, t)
        snap.TotalCapacity += t.Capacity
        if t.Capacity > snap.LargestTable {
            snap.LargestTable = t.Capacity
        }
        zone := "unassigned"
        if t.ZoneID != nil {
            zone = model.ZoneKey(*t.ZoneID)
        }
        stats := snap.Zones[zone]
        stats.TableIDs = append(stats.TableIDs, t.ID)
        stats.Capacity += t.Capacity
        stats.Available++
        snap.Zones[zone] = stats
    }
    return snap
}

// undirected builds a symmetric adjacency graph from edge pairs.
func undirected(edges ...[2]uint64) map[uint64]map[uint64]bool {
    graph := make(map[uint64]map[uint64]bool)
    add := func(a, b uint64) {
        if graph[a] == nil {
            graph[a] = make(map[uint64]bool)
        }
        graph[a][b] = true
    }
    for _, e := range edges {
        add(e[0], e[1])
        add(e[1], e[0])
    }
    return graph
}

// testBooking returns a booking in the given state with a materialised
// absolute window, so the coordinator's policy step has everything it
// needs.
func testBooking(state model.AssignmentState, partySize int) *model.Booking {
    start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
    end := start.Add(2 * time.Hour)
    return &model.Booking{
        ID:                     42,
        RestaurantID:           1,
        RestaurantTimezone:     "Europe/London",
        PartySize:              partySize,
        StartAt:                &start,
        EndAt:                  &end,
        Status:                 "pending",
        AssignmentState:        state,
        AssignmentStateVersion: 3,
    }
}

// testContext assembles an engine context directly, bypassing BuildContext.
func testContext(b *model.Booking, snap *availability.Snapshot, graph map[uint64]map[uint64]bool) *Context {
    start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
    if graph == nil {
        graph = map[uint64]map[uint64]bool{}
    }
    return &Context{
        Booking:      b,
        TimeSlot:     model.TimeSlot{Start: start, End: start.Add(2 * time.Hour)},
        Availability: snap,
        Adjacency:    graph,
    }
}
