package availability

import (
    "context"
    "testing"
    "time"

    "github.com/restobook/assignd/internal/model"
)

// fakeStore serves canned tables and occupancy and counts queries so cache
// behaviour is observable.
type fakeStore struct {
    tables   []model.Table
    occupied []uint64
    held     []uint64
    queries  int
}

func (f *fakeStore) TablesForRestaurant(ctx context.Context, restaurantID uint64) ([]model.Table, error) {
    f.queries++
    return f.tables, nil
}

func (f *fakeStore) OccupiedTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error) {
    return f.occupied, nil
}

func (f *fakeStore) HeldTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error) {
    return f.held, nil
}

func zone(id uint64) *uint64 { return &id }

func testSlot() model.TimeSlot {
    start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
    return model.TimeSlot{Start: start, End: start.Add(2 * time.Hour)}
}

func TestSnapshotComputesAvailabilityAndZones(t *testing.T) {
    store := &fakeStore{
        tables: []model.Table{
            {ID: 1, RestaurantID: 5, ZoneID: zone(10), Capacity: 2, Active: true},
            {ID: 2, RestaurantID: 5, ZoneID: zone(10), Capacity: 4, Active: true},
            {ID: 3, RestaurantID: 5, ZoneID: zone(11), Capacity: 6, Active: true},
            {ID: 4, RestaurantID: 5, Capacity: 8, Active: true},   // unzoned
            {ID: 5, RestaurantID: 5, Capacity: 10, Active: false}, // inactive
            {ID: 6, RestaurantID: 5, ZoneID: zone(11), Capacity: 4, Active: true},
        },
        occupied: []uint64{2},
        held:     []uint64{3},
    }
    tr := NewTracker(store, nil)

    snap, err := tr.Snapshot(context.Background(), 5, testSlot(), true)
    if err != nil {
        t.Fatalf("snapshot: %v", err)
    }

    if got := len(snap.AvailableTables); got != 3 {
        t.Fatalf("available tables = %d, want 3 (1, 4, 6)", got)
    }
    if snap.TotalCapacity != 2+8+4 {
        t.Fatalf("total capacity = %d, want 14", snap.TotalCapacity)
    }
    if snap.LargestTable != 8 {
        t.Fatalf("largest table = %d, want 8", snap.LargestTable)
    }

    if stats := snap.Zones["10"]; stats.Available != 1 || stats.Capacity != 2 {
        t.Fatalf("zone 10 stats = %+v", stats)
    }
    if stats := snap.Zones["11"]; stats.Available != 1 || stats.Capacity != 4 {
        t.Fatalf("zone 11 stats = %+v", stats)
    }
    if stats := snap.Zones["unassigned"]; stats.Available != 1 || stats.Capacity != 8 {
        t.Fatalf("unassigned zone stats = %+v", stats)
    }
}

func TestHeldTablesOnlyBlockWhenPendingIncluded(t *testing.T) {
    store := &fakeStore{
        tables: []model.Table{
            {ID: 1, RestaurantID: 5, Capacity: 4, Active: true},
            {ID: 2, RestaurantID: 5, Capacity: 4, Active: true},
        },
        held: []uint64{2},
    }
    tr := NewTracker(store, nil)
    ctx := context.Background()

    withPending, err := tr.Snapshot(ctx, 5, testSlot(), true)
    if err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if got := len(withPending.AvailableTables); got != 1 {
        t.Fatalf("available with pending = %d, want 1", got)
    }

    withoutPending, err := tr.Snapshot(ctx, 5, testSlot(), false)
    if err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if got := len(withoutPending.AvailableTables); got != 2 {
        t.Fatalf("available without pending = %d, want 2", got)
    }
}

func TestSnapshotIsCachedUntilInvalidated(t *testing.T) {
    store := &fakeStore{
        tables: []model.Table{{ID: 1, RestaurantID: 5, Capacity: 4, Active: true}},
    }
    tr := NewTracker(store, nil)
    ctx := context.Background()
    slot := testSlot()

    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("first snapshot: %v", err)
    }
    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("second snapshot: %v", err)
    }
    if store.queries != 1 {
        t.Fatalf("store queried %d times, want 1 (second call cached)", store.queries)
    }

    tr.Invalidate(5)
    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("post-invalidate snapshot: %v", err)
    }
    if store.queries != 2 {
        t.Fatalf("store queried %d times after invalidate, want 2", store.queries)
    }

    // Invalidating a different restaurant leaves the entry alone.
    tr.Invalidate(6)
    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if store.queries != 2 {
        t.Fatalf("unrelated invalidate evicted the entry, queries=%d", store.queries)
    }
}

func TestSubscribersSeeFreshSnapshots(t *testing.T) {
    store := &fakeStore{
        tables: []model.Table{{ID: 1, RestaurantID: 5, Capacity: 4, Active: true}},
    }
    tr := NewTracker(store, nil)
    ctx := context.Background()
    slot := testSlot()

    var received []*Snapshot
    cancel := tr.Subscribe(5, slot, true, func(s *Snapshot) {
        received = append(received, s)
    })

    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if len(received) != 1 {
        t.Fatalf("subscriber notified %d times, want 1", len(received))
    }

    // Cache hits do not re-notify.
    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if len(received) != 1 {
        t.Fatalf("cache hit re-notified, count=%d", len(received))
    }

    cancel()
    tr.InvalidateAll()
    if _, err := tr.Snapshot(ctx, 5, slot, true); err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if len(received) != 1 {
        t.Fatalf("cancelled subscriber notified, count=%d", len(received))
    }
}

func TestPanickingSubscriberDoesNotBreakSnapshot(t *testing.T) {
    store := &fakeStore{
        tables: []model.Table{{ID: 1, RestaurantID: 5, Capacity: 4, Active: true}},
    }
    tr := NewTracker(store, nil)
    slot := testSlot()
    tr.Subscribe(5, slot, true, func(*Snapshot) { panic("bad subscriber") })

    snap, err := tr.Snapshot(context.Background(), 5, slot, true)
    if err != nil || snap == nil {
        t.Fatalf("snapshot survived panic: snap=%v err=%v", snap, err)
    }
}
