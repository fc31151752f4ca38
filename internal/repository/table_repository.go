package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/restobook/assignd/internal/model"
)

// BlockingStatuses are the guest-facing booking statuses that occupy their
// assigned tables for the duration of their slot.  Cancelled and no-show
// bookings release their tables immediately and are excluded.
var BlockingStatuses = []string{"pending", "confirmed", "checked_in"}

// TableRepo provides data access to a restaurant's floor: its tables, the
// adjacency edges between them, and the occupancy derived from blocking
// bookings and active holds.  It is the read side feeding the availability
// tracker; writes to holds live in HoldRepo.
type TableRepo struct {
    db *sql.DB
}

// NewTableRepo returns a new TableRepo bound to the provided database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// TablesForRestaurant lists every table of a restaurant, active or not.
// Callers filter on Active; returning the full set keeps the query
// cacheable for both availability and floor-plan style consumers.
func (r *TableRepo) TablesForRestaurant(ctx context.Context, restaurantID uint64) ([]model.Table, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, restaurant_id, zone_id, label, capacity, is_active
         FROM restaurant_tables
         WHERE restaurant_id = ?
         ORDER BY capacity, id`,
        restaurantID,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tables []model.Table
    for rows.Next() {
        var (
            t    model.Table
            zone sql.NullInt64
        )
        if err := rows.Scan(&t.ID, &t.RestaurantID, &zone, &t.Label, &t.Capacity, &t.Active); err != nil {
            return nil, err
        }
        if zone.Valid {
            z := uint64(zone.Int64)
            t.ZoneID = &z
        }
        tables = append(tables, t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return tables, nil
}

// OccupiedTableIDs returns the distinct tables claimed by blocking-status
// bookings whose window overlaps the slot.  Overlap is the usual half-open
// comparison: start_at < slot.end AND end_at > slot.start.
func (r *TableRepo) OccupiedTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error) {
    q := `SELECT DISTINCT bta.table_id
          FROM bookings b
          JOIN booking_table_assignments bta ON bta.booking_id = b.id
          WHERE b.restaurant_id = ?
            AND b.status IN (` + placeholders(len(BlockingStatuses)) + `)
            AND b.start_at < ? AND b.end_at > ?`
    args := make([]interface{}, 0, len(BlockingStatuses)+3)
    args = append(args, restaurantID)
    for _, s := range BlockingStatuses {
        args = append(args, s)
    }
    args = append(args, slot.End.UTC(), slot.Start.UTC())
    return r.queryIDs(ctx, q, args...)
}

// HeldTableIDs returns the distinct tables reserved by unexpired holds
// whose window overlaps the slot.  Callers that want a confirmed-only view
// simply skip this query.
func (r *TableRepo) HeldTableIDs(ctx context.Context, restaurantID uint64, slot model.TimeSlot) ([]uint64, error) {
    const q = `SELECT DISTINCT m.table_id
               FROM table_holds h
               JOIN table_hold_members m ON m.hold_id = h.id
               WHERE h.restaurant_id = ?
                 AND h.expires_at > UTC_TIMESTAMP()
                 AND h.start_at < ? AND h.end_at > ?`
    return r.queryIDs(ctx, q, restaurantID, slot.End.UTC(), slot.Start.UTC())
}

// Adjacency loads the undirected adjacency graph for a restaurant,
// restricted to the provided table ids.  Edges touching a table outside
// the set are dropped so that plan connectivity checks only ever walk
// currently relevant tables.  The result maps a table id to its neighbour
// set; both directions are populated regardless of how the edge is stored.
func (r *TableRepo) Adjacency(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]map[uint64]bool, error) {
    graph := make(map[uint64]map[uint64]bool, len(tableIDs))
    if len(tableIDs) == 0 {
        return graph, nil
    }
    keep := make(map[uint64]bool, len(tableIDs))
    for _, id := range tableIDs {
        keep[id] = true
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT table_id, adjacent_table_id
         FROM table_adjacencies
         WHERE restaurant_id = ?`,
        restaurantID,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var a, b uint64
        if err := rows.Scan(&a, &b); err != nil {
            return nil, err
        }
        if !keep[a] || !keep[b] {
            continue
        }
        addEdge(graph, a, b)
        addEdge(graph, b, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return graph, nil
}

func addEdge(graph map[uint64]map[uint64]bool, from, to uint64) {
    set := graph[from]
    if set == nil {
        set = make(map[uint64]bool)
        graph[from] = set
    }
    set[to] = true
}

func (r *TableRepo) queryIDs(ctx context.Context, q string, args ...interface{}) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// placeholders builds a "?, ?, ?" list for IN clauses.
func placeholders(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
