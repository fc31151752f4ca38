package repository

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "time"

    "github.com/restobook/assignd/internal/model"
)

// HoldRepo provides data access to the table_holds table and implements the
// hold service consumed by the assignment engine: placing short-TTL holds
// and atomically converting a hold into a permanent table assignment.  All
// validation happens inside the transaction so that two engines racing the
// same tables cannot both succeed.
type HoldRepo struct {
    db *sql.DB
}

// NewHoldRepo returns a new HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// CreateHold places a hold on the requested tables for the booking's slot.
// Inside a single transaction it re-validates that every table is active
// and neither occupied by a blocking booking nor covered by another
// unexpired hold for an overlapping window, and that the adjacency
// requirement (when set) is satisfied by the stored adjacency edges.  A
// request that fails validation returns ErrManualSelection; the engine
// treats that as "this plan doesn't work" and tries the next one.
func (r *HoldRepo) CreateHold(ctx context.Context, req model.HoldRequest) (*model.TableHold, error) {
    if len(req.TableIDs) == 0 {
        return nil, fmt.Errorf("%w: no tables requested", ErrManualSelection)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer func() { _ = tx.Rollback() }()

    if err := r.validateSelectionTx(ctx, tx, req); err != nil {
        return nil, err
    }

    token, err := randomToken(16)
    if err != nil {
        return nil, err
    }
    now := time.Now().UTC()
    expiresAt := now.Add(req.TTL)

    if _, err := tx.ExecContext(ctx,
        `INSERT INTO table_holds (id, booking_id, restaurant_id, require_adjacency,
                                  start_at, end_at, expires_at, created_by, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        token, req.BookingID, req.RestaurantID, req.RequireAdjacency,
        req.Slot.Start.UTC(), req.Slot.End.UTC(), expiresAt, req.CreatedBy, now,
    ); err != nil {
        return nil, err
    }

    memberQ := `INSERT INTO table_hold_members (hold_id, table_id) VALUES `
    args := make([]interface{}, 0, len(req.TableIDs)*2)
    for i, id := range req.TableIDs {
        if i > 0 {
            memberQ += ","
        }
        memberQ += "(?, ?)"
        args = append(args, token, id)
    }
    if _, err := tx.ExecContext(ctx, memberQ, args...); err != nil {
        return nil, err
    }

    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return &model.TableHold{
        ID:               token,
        BookingID:        req.BookingID,
        RestaurantID:     req.RestaurantID,
        TableIDs:         append([]uint64(nil), req.TableIDs...),
        RequireAdjacency: req.RequireAdjacency,
        Slot:             req.Slot,
        ExpiresAt:        expiresAt,
        CreatedBy:        req.CreatedBy,
        CreatedAt:        now,
    }, nil
}

// ConfirmHold atomically converts a hold into a permanent table assignment:
// within one transaction it locks the hold row, verifies ownership and
// expiry, inserts booking_table_assignments for every member table,
// deletes the hold, marks the booking's guest-facing status confirmed and
// appends a status-history row.  A failure at any step rolls the whole
// operation back, so a confirmed hold can never coexist with an
// unconfirmed booking.
func (r *HoldRepo) ConfirmHold(ctx context.Context, bookingID uint64, holdID string, metadata map[string]any) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()

    var expiresAt time.Time
    err = tx.QueryRowContext(ctx,
        `SELECT expires_at FROM table_holds WHERE id = ? AND booking_id = ? FOR UPDATE`,
        holdID, bookingID,
    ).Scan(&expiresAt)
    if err == sql.ErrNoRows {
        return ErrNotFound
    }
    if err != nil {
        return err
    }
    if !expiresAt.After(time.Now().UTC()) {
        return ErrHoldExpired
    }

    rows, err := tx.QueryContext(ctx,
        `SELECT table_id FROM table_hold_members WHERE hold_id = ?`, holdID)
    if err != nil {
        return err
    }
    var tableIDs []uint64
    for rows.Next() {
        var id uint64
        if scanErr := rows.Scan(&id); scanErr != nil {
            rows.Close()
            return scanErr
        }
        tableIDs = append(tableIDs, id)
    }
    if err = rows.Close(); err != nil {
        return err
    }
    if len(tableIDs) == 0 {
        return fmt.Errorf("%w: hold %s has no members", ErrManualSelection, holdID)
    }

    assignQ := `INSERT INTO booking_table_assignments (booking_id, table_id, assigned_by, created_at) VALUES `
    args := make([]interface{}, 0, len(tableIDs)*3)
    now := time.Now().UTC()
    for i, id := range tableIDs {
        if i > 0 {
            assignQ += ","
        }
        assignQ += "(?, ?, 'assignment_coordinator', ?)"
        args = append(args, bookingID, id, now)
    }
    if _, err := tx.ExecContext(ctx, assignQ, args...); err != nil {
        return err
    }

    if _, err := tx.ExecContext(ctx, `DELETE FROM table_hold_members WHERE hold_id = ?`, holdID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM table_holds WHERE id = ?`, holdID); err != nil {
        return err
    }

    if _, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = 'confirmed', updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        bookingID,
    ); err != nil {
        return err
    }

    var meta any
    if len(metadata) > 0 {
        b, mErr := json.Marshal(metadata)
        if mErr != nil {
            return mErr
        }
        meta = string(b)
    }
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO booking_status_history (booking_id, status, reason, metadata, created_at)
         VALUES (?, 'confirmed', 'assignment.auto_confirmed', ?, UTC_TIMESTAMP())`,
        bookingID, meta,
    ); err != nil {
        return err
    }

    return tx.Commit()
}

// ReleaseHold drops a hold and its members without assigning anything.
// Releasing a hold that no longer exists is not an error; expiry may have
// already reclaimed it.
func (r *HoldRepo) ReleaseHold(ctx context.Context, holdID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, `DELETE FROM table_hold_members WHERE hold_id = ?`, holdID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM table_holds WHERE id = ?`, holdID); err != nil {
        return err
    }
    return tx.Commit()
}

// validateSelectionTx re-checks the requested tables against the live store
// state.  Plans are built from a cached availability snapshot that may be
// up to a second stale, so the transactional check is what actually
// prevents double allocation.
func (r *HoldRepo) validateSelectionTx(ctx context.Context, tx *sql.Tx, req model.HoldRequest) error {
    inClause := placeholders(len(req.TableIDs))
    idArgs := make([]interface{}, 0, len(req.TableIDs))
    for _, id := range req.TableIDs {
        idArgs = append(idArgs, id)
    }

    // Every table must exist, belong to the restaurant and be active.
    var active int
    args := append([]interface{}{req.RestaurantID}, idArgs...)
    if err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM restaurant_tables
         WHERE restaurant_id = ? AND is_active = 1 AND id IN (`+inClause+`)`,
        args...,
    ).Scan(&active); err != nil {
        return err
    }
    if active != len(req.TableIDs) {
        return fmt.Errorf("%w: inactive or unknown table in selection", ErrManualSelection)
    }

    // No blocking booking may occupy any requested table in the window.
    var occupied int
    args = make([]interface{}, 0, len(BlockingStatuses)+len(req.TableIDs)+2)
    for _, s := range BlockingStatuses {
        args = append(args, s)
    }
    args = append(args, idArgs...)
    args = append(args, req.Slot.End.UTC(), req.Slot.Start.UTC())
    if err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM bookings b
         JOIN booking_table_assignments bta ON bta.booking_id = b.id
         WHERE b.status IN (`+placeholders(len(BlockingStatuses))+`)
           AND bta.table_id IN (`+inClause+`)
           AND b.start_at < ? AND b.end_at > ?`,
        args...,
    ).Scan(&occupied); err != nil {
        return err
    }
    if occupied > 0 {
        return fmt.Errorf("%w: table occupied for the requested window", ErrManualSelection)
    }

    // No other unexpired hold may cover any requested table in the window.
    var held int
    args = append(append([]interface{}{req.BookingID}, idArgs...), req.Slot.End.UTC(), req.Slot.Start.UTC())
    if err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM table_holds h
         JOIN table_hold_members m ON m.hold_id = h.id
         WHERE h.booking_id <> ?
           AND h.expires_at > UTC_TIMESTAMP()
           AND m.table_id IN (`+inClause+`)
           AND h.start_at < ? AND h.end_at > ?`,
        args...,
    ).Scan(&held); err != nil {
        return err
    }
    if held > 0 {
        return fmt.Errorf("%w: table held by another booking", ErrManualSelection)
    }

    if req.RequireAdjacency && len(req.TableIDs) > 1 {
        connected, err := r.selectionConnectedTx(ctx, tx, req.RestaurantID, req.TableIDs)
        if err != nil {
            return err
        }
        if !connected {
            return fmt.Errorf("%w: tables are not adjacent", ErrManualSelection)
        }
    }
    return nil
}

// selectionConnectedTx walks the stored adjacency edges restricted to the
// selection and reports whether they form a single connected component.
func (r *HoldRepo) selectionConnectedTx(ctx context.Context, tx *sql.Tx, restaurantID uint64, tableIDs []uint64) (bool, error) {
    keep := make(map[uint64]bool, len(tableIDs))
    for _, id := range tableIDs {
        keep[id] = true
    }
    rows, err := tx.QueryContext(ctx,
        `SELECT table_id, adjacent_table_id FROM table_adjacencies WHERE restaurant_id = ?`,
        restaurantID,
    )
    if err != nil {
        return false, err
    }
    graph := make(map[uint64][]uint64)
    for rows.Next() {
        var a, b uint64
        if scanErr := rows.Scan(&a, &b); scanErr != nil {
            rows.Close()
            return false, scanErr
        }
        if keep[a] && keep[b] {
            graph[a] = append(graph[a], b)
            graph[b] = append(graph[b], a)
        }
    }
    if err := rows.Close(); err != nil {
        return false, err
    }

    visited := map[uint64]bool{tableIDs[0]: true}
    queue := []uint64{tableIDs[0]}
    for len(queue) > 0 {
        current := queue[0]
        queue = queue[1:]
        for _, next := range graph[current] {
            if !visited[next] {
                visited[next] = true
                queue = append(queue, next)
            }
        }
    }
    return len(visited) == len(tableIDs), nil
}

// randomToken generates a random hexadecimal string of n bytes (2n hex
// characters).  The underlying call to crypto/rand ensures
// cryptographically secure random bytes.  It is used to populate the hold
// id, which doubles as the opaque token returned to callers.
func randomToken(n int) (string, error) {
    b := make([]byte, n)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
