package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/restobook/assignd/internal/model"
)

// BookingRepo provides data access to the bookings table and its state
// history.  The assignment pipeline only reads bookings and advances their
// assignment fields; creation and guest-facing edits belong to the booking
// subsystem.  All methods operate on UTC timestamps.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `
    SELECT b.id, b.restaurant_id, r.timezone, b.booking_date, b.start_time,
           b.start_at, b.end_at, b.party_size, b.assigned_zone_id, b.status,
           b.assignment_state, b.assignment_state_version, b.assignment_strategy
    FROM bookings b
    JOIN restaurants r ON r.id = b.restaurant_id
    WHERE b.id = ?`

// BookingByID loads a booking together with its restaurant's timezone.
// Returns ErrNotFound when no such booking exists.
func (r *BookingRepo) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
    var (
        b           model.Booking
        startAt     sql.NullTime
        endAt       sql.NullTime
        zone        sql.NullInt64
        strategy    sql.NullString
        bookingDate sql.NullString
        startTime   sql.NullString
        state       sql.NullString
    )
    err := r.db.QueryRowContext(ctx, bookingSelect, id).Scan(
        &b.ID, &b.RestaurantID, &b.RestaurantTimezone, &bookingDate, &startTime,
        &startAt, &endAt, &b.PartySize, &zone, &b.Status,
        &state, &b.AssignmentStateVersion, &strategy,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    b.BookingDate = bookingDate.String
    b.StartTime = startTime.String
    if startAt.Valid {
        t := startAt.Time.UTC()
        b.StartAt = &t
    }
    if endAt.Valid {
        t := endAt.Time.UTC()
        b.EndAt = &t
    }
    if zone.Valid {
        z := uint64(zone.Int64)
        b.AssignedZoneID = &z
    }
    if strategy.Valid {
        s := strategy.String
        b.AssignmentStrategy = &s
    }
    // Bookings created before the pipeline rollout have a NULL state; they
    // are treated as freshly created.
    if state.Valid && state.String != "" {
        b.AssignmentState = model.AssignmentState(state.String)
    } else {
        b.AssignmentState = model.StateCreated
    }
    return &b, nil
}

// UpdateAssignmentState performs the conditional update that backs the
// state machine's optimistic-concurrency guard:
//
//	UPDATE ... SET assignment_state = ?, version = version + 1
//	WHERE id = ? AND assignment_state_version = ?
//
// When no row matches, another writer already advanced the version and
// ErrVersionConflict is returned; the booking row is left untouched.
func (r *BookingRepo) UpdateAssignmentState(ctx context.Context, bookingID uint64, to model.AssignmentState, expectedVersion int64) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings
         SET assignment_state = ?, assignment_state_version = assignment_state_version + 1,
             updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND assignment_state_version = ?`,
        string(to), bookingID, expectedVersion,
    )
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrVersionConflict
    }
    return nil
}

// AppendStateHistory inserts an immutable audit row for a state transition.
// Metadata is stored as JSON; an empty map is stored as SQL NULL.
func (r *BookingRepo) AppendStateHistory(ctx context.Context, bookingID uint64, from, to model.AssignmentState, metadata map[string]any) error {
    var meta any
    if len(metadata) > 0 {
        b, err := json.Marshal(metadata)
        if err != nil {
            return err
        }
        meta = string(b)
    }
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO booking_state_history (booking_id, from_state, to_state, metadata, created_at)
         VALUES (?, ?, ?, ?, UTC_TIMESTAMP())`,
        bookingID, string(from), string(to), meta,
    )
    return err
}

// SetAssignmentStrategy stamps the strategy that produced the confirmed
// assignment onto the booking row.  Best-effort bookkeeping; callers may
// log and ignore the error.
func (r *BookingRepo) SetAssignmentStrategy(ctx context.Context, bookingID uint64, strategy string) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET assignment_strategy = ? WHERE id = ?`,
        strategy, bookingID,
    )
    return err
}
