package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "time"
)

// AttemptRecord is the persistence model for one row of the assignment
// attempt audit table.  Every plan that reached the hold step is recorded,
// whether or not the hold succeeded, so that failures are countable and
// strategies can be scored by their trailing success rate.
type AttemptRecord struct {
    BookingID uint64         // booking_assignment_attempts.booking_id
    AttemptNo int            // booking_assignment_attempts.attempt_no
    Strategy  string         // booking_assignment_attempts.strategy
    Result    string         // "success" or "failure"
    Reason    string         // failure reason, only set on the final attempt
    Metadata  map[string]any // plan details: slack, table count, zone, score
}

// AttemptRepo provides data access to the booking_assignment_attempts
// audit table.
type AttemptRepo struct {
    db *sql.DB
}

// NewAttemptRepo returns a new AttemptRepo bound to the provided database.
func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{db: db} }

// InsertAttempts appends audit rows in a single multi-values statement.
// Passing an empty slice has no effect and returns nil.
func (r *AttemptRepo) InsertAttempts(ctx context.Context, records []AttemptRecord) error {
    if len(records) == 0 {
        return nil
    }
    query := `INSERT INTO booking_assignment_attempts
              (booking_id, attempt_no, strategy, result, reason, metadata, created_at) VALUES `
    args := make([]interface{}, 0, len(records)*6)
    for i, rec := range records {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())"
        var reason any
        if rec.Reason != "" {
            reason = rec.Reason
        }
        var meta any
        if len(rec.Metadata) > 0 {
            b, err := json.Marshal(rec.Metadata)
            if err != nil {
                return err
            }
            meta = string(b)
        }
        args = append(args, rec.BookingID, rec.AttemptNo, rec.Strategy, rec.Result, reason, meta)
    }
    _, err := r.db.ExecContext(ctx, query, args...)
    return err
}

// CountAttempts returns how many attempts have been audited for a booking.
// The failure handler compares this against the retry budget.
func (r *AttemptRepo) CountAttempts(ctx context.Context, bookingID uint64) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM booking_assignment_attempts WHERE booking_id = ?`,
        bookingID,
    ).Scan(&n)
    return n, err
}

// NextAttemptNo returns the attempt number the next audit row should carry:
// one past the highest recorded number, starting at 1.
func (r *AttemptRepo) NextAttemptNo(ctx context.Context, bookingID uint64) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx,
        `SELECT COALESCE(MAX(attempt_no), 0) + 1 FROM booking_assignment_attempts WHERE booking_id = ?`,
        bookingID,
    ).Scan(&n)
    return n, err
}

// StrategySuccessRate computes successes/attempts for a strategy over the
// recent rows since the given time, capped at limit rows.  ok is false when
// no history exists, in which case callers apply their neutral default.
func (r *AttemptRepo) StrategySuccessRate(ctx context.Context, strategy string, since time.Time, limit int) (rate float64, ok bool, err error) {
    if limit <= 0 {
        limit = 200
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT result FROM booking_assignment_attempts
         WHERE strategy = ? AND created_at >= ?
         ORDER BY created_at DESC
         LIMIT ?`,
        strategy, since.UTC(), limit,
    )
    if err != nil {
        return 0, false, err
    }
    defer rows.Close()
    var total, successes int
    for rows.Next() {
        var result string
        if err := rows.Scan(&result); err != nil {
            return 0, false, err
        }
        total++
        if result == "success" {
            successes++
        }
    }
    if err := rows.Err(); err != nil {
        return 0, false, err
    }
    if total == 0 {
        return 0, false, nil
    }
    return float64(successes) / float64(total), true, nil
}
