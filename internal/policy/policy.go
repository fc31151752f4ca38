// Package policy resolves a restaurant's operating policy and turns a
// booking into the absolute UTC time window it blocks.  The window is what
// every occupancy comparison in the pipeline operates on, so it is computed
// in one place, timezone-aware, with the policy's buffers applied.
package policy

import (
    "fmt"
    "time"

    "github.com/restobook/assignd/internal/model"
)

// DefaultTimezone is used when a restaurant has no timezone configured.
const DefaultTimezone = "Europe/London"

// TurnBand maps a maximum party size to the dining duration granted to
// parties up to that size.
type TurnBand struct {
    MaxPartySize int
    Duration     time.Duration
}

// VenuePolicy captures the slice of a restaurant's operating policy the
// pipeline needs: its timezone, the pre/post buffers around each booking,
// and the party-size turn bands.
type VenuePolicy struct {
    Location        *time.Location
    PreBuffer       time.Duration
    PostBuffer      time.Duration
    TurnBands       []TurnBand
    DefaultDuration time.Duration // for parties larger than every band
}

// ForTimezone builds the default venue policy in the given IANA timezone.
// An empty timezone falls back to DefaultTimezone; an unknown one is an
// error so that a misconfigured restaurant fails loudly rather than
// silently seating guests on UTC.
func ForTimezone(timezone string) (VenuePolicy, error) {
    if timezone == "" {
        timezone = DefaultTimezone
    }
    loc, err := time.LoadLocation(timezone)
    if err != nil {
        return VenuePolicy{}, fmt.Errorf("resolve timezone %q: %w", timezone, err)
    }
    return VenuePolicy{
        Location:   loc,
        PreBuffer:  0,
        PostBuffer: 5 * time.Minute,
        TurnBands: []TurnBand{
            {MaxPartySize: 2, Duration: 60 * time.Minute},
            {MaxPartySize: 4, Duration: 75 * time.Minute},
            {MaxPartySize: 6, Duration: 85 * time.Minute},
            {MaxPartySize: 8, Duration: 90 * time.Minute},
        },
        DefaultDuration: 2 * time.Hour,
    }, nil
}

// TurnDuration returns the dining duration for a party of the given size:
// the first band at least as large as the party, or the default beyond the
// last band.
func (p VenuePolicy) TurnDuration(partySize int) time.Duration {
    for _, band := range p.TurnBands {
        if partySize <= band.MaxPartySize {
            return band.Duration
        }
    }
    return p.DefaultDuration
}

// ComputeBookingWindow materialises the UTC slot a booking blocks.  Stored
// absolute timestamps win when present; otherwise the window is derived
// from the local booking date and start time interpreted in the
// restaurant's timezone, with the dining duration taken from the policy's
// turn bands.  Buffers widen the block on both sides.
func ComputeBookingWindow(b *model.Booking, p VenuePolicy) (model.TimeSlot, error) {
    var diningStart, diningEnd time.Time
    switch {
    case b.StartAt != nil && b.EndAt != nil:
        diningStart = b.StartAt.UTC()
        diningEnd = b.EndAt.UTC()
    case b.StartAt != nil:
        diningStart = b.StartAt.UTC()
        diningEnd = diningStart.Add(p.TurnDuration(b.PartySize))
    default:
        if b.BookingDate == "" || b.StartTime == "" {
            return model.TimeSlot{}, fmt.Errorf("booking %d has neither absolute nor local start", b.ID)
        }
        local, err := time.ParseInLocation("2006-01-02 15:04", b.BookingDate+" "+b.StartTime, p.Location)
        if err != nil {
            return model.TimeSlot{}, fmt.Errorf("parse local start for booking %d: %w", b.ID, err)
        }
        diningStart = local.UTC()
        diningEnd = diningStart.Add(p.TurnDuration(b.PartySize))
    }
    if !diningEnd.After(diningStart) {
        return model.TimeSlot{}, fmt.Errorf("booking %d has a non-positive dining window", b.ID)
    }
    return model.TimeSlot{
        Start: diningStart.Add(-p.PreBuffer),
        End:   diningEnd.Add(p.PostBuffer),
    }, nil
}
