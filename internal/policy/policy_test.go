package policy

import (
    "testing"
    "time"

    "github.com/restobook/assignd/internal/model"
)

func TestTurnDurationBands(t *testing.T) {
    p, err := ForTimezone("Europe/London")
    if err != nil {
        t.Fatalf("ForTimezone: %v", err)
    }

    cases := []struct {
        partySize int
        want      time.Duration
    }{
        {1, 60 * time.Minute},
        {2, 60 * time.Minute},
        {3, 75 * time.Minute},
        {4, 75 * time.Minute},
        {5, 85 * time.Minute},
        {6, 85 * time.Minute},
        {8, 90 * time.Minute},
        {9, 2 * time.Hour},
        {14, 2 * time.Hour},
    }
    for _, tc := range cases {
        if got := p.TurnDuration(tc.partySize); got != tc.want {
            t.Errorf("TurnDuration(%d) = %s, want %s", tc.partySize, got, tc.want)
        }
    }
}

func TestForTimezoneRejectsUnknown(t *testing.T) {
    if _, err := ForTimezone("Mars/Olympus_Mons"); err == nil {
        t.Fatal("unknown timezone accepted")
    }
}

func TestComputeBookingWindowFromLocalTime(t *testing.T) {
    p, err := ForTimezone("Europe/London")
    if err != nil {
        t.Fatalf("ForTimezone: %v", err)
    }

    // 2026-07-10 is BST (UTC+1), so a 19:00 local start is 18:00 UTC.
    b := &model.Booking{ID: 1, BookingDate: "2026-07-10", StartTime: "19:00", PartySize: 4}
    slot, err := ComputeBookingWindow(b, p)
    if err != nil {
        t.Fatalf("ComputeBookingWindow: %v", err)
    }

    wantStart := time.Date(2026, 7, 10, 18, 0, 0, 0, time.UTC)
    if !slot.Start.Equal(wantStart) {
        t.Fatalf("start = %s, want %s", slot.Start, wantStart)
    }
    // 75m turn for a party of four, plus the 5m post buffer.
    wantEnd := wantStart.Add(75*time.Minute + 5*time.Minute)
    if !slot.End.Equal(wantEnd) {
        t.Fatalf("end = %s, want %s", slot.End, wantEnd)
    }
}

func TestComputeBookingWindowPrefersStoredTimestamps(t *testing.T) {
    p, err := ForTimezone("Europe/London")
    if err != nil {
        t.Fatalf("ForTimezone: %v", err)
    }

    start := time.Date(2026, 7, 10, 18, 0, 0, 0, time.UTC)
    end := start.Add(3 * time.Hour)
    b := &model.Booking{
        ID:          2,
        BookingDate: "2026-07-10",
        StartTime:   "12:00", // must be ignored
        StartAt:     &start,
        EndAt:       &end,
        PartySize:   2,
    }
    slot, err := ComputeBookingWindow(b, p)
    if err != nil {
        t.Fatalf("ComputeBookingWindow: %v", err)
    }
    if !slot.Start.Equal(start) {
        t.Fatalf("start = %s, want stored %s", slot.Start, start)
    }
    if !slot.End.Equal(end.Add(5 * time.Minute)) {
        t.Fatalf("end = %s, want stored end plus post buffer", slot.End)
    }
}

func TestComputeBookingWindowStartOnlyUsesTurnBand(t *testing.T) {
    p, err := ForTimezone("Europe/London")
    if err != nil {
        t.Fatalf("ForTimezone: %v", err)
    }

    start := time.Date(2026, 7, 10, 18, 0, 0, 0, time.UTC)
    b := &model.Booking{ID: 3, StartAt: &start, PartySize: 6}
    slot, err := ComputeBookingWindow(b, p)
    if err != nil {
        t.Fatalf("ComputeBookingWindow: %v", err)
    }
    if !slot.End.Equal(start.Add(85*time.Minute + 5*time.Minute)) {
        t.Fatalf("end = %s, want start + 85m band + 5m buffer", slot.End)
    }
}

func TestComputeBookingWindowMissingInputs(t *testing.T) {
    p, err := ForTimezone("")
    if err != nil {
        t.Fatalf("default timezone: %v", err)
    }
    b := &model.Booking{ID: 4, PartySize: 2}
    if _, err := ComputeBookingWindow(b, p); err == nil {
        t.Fatal("booking without any start accepted")
    }
}
