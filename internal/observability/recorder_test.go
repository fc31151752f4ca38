package observability

import (
    "testing"
)

func TestRecorderDrainsWithoutDropping(t *testing.T) {
    r := NewRecorder(nil, 64)
    for i := 0; i < 50; i++ {
        r.Record(Event{Source: "test", Type: "coordinator.start", BookingID: uint64(i)})
    }
    r.Close()
    if got := r.Dropped(); got != 0 {
        t.Fatalf("dropped = %d, want 0 with a large enough buffer", got)
    }
}

func TestRecordDefaultsSeverityAndTimestamp(t *testing.T) {
    r := NewRecorder(nil, 16)
    defer r.Close()

    // Record must not block or fail regardless of payload.
    r.Record(Event{Type: "state.transition"})
    r.Record(Event{Type: "coordinator.error", Severity: SeverityError, Context: map[string]any{"error": "boom"}})
}
