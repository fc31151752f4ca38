// Package observability provides the fire-and-forget event port the
// pipeline reports through.  Recording an event must never block or fail a
// booking: events go into a bounded channel drained by a single worker
// goroutine, and when the channel is full the event is dropped and counted.
package observability

import (
    "sync/atomic"
    "time"

    metrics "github.com/armon/go-metrics"
    "github.com/hashicorp/go-hclog"
)

// Severity classifies an event for downstream filtering.
type Severity string

const (
    SeverityInfo    Severity = "info"
    SeverityWarning Severity = "warning"
    SeverityError   Severity = "error"
)

// Event is one structured observability record.
type Event struct {
    Source       string         // emitting component, e.g. "assignment.coordinator"
    Type         string         // event name, e.g. "coordinator.confirmed"
    BookingID    uint64         // zero when not booking-scoped
    RestaurantID uint64         // zero when unknown
    Severity     Severity
    Context      map[string]any // free-form details: durations, reasons, counts
    At           time.Time
}

// Sink accepts events best-effort.  Implementations must not block.
type Sink interface {
    Record(ev Event)
}

// NopSink discards every event; useful in tests.
type NopSink struct{}

func (NopSink) Record(Event) {}

// Recorder is the default Sink: it logs each event through hclog and bumps
// a go-metrics counter named after the event type.  Events are handed to a
// worker over a bounded channel; a full channel drops the event.
type Recorder struct {
    ch      chan Event
    done    chan struct{}
    logger  hclog.Logger
    dropped atomic.Int64
}

// NewRecorder starts a recorder with the given buffer size (minimum 16).
// Call Close to flush and stop the worker.
func NewRecorder(logger hclog.Logger, buffer int) *Recorder {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    if buffer < 16 {
        buffer = 16
    }
    r := &Recorder{
        ch:     make(chan Event, buffer),
        done:   make(chan struct{}),
        logger: logger.Named("events"),
    }
    go r.drain()
    return r
}

// Record enqueues the event without blocking.  Dropped events are counted
// and surfaced via a metrics gauge rather than logged per event, so a
// saturated sink cannot flood the log either.
func (r *Recorder) Record(ev Event) {
    if ev.At.IsZero() {
        ev.At = time.Now().UTC()
    }
    if ev.Severity == "" {
        ev.Severity = SeverityInfo
    }
    select {
    case r.ch <- ev:
    default:
        dropped := r.dropped.Add(1)
        metrics.SetGauge([]string{"assignd", "events", "dropped"}, float32(dropped))
    }
}

// Dropped reports how many events have been discarded since start.
func (r *Recorder) Dropped() int64 {
    return r.dropped.Load()
}

// Close stops the worker after the queued events are written.
func (r *Recorder) Close() {
    close(r.ch)
    <-r.done
}

func (r *Recorder) drain() {
    defer close(r.done)
    for ev := range r.ch {
        r.write(ev)
    }
}

func (r *Recorder) write(ev Event) {
    metrics.IncrCounter([]string{"assignd", "events", ev.Type}, 1)

    args := make([]interface{}, 0, 8+len(ev.Context)*2)
    args = append(args, "source", ev.Source)
    if ev.BookingID != 0 {
        args = append(args, "booking_id", ev.BookingID)
    }
    if ev.RestaurantID != 0 {
        args = append(args, "restaurant_id", ev.RestaurantID)
    }
    for k, v := range ev.Context {
        args = append(args, k, v)
    }
    switch ev.Severity {
    case SeverityError:
        r.logger.Error(ev.Type, args...)
    case SeverityWarning:
        r.logger.Warn(ev.Type, args...)
    default:
        r.logger.Info(ev.Type, args...)
    }
}
