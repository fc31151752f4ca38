package queue

import (
    "context"
    "encoding/json"
    "time"

    "github.com/hashicorp/go-hclog"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the outbound integration port.  Implementations must be
// fire-and-forget: failures are handled internally and never surfaced to
// the caller.
type Publisher interface {
    PublishStateChanged(ev AssignmentStateChangedEvent)
    PublishConfirmed(ev AssignmentConfirmedEvent)
}

// NopPublisher drops every event; used when no broker is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) PublishStateChanged(AssignmentStateChangedEvent) {}
func (NopPublisher) PublishConfirmed(AssignmentConfirmedEvent)       {}

// outbound pairs a queue name with an already-marshalled body.
type outbound struct {
    queue string
    body  []byte
}

// AMQPPublisher delivers events to RabbitMQ.  Publishing enqueues onto a
// bounded channel and returns immediately; a single worker goroutine dials
// the broker and publishes persistently, logging and dropping on any
// failure.  A full channel likewise drops the event — a slow broker must
// never stall a booking.
type AMQPPublisher struct {
    url    string
    logger hclog.Logger
    ch     chan outbound
    done   chan struct{}
}

// NewAMQPPublisher starts a publisher for the given broker URL.
func NewAMQPPublisher(url string, logger hclog.Logger, buffer int) *AMQPPublisher {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    if buffer < 16 {
        buffer = 16
    }
    p := &AMQPPublisher{
        url:    url,
        logger: logger.Named("amqp"),
        ch:     make(chan outbound, buffer),
        done:   make(chan struct{}),
    }
    go p.worker()
    return p
}

// PublishStateChanged offers a state-transition event to the broker under
// the queue "booking.assignment_state.{to}".
func (p *AMQPPublisher) PublishStateChanged(ev AssignmentStateChangedEvent) {
    p.enqueue("booking.assignment_state."+ev.ToState, ev)
}

// PublishConfirmed offers a confirmation event under
// "booking.assignment.confirmed".
func (p *AMQPPublisher) PublishConfirmed(ev AssignmentConfirmedEvent) {
    p.enqueue("booking.assignment.confirmed", ev)
}

// Close stops the worker after queued events are attempted.
func (p *AMQPPublisher) Close() {
    close(p.ch)
    <-p.done
}

func (p *AMQPPublisher) enqueue(queueName string, ev any) {
    body, err := json.Marshal(ev)
    if err != nil {
        p.logger.Warn("marshal event failed", "queue", queueName, "error", err)
        return
    }
    select {
    case p.ch <- outbound{queue: queueName, body: body}:
    default:
        p.logger.Warn("publish buffer full, dropping event", "queue", queueName)
    }
}

func (p *AMQPPublisher) worker() {
    defer close(p.done)
    for msg := range p.ch {
        if err := p.publish(msg); err != nil {
            p.logger.Warn("publish failed", "queue", msg.queue, "error", err)
        }
    }
}

// publish dials the broker, declares the durable queue (idempotent) and
// publishes one persistent message.  Dialling per message keeps failure
// handling simple at the cost of latency the caller never sees.
func (p *AMQPPublisher) publish(msg outbound) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        msg.queue, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        return err
    }

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    return ch.PublishWithContext(ctx,
        "",        // default exchange
        msg.queue, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent, // store on disk
            Timestamp:    time.Now().UTC(),
            Body:         msg.body,
        },
    )
}
