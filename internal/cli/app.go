package cli

import (
    "database/sql"
    "fmt"

    "github.com/hashicorp/go-hclog"

    "github.com/restobook/assignd/internal/assignment"
    "github.com/restobook/assignd/internal/availability"
    "github.com/restobook/assignd/internal/breaker"
    "github.com/restobook/assignd/internal/config"
    "github.com/restobook/assignd/internal/database"
    "github.com/restobook/assignd/internal/lock"
    "github.com/restobook/assignd/internal/observability"
    "github.com/restobook/assignd/internal/queue"
    "github.com/restobook/assignd/internal/ratelimit"
    "github.com/restobook/assignd/internal/repository"
)

// app holds everything both commands need: the wired coordinator, the
// shared database pool and the components that must be flushed on exit.
type app struct {
    cfg         config.Config
    pipeline    config.PipelineConfig
    db          *sql.DB
    coordinator *assignment.Coordinator
    recorder    *observability.Recorder
    publisher   queue.Publisher
    logger      hclog.Logger
}

// buildApp wires the full pipeline from environment configuration.  Redis
// is mandatory: without the distributed lock the coordinator cannot
// guarantee mutual exclusion, so a missing Redis is a startup failure, not
// a degraded mode.  The broker is optional; without it integration events
// are dropped.
func buildApp(logger hclog.Logger) (*app, error) {
    cfg := config.Load()
    pcfg := config.LoadPipelineConfig()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        return nil, fmt.Errorf("open database: %w", err)
    }

    rdb := config.NewRedisClient()
    if rdb == nil {
        db.Close()
        return nil, fmt.Errorf("redis unreachable: the booking lock requires it")
    }

    recorder := observability.NewRecorder(logger, 256)

    var publisher queue.Publisher = queue.NopPublisher{}
    if cfg.AMQPURL != "" {
        publisher = queue.NewAMQPPublisher(cfg.AMQPURL, logger, 256)
    } else {
        logger.Warn("RABBITMQ_URL unset, integration events disabled")
    }

    bookings := repository.NewBookingRepo(db)
    tables := repository.NewTableRepo(db)
    holds := repository.NewHoldRepo(db)
    attempts := repository.NewAttemptRepo(db)

    tracker := availability.NewTracker(tables, logger)
    machine := assignment.NewStateMachine(bookings, recorder, publisher, logger)
    engine := assignment.NewEngine(assignment.EngineConfig{
        MaxPlansToTry:       pcfg.MaxPlansToTry,
        HoldTTL:             pcfg.HoldTTL,
        IncludePendingHolds: pcfg.IncludePendingHolds,
    }, tracker, tables, holds, attempts, logger)

    coordinator := assignment.NewCoordinator(
        assignment.Config{
            Mode:       assignment.ParseMode(pcfg.Mode),
            LockTTL:    pcfg.LockTTL,
            MaxRetries: pcfg.MaxRetries,
        },
        bookings,
        attempts,
        holds,
        machine,
        engine,
        lock.NewManager(rdb, logger),
        breaker.New(breaker.Config{
            FailureThreshold:  pcfg.BreakerFailureThreshold,
            Cooldown:          pcfg.BreakerCooldown,
            HalfOpenSuccesses: pcfg.BreakerHalfOpenSuccesses,
        }),
        ratelimit.New(pcfg.MaxConcurrentPerRestaurant),
        tracker,
        recorder,
        publisher,
        logger,
    )

    return &app{
        cfg:         cfg,
        pipeline:    pcfg,
        db:          db,
        coordinator: coordinator,
        recorder:    recorder,
        publisher:   publisher,
        logger:      logger,
    }, nil
}

// close flushes the best-effort side channels and releases the pool.
func (a *app) close() {
    if p, ok := a.publisher.(*queue.AMQPPublisher); ok {
        p.Close()
    }
    a.recorder.Close()
    if err := a.db.Close(); err != nil {
        a.logger.Warn("closing database pool failed", "error", err)
    }
}
