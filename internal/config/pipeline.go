package config

import "time"

// PipelineConfig gathers every tunable of the assignment pipeline.  All
// values have sensible defaults so that only ASSIGN_PIPELINE_MODE needs to
// be set to turn the pipeline on.  When Mode is "disabled" the coordinator
// short-circuits before taking any lock.
type PipelineConfig struct {
    Mode                       string        // "active", "shadow" or "disabled"
    LockTTL                    time.Duration // distributed lock TTL per booking
    MaxRetries                 int           // attempts before manual review
    MaxConcurrentPerRestaurant int           // rate-limiter permits per restaurant
    MaxPlansToTry              int           // ranked plans attempted per run
    HoldTTL                    time.Duration // TTL of table holds placed by the engine
    IncludePendingHolds        bool          // count unexpired holds as occupied
    BreakerFailureThreshold    int           // consecutive failures before the breaker opens
    BreakerCooldown            time.Duration // open duration before a half-open trial
    BreakerHalfOpenSuccesses   int           // successes required to fully reclose
}

// LoadPipelineConfig reads the pipeline tunables from the environment.
// Every knob is optional; defaults match production behaviour.
func LoadPipelineConfig() PipelineConfig {
    cfg := PipelineConfig{
        Mode:                       envStr("ASSIGN_PIPELINE_MODE", "active"),
        LockTTL:                    envDur("ASSIGN_LOCK_TTL", 30*time.Second),
        MaxRetries:                 envInt("ASSIGN_MAX_RETRIES", 5),
        MaxConcurrentPerRestaurant: envInt("ASSIGN_MAX_CONCURRENT_PER_RESTAURANT", 3),
        MaxPlansToTry:              envInt("ASSIGN_MAX_PLANS_TO_TRY", 5),
        HoldTTL:                    envDur("ASSIGN_HOLD_TTL", 3*time.Minute),
        IncludePendingHolds:        envBool("ASSIGN_INCLUDE_PENDING_HOLDS", true),
        BreakerFailureThreshold:    envInt("BREAKER_FAILURE_THRESHOLD", 5),
        BreakerCooldown:            envDur("BREAKER_COOLDOWN", 30*time.Second),
        BreakerHalfOpenSuccesses:   envInt("BREAKER_HALF_OPEN_SUCCESSES", 2),
    }
    if cfg.LockTTL <= 0 {
        cfg.LockTTL = 30 * time.Second
    }
    if cfg.MaxRetries < 1 {
        cfg.MaxRetries = 1
    }
    if cfg.MaxConcurrentPerRestaurant < 1 {
        cfg.MaxConcurrentPerRestaurant = 1
    }
    if cfg.MaxPlansToTry < 1 {
        cfg.MaxPlansToTry = 1
    }
    return cfg
}
