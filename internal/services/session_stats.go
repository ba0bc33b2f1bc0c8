package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionStatsLockKey  = "assistant_sessions_stats_lock"
	sessionStatsInterval = 24 * time.Hour
	statsPollInterval    = 1 * time.Hour
)

type IdleSessionCounter interface {
	CountIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error)
}

// runLock is the slice of the Redis client the reporter needs.
type runLock interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// SessionStatsReporter periodically logs how many assistant sessions have
// been idle longer than idleAfter. It only reads; sessions are kept forever.
// A SETNX key that expires after one interval lets a single server instance
// report per interval.
type SessionStatsReporter struct {
	sessions  IdleSessionCounter
	lock      runLock
	idleAfter time.Duration
	logger    *slog.Logger
	stopChan  chan struct{}
}

func NewSessionStatsReporter(sessions IdleSessionCounter, redisClient *redis.Client, idleAfter time.Duration, logger *slog.Logger) *SessionStatsReporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &SessionStatsReporter{
		sessions:  sessions,
		idleAfter: idleAfter,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
	if redisClient != nil {
		r.lock = redisClient
	}
	return r
}

func (r *SessionStatsReporter) Start() {
	if r.sessions == nil || r.idleAfter <= 0 {
		return
	}

	go r.loop()
	r.logger.Info("session stats reporter started", "idle_after", r.idleAfter)
}

func (r *SessionStatsReporter) Stop() {
	select {
	case <-r.stopChan:
		return
	default:
		close(r.stopChan)
	}
}

func (r *SessionStatsReporter) loop() {
	r.runOnce(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(statsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.runOnce(context.Background(), time.Now().UTC())
		}
	}
}

func (r *SessionStatsReporter) runOnce(ctx context.Context, now time.Time) {
	if r.lock != nil {
		claimed, err := r.lock.SetNX(ctx, sessionStatsLockKey, now.Format(time.RFC3339), sessionStatsInterval).Result()
		if err != nil {
			r.logger.Warn("session stats: failed to claim run", "error", err)
			return
		}
		if !claimed {
			return
		}
	}

	idle, err := r.sessions.CountIdleSessions(ctx, now.Add(-r.idleAfter))
	if err != nil {
		r.logger.Error("session stats: count failed", "error", err)
		return
	}
	r.logger.Info("session stats: idle sessions", "idle", idle, "idle_after", r.idleAfter)
}
