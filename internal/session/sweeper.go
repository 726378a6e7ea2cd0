// AngelaMos | 2026
// sweeper.go

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BfdCampos/workplay/internal/identity"
)

const defaultSweepInterval = time.Hour

type Sweeper struct {
	store    identity.Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(store identity.Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	sessions, tokens, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if sessions > 0 || tokens > 0 {
		s.logger.Info("expired credentials removed",
			"sessions", sessions,
			"verification_tokens", tokens,
		)
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (sessions, tokens int64, err error) {
	now := s.now()

	sessions, err = s.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep sessions: %w", err)
	}

	tokens, err = s.store.DeleteExpiredVerificationTokens(ctx, now)
	if err != nil {
		return sessions, 0, fmt.Errorf("sweep verification tokens: %w", err)
	}

	return sessions, tokens, nil
}
