// Package sweep pushes deadline-driven releases: a background loop finds
// OPEN commitments whose deadline has passed and releases them, and
// re-attempts refunds that failed during cancellation.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Mindburn-Labs/pact/pkg/commitment"
)

// DefaultInterval between sweep passes.
const DefaultInterval = time.Minute

// Engine is the subset of the commitment engine the sweeper drives.
type Engine interface {
	ReleaseCommitment(ctx context.Context, id int64) (*commitment.ReleaseResult, error)
	RetryRefunds(ctx context.Context, id int64) (*commitment.CancelResult, error)
}

// Lister finds the commitments a pass must visit.
type Lister interface {
	ListDueOpen(ctx context.Context, asOf time.Time) ([]int64, error)
	ListUnrefunded(ctx context.Context) ([]int64, error)
}

// Report summarizes one sweep pass.
type Report struct {
	Released int `json:"released"`
	Refunded int `json:"refunded"`
	Failed   int `json:"failed"`
}

// Sweeper runs the deadline sweep.
type Sweeper struct {
	engine   Engine
	lister   Lister
	interval time.Duration
	maxTries uint
	clock    func() time.Time
	logger   *slog.Logger
}

// New creates a sweeper. interval <= 0 uses DefaultInterval.
func New(engine Engine, lister Lister, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   engine,
		lister:   lister,
		interval: interval,
		maxTries: 4,
		clock:    time.Now,
		logger:   logger,
	}
}

// WithClock overrides clock for testing.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep pass. Individual commitment failures are
// counted, logged and skipped; the pass keeps going.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	due, err := s.lister.ListDueOpen(ctx, s.clock())
	if err != nil {
		return report, err
	}
	for _, id := range due {
		rr, err := s.release(ctx, id)
		if err != nil {
			report.Failed++
			s.logger.Error("release failed", "commitment_id", id, "error", err)
			continue
		}
		if !rr.AlreadyReleased {
			report.Released++
			s.logger.Info("released by sweep",
				"commitment_id", id, "amount", rr.ReleasedAmount.String(), "forfeited", len(rr.Forfeited))
		}
	}

	unrefunded, err := s.lister.ListUnrefunded(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range unrefunded {
		result, err := s.engine.RetryRefunds(ctx, id)
		if err != nil {
			report.Failed++
			s.logger.Error("refund retry failed", "commitment_id", id, "error", err)
			continue
		}
		for _, r := range result.Refunds {
			if r.Err == nil {
				report.Refunded++
			}
		}
	}

	return report, nil
}

// release retries transient ledger failures with exponential backoff.
// Anything other than a ledger error is permanent: the next pass will not
// fare better without intervention.
func (s *Sweeper) release(ctx context.Context, id int64) (*commitment.ReleaseResult, error) {
	op := func() (*commitment.ReleaseResult, error) {
		rr, err := s.engine.ReleaseCommitment(ctx, id)
		if err != nil {
			var lerr *commitment.LedgerError
			if errors.As(err, &lerr) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return rr, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries))
}
