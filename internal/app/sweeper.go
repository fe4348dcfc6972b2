package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Expirer expires unpaid orders past their payment deadline.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper periodically expires stale orders. Several processes may sweep at
// once; the store skips rows another sweeper holds.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	lastRun  atomic.Int64
}

// NewSweeper creates a Sweeper running every interval.
func NewSweeper(expirer Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{expirer: expirer, interval: interval}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	lg := zctx.From(ctx)
	for {
		n, err := s.expirer.ExpireStale(ctx)
		if err != nil {
			if ctx.Err() == nil {
				lg.Error("Expiry sweep failed", zap.Error(err))
			}
			return
		}
		s.lastRun.Store(time.Now().UnixNano())
		if n == 0 {
			return
		}
		lg.Info("Expired unpaid orders", zap.Int("count", n))
	}
}

// LastRun is when a sweep last completed, zero before the first one.
func (s *Sweeper) LastRun() time.Time {
	ns := s.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Interval is the sweep period.
func (s *Sweeper) Interval() time.Duration { return s.interval }
