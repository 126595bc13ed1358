package app

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/logging"
	"github.com/five82/lookout/internal/sportarr"
)

const (
	defaultPollInterval  = 5 * time.Second
	defaultPruneInterval = time.Second
	maxBackoff           = 30 * time.Second
)

// PollIntervals sets the cadence of each periodic task. Zero values use defaults.
type PollIntervals struct {
	SearchQueue time.Duration
	Downloads   time.Duration
	Prune       time.Duration
}

func (p PollIntervals) withDefaults() PollIntervals {
	if p.SearchQueue <= 0 {
		p.SearchQueue = defaultPollInterval
	}
	if p.Downloads <= 0 {
		p.Downloads = defaultPollInterval
	}
	if p.Prune <= 0 {
		p.Prune = defaultPruneInterval
	}
	return p
}

// RunPollers drives the search queue poll, the download poll and the prune
// tick as independent loops until ctx is cancelled.
func RunPollers(ctx context.Context, eng *engine.Engine, fetcher sportarr.Fetcher, intervals PollIntervals, logger *log.Logger) error {
	intervals = intervals.withDefaults()
	if logger == nil {
		logger = logging.Discard()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pollLoop(ctx, intervals.SearchQueue, logger.With("feed", "search_queue"), func(ctx context.Context) error {
			return refreshSearchQueue(ctx, eng, fetcher)
		})
		return nil
	})
	g.Go(func() error {
		pollLoop(ctx, intervals.Downloads, logger.With("feed", "downloads"), func(ctx context.Context) error {
			return refreshDownloads(ctx, eng, fetcher)
		})
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(intervals.Prune)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				eng.Prune()
			}
		}
	})
	return g.Wait()
}

// pollLoop runs fn immediately and then after each interval. A run never
// overlaps the previous one; consecutive failures stretch the wait.
func pollLoop(ctx context.Context, interval time.Duration, logger *log.Logger, fn func(context.Context) error) {
	failures := 0
	for {
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			logger.Warn("poll failed", "err", err, "failures", failures)
		} else {
			if failures > 0 {
				logger.Info("poll recovered", "after_failures", failures)
			}
			failures = 0
		}

		timer := time.NewTimer(calculateBackoff(failures, interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// calculateBackoff doubles the base interval per consecutive failure, capped
// at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

func refreshSearchQueue(ctx context.Context, eng *engine.Engine, fetcher sportarr.Fetcher) error {
	snap, err := fetcher.FetchSearchQueue(ctx)
	eng.ApplySearchQueue(snap, err)
	return err
}

func refreshDownloads(ctx context.Context, eng *engine.Engine, fetcher sportarr.Fetcher) error {
	items, err := fetcher.FetchDownloadQueue(ctx)
	eng.ApplyDownloads(items, err)
	return err
}
