package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// readingLimiter caps how many readings the feed accepts per interval.
// A healthy apiary publishes a handful of readings a minute, so a feed
// running hot means a stuck or flooding device; excess readings are
// dropped before they reach the store.
type readingLimiter struct {
	accepted atomic.Int64
	dropped  atomic.Int64
	limit    int64
	interval time.Duration
	logger   *slog.Logger
}

func newReadingLimiter(limit int64, interval time.Duration, logger *slog.Logger) *readingLimiter {
	return &readingLimiter{
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
}

// run resets the window counters every interval until ctx is
// cancelled, reporting how many readings the closing window dropped.
func (l *readingLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accepted := l.accepted.Swap(0)
			if dropped := l.dropped.Swap(0); dropped > 0 {
				l.logger.Warn("sensor readings dropped, feed over rate limit",
					"accepted", accepted,
					"dropped", dropped,
					"limit", l.limit,
					"window", l.interval.String(),
				)
			}
		}
	}
}

// allow records one reading against the current window and reports
// whether it fits under the cap. Counters are atomics; the broker's
// receive callback never takes a lock.
func (l *readingLimiter) allow() bool {
	if l.accepted.Add(1) > l.limit {
		l.accepted.Add(-1)
		l.dropped.Add(1)
		return false
	}
	return true
}
