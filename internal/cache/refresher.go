package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/qms/internal/model"
)

// rolloverCheck is how often the refresher looks for a calendar-day change
// when the reload interval is longer.
const rolloverCheck = time.Minute

// StartRefresh reloads the cache in the background every interval and
// whenever the calendar day changes. A non-positive interval only reloads on
// day rollover. Calling StartRefresh again replaces the running refresher.
func (c *Cache) StartRefresh(ctx context.Context, interval time.Duration) {
	c.stopRefresh()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.refreshMu.Lock()
	c.refreshCancel = cancel
	c.refreshDone = done
	c.refreshMu.Unlock()

	tick := rolloverCheck
	if interval > 0 && interval < tick {
		tick = interval
	}
	go func() {
		defer close(done)
		c.refreshLoop(ctx, interval, tick)
	}()
	slog.Debug("cache refresher started", "interval", interval, "tick", tick)
}

func (c *Cache) refreshLoop(ctx context.Context, interval, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !c.refreshDue(interval) {
			continue
		}
		if _, err := c.Reload(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("background cache reload failed", "error", err)
		}
	}
}

func (c *Cache) refreshDue(interval time.Duration) bool {
	now := c.clock.Now()
	if model.DayOf(now) != c.Day() {
		slog.Info("calendar day changed, reloading cache", "from", c.Day(), "to", model.DayOf(now))
		return true
	}
	last := c.LastReload()
	return interval > 0 && (last.IsZero() || now.Sub(last) >= interval)
}

func (c *Cache) stopRefresh() {
	c.refreshMu.Lock()
	cancel, done := c.refreshCancel, c.refreshDone
	c.refreshCancel, c.refreshDone = nil, nil
	c.refreshMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Shutdown stops the background refresher and drops the cached data.
func (c *Cache) Shutdown() {
	c.stopRefresh()
	c.jmu.Lock()
	c.snap.Store(emptySnapshot(c.snap.Load().day))
	c.jmu.Unlock()
	c.reloaded.Store(false)
	slog.Info("cache shut down")
}
