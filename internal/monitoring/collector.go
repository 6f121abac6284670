// Package monitoring snapshots session activity and store statistics and
// raises alerts when failure rates climb.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trustfeed/internal/pipeline"
	"github.com/sells-group/trustfeed/internal/store"
)

// Snapshot holds a point-in-time view of the service.
type Snapshot struct {
	Store   *store.Stats      `json:"store"`
	Session pipeline.Counters `json:"session"`

	// Rates are 0 until enough attempts have been made to be meaningful.
	VerifyFailRate  float64 `json:"verify_fail_rate"`
	PersistFailRate float64 `json:"persist_fail_rate"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsReader is the slice of store.Store the collector needs.
type StatsReader interface {
	Stats(ctx context.Context, since time.Time) (*store.Stats, error)
}

// CountersSource reports session counters.
type CountersSource interface {
	Counters() pipeline.Counters
}

// Collector gathers snapshots from the store and the session.
type Collector struct {
	stats    StatsReader
	counters CountersSource
	nowFunc  func() time.Time
}

// NewCollector creates a collector. counters may be nil.
func NewCollector(stats StatsReader, counters CountersSource) *Collector {
	return &Collector{stats: stats, counters: counters, nowFunc: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.nowFunc().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	st, err := c.stats.Stats(ctx, now.Add(-time.Duration(lookbackHours)*time.Hour))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: store stats")
	}
	snap.Store = st

	if c.counters != nil {
		snap.Session = c.counters.Counters()
		snap.VerifyFailRate = rate(snap.Session.VerifyFailures, snap.Session.Verified+snap.Session.VerifyFailures)
		snap.PersistFailRate = rate(snap.Session.PersistFailures, snap.Session.Submitted+snap.Session.PersistFailures)
	}
	return snap, nil
}

func rate(failed, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(failed) / float64(attempts)
}
