package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultResyncInterval is how often Start re-measures the venue clock offset.
const DefaultResyncInterval = 30 * time.Minute

// ServerClock returns the venue time in unix millis.
type ServerClock func(ctx context.Context) (int64, error)

// TimeSync keeps signed-request timestamps aligned with the venue clock.
// The offset is venue minus local, in milliseconds.
type TimeSync struct {
	clock    ServerClock
	resync   time.Duration
	offsetMs atomic.Int64
	synced   atomic.Bool
	log      *logrus.Entry
}

func NewTimeSync(clock ServerClock, log *logrus.Entry) *TimeSync {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TimeSync{
		clock:  clock,
		resync: DefaultResyncInterval,
		log:    log.WithField("component", "timesync"),
	}
}

// Start measures the offset now and again every resync interval until ctx is done.
// A failed measurement keeps the previous offset.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		ts.log.WithError(err).Warn("initial venue clock sync failed; using local time")
	}
	go func() {
		t := time.NewTicker(ts.resync)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := ts.Sync(ctx); err != nil {
					ts.log.WithError(err).Warn("venue clock sync failed")
				}
			}
		}
	}()
}

// Sync measures the offset once against the midpoint of the round trip.
func (ts *TimeSync) Sync(ctx context.Context) error {
	sent := time.Now()
	venue, err := ts.clock(ctx)
	if err != nil {
		return err
	}
	rtt := time.Since(sent)
	mid := sent.Add(rtt / 2).UnixMilli()

	offset := venue - mid
	ts.offsetMs.Store(offset)
	ts.synced.Store(true)
	ts.log.WithFields(logrus.Fields{"offset_ms": offset, "rtt": rtt}).Debug("venue clock synced")
	return nil
}

// Now returns the estimated venue time in unix millis.
func (ts *TimeSync) Now() int64 {
	return time.Now().UnixMilli() + ts.offsetMs.Load()
}

func (ts *TimeSync) Offset() int64 { return ts.offsetMs.Load() }

// Synced reports whether at least one measurement succeeded.
func (ts *TimeSync) Synced() bool { return ts.synced.Load() }
