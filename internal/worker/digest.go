package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yangwenmai/force/internal/model"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return sched, nil
}

// MetricsSource reports the reliability aggregate of a week.
type MetricsSource interface {
	WeekMetrics(ctx context.Context, t time.Time) (model.WeekMetrics, error)
}

// Digest logs the reliability metrics of the week that just ended on a cron schedule.
type Digest struct {
	source   MetricsSource
	schedule cron.Schedule
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

// NewDigest creates a digest firing on expr, evaluated in loc.
func NewDigest(source MetricsSource, expr string, loc *time.Location, logger *slog.Logger) (*Digest, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{source: source, schedule: sched, loc: loc, now: time.Now, log: logger}, nil
}

// Next returns the first fire time after t.
func (d *Digest) Next(t time.Time) time.Time {
	return d.schedule.Next(t.In(d.loc))
}

// Start waits for each fire time and reports. It blocks until ctx is cancelled.
func (d *Digest) Start(ctx context.Context) {
	for {
		next := d.Next(d.now())
		d.log.Info("digest scheduled", "next", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, err := d.Report(ctx, next); err != nil {
			d.log.Error("digest failed", "error", err)
		}
	}
}

// Report logs the week containing the instant just before firedAt.
func (d *Digest) Report(ctx context.Context, firedAt time.Time) (model.WeekMetrics, error) {
	w, err := d.source.WeekMetrics(ctx, firedAt.Add(-time.Second))
	if err != nil {
		return w, err
	}
	d.log.Info("weekly digest",
		"week_start", w.WeekStart.Format("2006-01-02"),
		"blocks_scheduled", w.BlocksScheduled,
		"blocks_completed", w.BlocksCompleted,
		"blocks_with_diff", w.BlocksWithDiff,
		"shipped_on_time", w.ArtifactsShippedOnTime,
		"artifacts_failed", w.ArtifactsFailed,
		"reliability_score", fmt.Sprintf("%.1f", w.ReliabilityScore),
	)
	return w, nil
}
