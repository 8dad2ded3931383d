package model

import (
	"sort"
	"time"
)

// EventKind names an entry in the reliability event log.
type EventKind string

// Event kind constants
const (
	EventBlockStarted      EventKind = "block_started"
	EventBlockEnded        EventKind = "block_ended"
	EventArtifactShipped   EventKind = "artifact_shipped"
	EventArtifactAbandoned EventKind = "artifact_abandoned"
)

// Event is an append-only record of a block or artifact outcome.
// Positive carries has_diff for block_ended and on_time for artifact_shipped.
type Event struct {
	ID         int64     `json:"id"`
	Kind       EventKind `json:"kind"`
	ArtifactID string    `json:"artifact_id"`
	BlockID    string    `json:"block_id,omitempty"`
	Positive   bool      `json:"positive"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WeekMetrics is the reliability aggregate for one calendar week.
type WeekMetrics struct {
	WeekStart              time.Time `json:"week_start"`
	BlocksScheduled        int       `json:"blocks_scheduled"`
	BlocksCompleted        int       `json:"blocks_completed"`
	BlocksWithDiff         int       `json:"blocks_with_diff"`
	ArtifactsShippedOnTime int       `json:"artifacts_shipped_on_time"`
	ArtifactsFailed        int       `json:"artifacts_failed"`
	ReliabilityScore       float64   `json:"reliability_score"`
}

// WeekStart returns Sunday 00:00 in loc of the week containing t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
}

// Apply adds the effect of e to the counters. Counters only ever grow.
func (w *WeekMetrics) Apply(e Event) {
	switch e.Kind {
	case EventBlockStarted:
		w.BlocksScheduled++
	case EventBlockEnded:
		if e.Positive {
			w.BlocksCompleted++
			w.BlocksWithDiff++
		}
	case EventArtifactShipped:
		if e.Positive {
			w.ArtifactsShippedOnTime++
		} else {
			w.ArtifactsFailed++
		}
	case EventArtifactAbandoned:
		w.ArtifactsFailed++
	}
	w.ReliabilityScore = w.Score()
}

// Score derives a 0-100 reliability score from the counters: a weighted mean
// of completion rate (0.4), diff rate (0.3) and on-time ship rate (0.3).
// Terms with nothing to measure are left out and the weights renormalised.
func (w WeekMetrics) Score() float64 {
	var sum, weight float64
	if w.BlocksScheduled > 0 {
		n := float64(w.BlocksScheduled)
		sum += 0.4*float64(w.BlocksCompleted)/n + 0.3*float64(w.BlocksWithDiff)/n
		weight += 0.7
	}
	if shipped := w.ArtifactsShippedOnTime + w.ArtifactsFailed; shipped > 0 {
		sum += 0.3 * float64(w.ArtifactsShippedOnTime) / float64(shipped)
		weight += 0.3
	}
	if weight == 0 {
		return 0
	}
	return 100 * sum / weight
}

// FoldWeeks buckets events by week and returns the aggregates newest first.
func FoldWeeks(events []Event, loc *time.Location) []WeekMetrics {
	byWeek := make(map[int64]*WeekMetrics)
	for _, e := range events {
		start := WeekStart(e.OccurredAt, loc)
		w, ok := byWeek[start.Unix()]
		if !ok {
			w = &WeekMetrics{WeekStart: start}
			byWeek[start.Unix()] = w
		}
		w.Apply(e)
	}
	out := make([]WeekMetrics, 0, len(byWeek))
	for _, w := range byWeek {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	return out
}
