package engine

import (
	"context"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

// WeeklyMetrics folds the event log into per-week aggregates, newest first.
// weeks limits the result to the last n calendar weeks; n <= 0 returns all.
func (e *Engine) WeeklyMetrics(ctx context.Context, weeks int) ([]model.WeekMetrics, error) {
	var since time.Time
	if weeks > 0 {
		since = model.WeekStart(e.now(), e.loc).AddDate(0, 0, -7*(weeks-1))
	}
	events, err := e.store.ListEvents(ctx, since)
	if err != nil {
		return nil, err
	}
	return model.FoldWeeks(events, e.loc), nil
}

// WeekMetrics returns the aggregate for the week containing t. A week with no
// events yields a zero row.
func (e *Engine) WeekMetrics(ctx context.Context, t time.Time) (model.WeekMetrics, error) {
	start := model.WeekStart(t, e.loc)
	events, err := e.store.ListEvents(ctx, start)
	if err != nil {
		return model.WeekMetrics{}, err
	}
	for _, w := range model.FoldWeeks(events, e.loc) {
		if w.WeekStart.Equal(start) {
			return w, nil
		}
	}
	return model.WeekMetrics{WeekStart: start}, nil
}

// CurrentWeek returns the aggregate for the current week.
func (e *Engine) CurrentWeek(ctx context.Context) (model.WeekMetrics, error) {
	return e.WeekMetrics(ctx, e.now())
}
