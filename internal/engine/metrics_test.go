package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

func TestCurrentWeek_Empty(t *testing.T) {
	e, _ := newTestEngine(t)
	w, err := e.CurrentWeek(context.Background())
	if err != nil {
		t.Fatalf("CurrentWeek: %v", err)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !w.WeekStart.Equal(want) || w.BlocksScheduled != 0 || w.ReliabilityScore != 0 {
		t.Errorf("week = %+v", w)
	}
}

func TestMetrics_MonotonicWithinWeek(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "metrics")

	var prev model.WeekMetrics
	check := func(step string) {
		t.Helper()
		w, err := e.CurrentWeek(ctx)
		if err != nil {
			t.Fatalf("CurrentWeek: %v", err)
		}
		if w.BlocksScheduled < prev.BlocksScheduled || w.BlocksCompleted < prev.BlocksCompleted ||
			w.BlocksWithDiff < prev.BlocksWithDiff || w.ArtifactsShippedOnTime < prev.ArtifactsShippedOnTime ||
			w.ArtifactsFailed < prev.ArtifactsFailed {
			t.Errorf("%s: counters decreased from %+v to %+v", step, prev, w)
		}
		prev = w
	}

	b1, _ := e.StartBlock(ctx, a.ID, model.DiffParagraph, "")
	check("start 1")
	clock.Advance(10 * time.Minute)
	e.EndBlock(ctx, b1.ID, sixtyChars)
	check("end 1")
	b2, _ := e.StartBlock(ctx, a.ID, model.DiffParagraph, sixtyChars)
	check("start 2")
	e.EndBlock(ctx, b2.ID, sixtyChars)
	check("end 2")
	e.SubmitShippingProof(ctx, a.ID, "https://example.com")
	e.Ship(ctx, a.ID)
	check("ship")

	w := prev
	if w.BlocksScheduled != 2 || w.BlocksCompleted != 1 || w.BlocksWithDiff != 1 || w.ArtifactsShippedOnTime != 1 {
		t.Fatalf("week = %+v", w)
	}
	// 0.4*0.5 + 0.3*0.5 + 0.3*1
	if math.Abs(w.ReliabilityScore-65) > 1e-9 {
		t.Errorf("score = %v, want 65", w.ReliabilityScore)
	}
}

func TestMetrics_WeeksAreIndependent(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "weeks")

	b, _ := e.StartBlock(ctx, a.ID, model.DiffSection, "")
	e.EndBlock(ctx, b.ID, sixtyChars)
	before, _ := e.CurrentWeek(ctx)

	// Saturday 2026-03-07 23:00 is still the first week; Sunday is the next.
	clock.Advance(3*24*time.Hour + 13*time.Hour)
	b, _ = e.StartBlock(ctx, a.ID, model.DiffSection, "")
	clock.Advance(2 * time.Hour)
	e.EndBlock(ctx, b.ID, "")

	first, err := e.WeekMetrics(ctx, t0)
	if err != nil {
		t.Fatalf("WeekMetrics: %v", err)
	}
	if first.BlocksScheduled != 2 || first.BlocksCompleted != before.BlocksCompleted {
		t.Errorf("first week = %+v", first)
	}
	second, _ := e.CurrentWeek(ctx)
	if second.BlocksScheduled != 0 || second.BlocksCompleted != 0 {
		t.Errorf("second week = %+v", second)
	}

	weeks, err := e.WeeklyMetrics(ctx, 0)
	if err != nil {
		t.Fatalf("WeeklyMetrics: %v", err)
	}
	if len(weeks) != 2 || !weeks[0].WeekStart.Equal(second.WeekStart) || weeks[0].BlocksScheduled != 0 {
		t.Fatalf("weeks = %+v, want the empty second week first", weeks)
	}
}

func TestWeeklyMetrics_Window(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "window")

	for i := 0; i < 3; i++ {
		b, err := e.StartBlock(ctx, a.ID, model.DiffCommit, "")
		if err != nil {
			t.Fatalf("StartBlock: %v", err)
		}
		e.EndBlock(ctx, b.ID, sixtyChars)
		clock.Advance(7 * 24 * time.Hour)
	}
	clock.Advance(-7 * 24 * time.Hour)

	all, err := e.WeeklyMetrics(ctx, 0)
	if err != nil {
		t.Fatalf("WeeklyMetrics: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all weeks = %d, want 3", len(all))
	}
	if !all[0].WeekStart.After(all[1].WeekStart) {
		t.Error("weeks should be newest first")
	}

	last2, err := e.WeeklyMetrics(ctx, 2)
	if err != nil {
		t.Fatalf("WeeklyMetrics(2): %v", err)
	}
	if len(last2) != 2 {
		t.Errorf("last two weeks = %d, want 2", len(last2))
	}
}
