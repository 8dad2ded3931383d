package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

var sixtyChars = strings.Repeat("x", 60)

func TestStartBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "blocks")

	b, err := e.StartBlock(ctx, a.ID, model.DiffParagraph, "a")
	if err != nil {
		t.Fatalf("StartBlock: %v", err)
	}
	if b.Status != model.BlockRunning || !b.StartTime.Equal(t0) || b.ContentBefore != "a" {
		t.Errorf("block = %+v", b)
	}

	if _, err := e.StartBlock(ctx, a.ID, model.DiffSection, "a"); !errors.Is(err, model.ErrBlockAlreadyRunning) {
		t.Fatalf("second start err = %v, want ErrBlockAlreadyRunning", err)
	}

	running, err := e.RunningBlock(ctx)
	if err != nil {
		t.Fatalf("RunningBlock: %v", err)
	}
	if running == nil || running.ID != b.ID {
		t.Errorf("running = %+v, want %s", running, b.ID)
	}
}

func TestStartBlock_Rejects(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "blocks")

	if _, err := e.StartBlock(ctx, a.ID, model.DiffType("essay"), ""); !errors.Is(err, model.ErrInvalidDiffType) {
		t.Errorf("bad diff type err = %v, want ErrInvalidDiffType", err)
	}
	if _, err := e.StartBlock(ctx, "missing", model.DiffCommit, ""); !errors.Is(err, model.ErrArtifactNotFound) {
		t.Errorf("unknown artifact err = %v, want ErrArtifactNotFound", err)
	}
	if running, _ := e.RunningBlock(ctx); running != nil {
		t.Errorf("rejected starts should not create blocks, got %s", running.ID)
	}
}

func TestEndBlock(t *testing.T) {
	tests := []struct {
		name       string
		before     string
		after      string
		wantStatus model.BlockStatus
		wantDiff   bool
	}{
		{"identical", "hello world", "hello world", model.BlockFailed, false},
		{"60 chars added", "a", "a" + sixtyChars, model.BlockCompleted, true},
		{"whitespace only", "a    b", "a b", model.BlockFailed, false},
		{"pure deletion", strings.Repeat("a", 200), strings.Repeat("a", 150), model.BlockFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock := newTestEngine(t)
			ctx := context.Background()
			a := mustCreate(t, e, "blocks")

			b, err := e.StartBlock(ctx, a.ID, model.DiffParagraph, tt.before)
			if err != nil {
				t.Fatalf("StartBlock: %v", err)
			}
			clock.Advance(20 * time.Minute)
			ended, err := e.EndBlock(ctx, b.ID, tt.after)
			if err != nil {
				t.Fatalf("EndBlock: %v", err)
			}
			if ended.Status != tt.wantStatus || ended.HasDiff != tt.wantDiff {
				t.Errorf("status/diff = %s/%v, want %s/%v", ended.Status, ended.HasDiff, tt.wantStatus, tt.wantDiff)
			}
			if ended.EndTime == nil || !ended.EndTime.Equal(t0.Add(20*time.Minute)) {
				t.Errorf("EndTime = %v", ended.EndTime)
			}
			if ended.ContentAfter == nil || *ended.ContentAfter != tt.after {
				t.Errorf("ContentAfter = %v", ended.ContentAfter)
			}
		})
	}
}

func TestEndBlock_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "blocks")

	if _, err := e.EndBlock(ctx, "missing", ""); !errors.Is(err, model.ErrBlockNotFound) {
		t.Errorf("unknown block err = %v, want ErrBlockNotFound", err)
	}

	b, err := e.StartBlock(ctx, a.ID, model.DiffFigure, "")
	if err != nil {
		t.Fatalf("StartBlock: %v", err)
	}
	if _, err := e.EndBlock(ctx, b.ID, sixtyChars); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if _, err := e.EndBlock(ctx, b.ID, sixtyChars); !errors.Is(err, model.ErrBlockNotRunning) {
		t.Errorf("second end err = %v, want ErrBlockNotRunning", err)
	}
}

func TestEndBlock_ConcurrentEndsOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "blocks")
	b, err := e.StartBlock(ctx, a.ID, model.DiffParagraph, "")
	if err != nil {
		t.Fatalf("StartBlock: %v", err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.EndBlock(ctx, b.ID, sixtyChars)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, model.ErrBlockNotRunning) {
				t.Errorf("EndBlock: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("successful ends = %d, want 1", ok)
	}
	w, _ := e.CurrentWeek(ctx)
	if w.BlocksCompleted != 1 {
		t.Errorf("BlocksCompleted = %d, want 1", w.BlocksCompleted)
	}
}

func TestSweepExpired_EndsOnce(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "sweep")
	if err := e.UpdateContent(ctx, a.ID, "first draft "+sixtyChars); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	b, err := e.StartBlock(ctx, a.ID, model.DiffParagraph, "")
	if err != nil {
		t.Fatalf("StartBlock: %v", err)
	}

	clock.Advance(30 * time.Minute)
	ended, err := e.SweepExpired(ctx, nil)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(ended) != 0 {
		t.Fatalf("block at exactly the duration should still run, swept %d", len(ended))
	}

	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		ended, err = e.SweepExpired(ctx, nil)
		if err != nil {
			t.Fatalf("SweepExpired #%d: %v", i, err)
		}
		want := 0
		if i == 0 {
			want = 1
		}
		if len(ended) != want {
			t.Fatalf("sweep #%d ended %d blocks, want %d", i, len(ended), want)
		}
	}

	got, err := e.BlockHistory(ctx, a.ID)
	if err != nil {
		t.Fatalf("BlockHistory: %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID || got[0].Status != model.BlockCompleted {
		t.Errorf("history = %+v", got)
	}
	if *got[0].ContentAfter != "first draft "+sixtyChars {
		t.Errorf("sweep should use stored artifact content, got %q", *got[0].ContentAfter)
	}

	w, _ := e.CurrentWeek(ctx)
	if w.BlocksScheduled != 1 || w.BlocksCompleted != 1 {
		t.Errorf("week = %+v", w)
	}
}

func TestSweepExpired_CallerContent(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "sweep")
	if _, err := e.StartBlock(ctx, a.ID, model.DiffCommit, "base"); err != nil {
		t.Fatalf("StartBlock: %v", err)
	}

	clock.Advance(45 * time.Minute)
	content := "base"
	ended, err := e.SweepExpired(ctx, &content)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(ended) != 1 || ended[0].Status != model.BlockFailed {
		t.Fatalf("ended = %+v", ended)
	}
}

func TestBlockStats(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "stats")

	for _, after := range []string{sixtyChars, "", sixtyChars + sixtyChars} {
		b, err := e.StartBlock(ctx, a.ID, model.DiffSlide, "")
		if err != nil {
			t.Fatalf("StartBlock: %v", err)
		}
		if _, err := e.EndBlock(ctx, b.ID, after); err != nil {
			t.Fatalf("EndBlock: %v", err)
		}
	}
	if _, err := e.StartBlock(ctx, a.ID, model.DiffSlide, ""); err != nil {
		t.Fatalf("StartBlock: %v", err)
	}

	stats, err := e.BlockStats(ctx, a.ID)
	if err != nil {
		t.Fatalf("BlockStats: %v", err)
	}
	want := model.BlockStats{Total: 4, Completed: 2, WithDiff: 2, Failed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}
