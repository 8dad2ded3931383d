package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yangwenmai/force/internal/engine"
	"github.com/yangwenmai/force/internal/instance"
	"github.com/yangwenmai/force/internal/model"
	"github.com/yangwenmai/force/internal/store"
)

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type cliTestEnv struct {
	dbPath string
	eng    *engine.Engine
	now    time.Time
}

// setupCLITestEnv seeds a database through the engine, then closes it so
// commands open it fresh.
func setupCLITestEnv(t *testing.T, seed func(ctx context.Context, eng *engine.Engine)) *cliTestEnv {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"FORCE_CONFIG", "DB_PATH", "LOG_FORMAT", "LOG_LEVEL", "BLOCK_DURATION"} {
		t.Setenv(k, "")
	}
	t.Setenv("TIMEZONE", "UTC")

	env := &cliTestEnv{dbPath: filepath.Join(t.TempDir(), "force.db"), now: t0}
	db, err := store.OpenSQLite(env.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	eng := engine.New(s, engine.Options{
		Now:      func() time.Time { return env.now },
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if seed != nil {
		seed(context.Background(), eng)
	}
	return env
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, ctx := newRootCommandWithContext()
	ctx.now = func() time.Time { return env.now }
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", env.dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func seedArtifact(t *testing.T) func(context.Context, *engine.Engine) {
	return func(ctx context.Context, eng *engine.Engine) {
		a, err := eng.CreateArtifact(ctx, model.NewArtifactInput{
			Name:              "Grant proposal",
			Type:              "proposal",
			ShipDays:          3,
			DoneCriteria:      []string{"budget", "narrative"},
			ExternalRecipient: "funder@example.com",
			MaxWordCount:      2000,
		})
		if err != nil {
			t.Fatalf("CreateArtifact: %v", err)
		}
		if err := eng.UpdateContent(ctx, a.ID, strings.Repeat("word ", 1200)); err != nil {
			t.Fatalf("UpdateContent: %v", err)
		}
		if _, err := eng.StartBlock(ctx, a.ID, model.DiffSection, ""); err != nil {
			t.Fatalf("StartBlock: %v", err)
		}
		if _, err := eng.LogSkippedBlock(ctx, a.ID, t0.Add(-time.Hour), "dentist"); err != nil {
			t.Fatalf("LogSkippedBlock: %v", err)
		}
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, seedArtifact(t))
	env.now = t0.Add(10 * time.Minute)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Grant proposal", "1,200 / 2,000", "2 days left", "section", "10 minutes ago", "Week of 2026-03-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommand_Empty(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No active artifact") || !strings.Contains(out, "No block running") {
		t.Errorf("output:\n%s", out)
	}
}

func TestArtifactsAndBlocksCommands(t *testing.T) {
	var artifactID string
	env := setupCLITestEnv(t, func(ctx context.Context, eng *engine.Engine) {
		seedArtifact(t)(ctx, eng)
		a, _ := eng.ActiveArtifact(ctx)
		artifactID = a.ID
	})

	out, err := env.run(t, "artifacts")
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if !strings.Contains(out, artifactID) || !strings.Contains(out, "active") {
		t.Errorf("artifacts output:\n%s", out)
	}

	out, err = env.run(t, "blocks", artifactID)
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	if !strings.Contains(out, "running") || !strings.Contains(out, "1 blocks: 0 completed") {
		t.Errorf("blocks output:\n%s", out)
	}

	if _, err := env.run(t, "blocks", "missing"); !errors.Is(err, model.ErrArtifactNotFound) {
		t.Errorf("unknown artifact err = %v", err)
	}
}

func TestMetricsAndFailuresCommands(t *testing.T) {
	env := setupCLITestEnv(t, seedArtifact(t))

	out, err := env.run(t, "metrics", "--weeks", "2")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if !strings.Contains(out, "2026-03-01") {
		t.Errorf("metrics output:\n%s", out)
	}

	out, err = env.run(t, "failures")
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	if !strings.Contains(out, "dentist") || !strings.Contains(out, "No autopsies") {
		t.Errorf("failures output:\n%s", out)
	}
}

func TestSweepCommand(t *testing.T) {
	env := setupCLITestEnv(t, seedArtifact(t))
	env.now = t0.Add(31 * time.Minute)

	out, err := env.run(t, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "Ended 1 expired blocks") {
		t.Errorf("sweep output:\n%s", out)
	}

	out, err = env.run(t, "sweep")
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if !strings.Contains(out, "Ended 0 expired blocks") {
		t.Errorf("second sweep output:\n%s", out)
	}
}

func TestSweepCommand_RefusesWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	lock, err := instance.Acquire(env.dbPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, err := env.run(t, "sweep"); !errors.Is(err, instance.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestDeadline(t *testing.T) {
	if got := deadline(t0, t0.Add(72*time.Hour)); got != "3 days left" {
		t.Errorf("deadline = %q", got)
	}
	if got := deadline(t0.Add(2*time.Hour), t0); got != "2 hours overdue" {
		t.Errorf("overdue = %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"Name", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "| b ") {
		t.Errorf("table:\n%s", out)
	}
	if renderTable(&buf, nil, nil, nil) != "" {
		t.Error("no headers should render nothing")
	}
}
