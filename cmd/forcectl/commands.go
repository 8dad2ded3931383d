package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/force/internal/engine"
	"github.com/yangwenmai/force/internal/instance"
	"github.com/yangwenmai/force/internal/model"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active artifact, running block and this week's score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				now := ctx.now()
				active, err := eng.ActiveArtifact(c)
				if err != nil {
					return err
				}
				if active == nil {
					fmt.Fprintln(out, "No active artifact")
				} else {
					rows := [][]string{
						{"Artifact", active.Name},
						{"ID", active.ID},
						{"Type", active.Type},
						{"Status", string(active.Status)},
						{"Words", wordBudget(*active)},
						{"Ship date", active.ShipDate.In(eng.Location()).Format(dateLayout)},
						{"Deadline", deadline(now, active.ShipDate)},
						{"Recipient", active.ExternalRecipient},
						{"Edit locked", yesNo(active.EditLocked)},
						{"Proof", yesNo(active.ProofSubmitted)},
					}
					fmt.Fprint(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
				}

				running, err := eng.RunningBlock(c)
				if err != nil {
					return err
				}
				if running == nil {
					fmt.Fprintln(out, "No block running")
				} else {
					fmt.Fprintf(out, "Block %s running (%s), started %s\n",
						shortID(running.ID), running.ExpectedDiffType, since(now, running.StartTime))
				}

				week, err := eng.CurrentWeek(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Week of %s: reliability %s\n",
					week.WeekStart.Format(dateLayout), formatScore(week.ReliabilityScore))
				return nil
			})
		},
	}
}

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List every artifact, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				artifacts, err := eng.Artifacts(c)
				if err != nil {
					return err
				}
				if len(artifacts) == 0 {
					fmt.Fprintln(out, "No artifacts")
					return nil
				}
				loc := eng.Location()
				rows := make([][]string, 0, len(artifacts))
				for _, a := range artifacts {
					rows = append(rows, []string{
						a.ID, a.Name, a.Type, string(a.Status), wordBudget(a),
						a.ShipDate.In(loc).Format(dateLayout), formatOptionalTime(a.ShippedAt, loc),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Name", "Type", "Status", "Words", "Ship date", "Shipped"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newBlocksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <artifact-id>",
		Short: "Show the block history and stats of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				if _, err := eng.Artifact(c, args[0]); err != nil {
					return err
				}
				blocks, err := eng.BlockHistory(c, args[0])
				if err != nil {
					return err
				}
				stats, err := eng.BlockStats(c, args[0])
				if err != nil {
					return err
				}
				if len(blocks) > 0 {
					fmt.Fprint(out, renderBlocks(out, blocks, eng))
				}
				fmt.Fprintf(out, "%d blocks: %d completed, %d with diff, %d failed\n",
					stats.Total, stats.Completed, stats.WithDiff, stats.Failed)
				return nil
			})
		},
	}
}

func renderBlocks(out io.Writer, blocks []model.Block, eng *engine.Engine) string {
	loc := eng.Location()
	rows := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		start := b.StartTime
		rows = append(rows, []string{
			shortID(b.ID), string(b.ExpectedDiffType), formatOptionalTime(&start, loc),
			formatOptionalTime(b.EndTime, loc), string(b.Status), yesNo(b.HasDiff),
		})
	}
	return renderTable(out, []string{"Block", "Expected", "Started", "Ended", "Status", "Diff"}, rows, nil)
}

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var weeks int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show weekly reliability metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				metrics, err := eng.WeeklyMetrics(c, weeks)
				if err != nil {
					return err
				}
				if len(metrics) == 0 {
					fmt.Fprintln(out, "No activity recorded")
					return nil
				}
				rows := make([][]string, 0, len(metrics))
				for _, w := range metrics {
					rows = append(rows, []string{
						w.WeekStart.Format(dateLayout),
						fmt.Sprint(w.BlocksScheduled),
						fmt.Sprint(w.BlocksCompleted),
						fmt.Sprint(w.BlocksWithDiff),
						fmt.Sprint(w.ArtifactsShippedOnTime),
						fmt.Sprint(w.ArtifactsFailed),
						formatScore(w.ReliabilityScore),
					})
				}
				right := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprint(out, renderTable(out,
					[]string{"Week", "Scheduled", "Completed", "With diff", "On time", "Failed", "Score"},
					rows, right))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&weeks, "weeks", "w", 4, "Number of recent weeks (0 for all)")
	return cmd
}

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "failures [artifact-id]",
		Short: "Show skipped blocks and autopsies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var artifactID string
			if len(args) == 1 {
				artifactID = args[0]
			}
			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				loc := eng.Location()
				skipped, err := eng.SkippedBlocks(c, artifactID)
				if err != nil {
					return err
				}
				if len(skipped) == 0 {
					fmt.Fprintln(out, "No skipped blocks")
				} else {
					rows := make([][]string, 0, len(skipped))
					for _, s := range skipped {
						scheduled, at := s.ScheduledTime, s.SkippedAt
						rows = append(rows, []string{
							s.ArtifactID, formatOptionalTime(&scheduled, loc), formatOptionalTime(&at, loc), s.Reason,
						})
					}
					fmt.Fprint(out, renderTable(out, []string{"Artifact", "Scheduled", "Skipped", "Reason"}, rows, nil))
				}

				autopsies, err := eng.Autopsies(c, artifactID)
				if err != nil {
					return err
				}
				if len(autopsies) == 0 {
					fmt.Fprintln(out, "No autopsies")
					return nil
				}
				rows := make([][]string, 0, len(autopsies))
				for _, a := range autopsies {
					rows = append(rows, []string{
						a.ArtifactID, yesNo(a.ShippedOnTime), yesNo(a.ScopeRespected),
						yesNo(a.ExternalFeedbackReceived), yesNo(a.OneClearTakeaway), yesNo(a.RepeatArtifactClass),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"Artifact", "On time", "Scope kept", "Feedback", "Takeaway", "Repeat"}, rows, nil))
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Force-end expired blocks once",
		Long:  "Force-end every block that has outlived the block duration, using each artifact's stored content. Refuses to run while the server holds the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := instance.Acquire(cfg.DBPath)
			if errors.Is(err, instance.ErrLocked) {
				return fmt.Errorf("%w; the server sweeps automatically while it runs", err)
			}
			if err != nil {
				return err
			}
			defer lock.Release()

			return ctx.withEngine(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, eng *engine.Engine) error {
				ended, err := eng.SweepExpired(c, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Ended %d expired blocks\n", len(ended))
				if len(ended) > 0 {
					fmt.Fprint(out, renderBlocks(out, ended, eng))
				}
				return nil
			})
		},
	}
}
