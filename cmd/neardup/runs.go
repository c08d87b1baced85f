package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/corpuslab/neardup/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List deduplication runs recorded in a database",
	Long: `List the runs recorded by 'neardup run --persist'.

Shows each run's ID, timestamp, input, and headline numbers, newest first.
Pass --run to print one run in full, including every duplicate cluster.

Examples:
  neardup runs --db runs.db
  neardup runs --db runs.db --run 3f2a...  # Show one run in detail`,
	Run: func(cmd *cobra.Command, args []string) {
		dbPath, _ := cmd.Flags().GetString("db")
		runID, _ := cmd.Flags().GetString("run")
		if dbPath == "" {
			fmt.Fprintf(os.Stderr, "Error: --db is required\n")
			os.Exit(1)
		}

		store, err := storage.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		if runID != "" {
			showRun(ctx, store, runID)
			return
		}

		summaries, err := store.ListRuns(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(summaries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No runs recorded in %s\n\n", yellow("✨"), dbPath)
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Recorded runs (%d):\n\n", cyan("📋"), len(summaries))
		for _, s := range summaries {
			fmt.Printf("  %s  %s\n", cyan(s.ID), s.CreatedAt.Format(time.RFC3339))
			fmt.Printf("      %s: %d docs, %d removed in %d cluster(s)\n",
				s.Input, s.Report.TotalDocuments, s.Report.RemovedCount, s.Report.DuplicateClusters)
		}
		fmt.Println()
	},
}

func showRun(ctx context.Context, store *storage.Store, runID string) {
	run, err := store.LoadRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	rep := run.Result.Report
	fmt.Printf("\n%s Run %s\n\n", cyan("📋"), run.ID)
	fmt.Printf("  Created:    %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Input:      %s\n", run.Input)
	fmt.Printf("  Config:     %s\n", run.Config)
	fmt.Printf("  Documents:  %d total, %d kept, %d removed\n",
		rep.TotalDocuments, rep.KeptCount, rep.RemovedCount)
	fmt.Printf("  Rate:       %.1f%% near-duplicates\n", rep.NearDuplicateRate*100)
	fmt.Println()

	if len(run.Result.Clusters) == 0 {
		fmt.Printf("  No duplicate clusters.\n\n")
		return
	}
	fmt.Printf("  Clusters (%d):\n", len(run.Result.Clusters))
	for i, c := range run.Result.Clusters {
		fmt.Printf("    #%d  %s survives, %d removed: %v\n", i+1, cyan(c.Survivor), len(c.Removed), c.Removed)
	}
	fmt.Println()
}

func init() {
	runsCmd.Flags().String("db", "", "SQLite database written by 'neardup run --persist'")
	runsCmd.Flags().String("run", "", "Show this run ID in full")
	rootCmd.AddCommand(runsCmd)
}
