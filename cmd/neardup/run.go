package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/corpuslab/neardup/internal/dedup"
	"github.com/corpuslab/neardup/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deduplicate a corpus and write the kept documents",
	Long: `Run the full deduplication pipeline over a corpus.

The input is a JSONL file of documents ({"id": ..., "text": ..., "metadata":
{...}}), or a SQLite corpus database created by 'neardup ingest'. The output
directory receives four artifacts:

  kept.jsonl     Surviving documents, in ingestion order
  removed.jsonl  Removed document IDs, each with its surviving duplicate
  clusters.json  Every duplicate cluster with its survivor and members
  report.json    Run ID, configuration, and corpus-level statistics

Settings resolve in order: built-in defaults, NEARDUP_* environment
variables, the --config YAML file, then explicit flags.

Example:
  neardup run --input corpus.jsonl --output out
  neardup run --input corpus.jsonl --threshold 0.92 --exact
  neardup run --input corpus.db --config neardup.yaml --persist runs.db`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := resolveOptions(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		stage, err := pipeline.New(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle signals for graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping...")
			cancel()
		}()

		outcome, err := stage.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printOutcome(opts, outcome)
	},
}

// resolveOptions assembles the effective pipeline options for a run
// invocation. Only flags the user actually set override the config file, so
// 'neardup run --config x.yaml --threshold 0.9' keeps the file's settings
// except for the threshold.
func resolveOptions(cmd *cobra.Command) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	// Environment overrides the built-in defaults
	cfg, err := dedup.ConfigFromEnv()
	if err != nil {
		return opts, err
	}
	opts.Dedup = cfg

	// A config file overrides the environment
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := pipeline.LoadOptionsFile(path, &opts); err != nil {
			return opts, err
		}
	}

	// Explicit flags override everything else
	flags := cmd.Flags()
	if flags.Changed("input") {
		opts.Input, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		opts.Output, _ = flags.GetString("output")
	}
	if flags.Changed("persist") {
		opts.Persist, _ = flags.GetString("persist")
	}
	if flags.Changed("shingle-size") {
		opts.Dedup.ShingleSize, _ = flags.GetInt("shingle-size")
	}
	if flags.Changed("signature-size") {
		opts.Dedup.SignatureSize, _ = flags.GetInt("signature-size")
	}
	if flags.Changed("bands") {
		opts.Dedup.Bands, _ = flags.GetInt("bands")
	}
	if flags.Changed("rows-per-band") {
		opts.Dedup.RowsPerBand, _ = flags.GetInt("rows-per-band")
	}
	if flags.Changed("threshold") {
		opts.Dedup.SimilarityThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("exact") {
		opts.Dedup.ExactVerification, _ = flags.GetBool("exact")
	}
	if flags.Changed("survivor-policy") {
		policy, _ := flags.GetString("survivor-policy")
		opts.Dedup.SurvivorPolicy = dedup.SurvivorPolicy(policy)
	}
	if flags.Changed("seed") {
		opts.Dedup.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("workers") {
		opts.Dedup.Workers, _ = flags.GetInt("workers")
	}

	return opts, nil
}

func printOutcome(opts pipeline.Options, outcome *pipeline.Outcome) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	rep := outcome.Result.Report
	fmt.Printf("\n%s Deduplication complete\n\n", green("✓"))
	fmt.Printf("  Documents:  %d total, %d kept, %d removed\n",
		rep.TotalDocuments, rep.KeptCount, rep.RemovedCount)
	fmt.Printf("  Clusters:   %d duplicate cluster(s)\n", rep.DuplicateClusters)
	fmt.Printf("  Rate:       %.1f%% near-duplicates\n", rep.NearDuplicateRate*100)
	fmt.Printf("  Candidates: %d banded, %d confirmed\n",
		rep.CandidatePairs, rep.ConfirmedEdges)
	fmt.Printf("  Elapsed:    %dms\n", rep.ProcessingTimeMs)
	fmt.Println()
	fmt.Printf("  Kept:     %s\n", cyan(outcome.KeptPath))
	fmt.Printf("  Removed:  %s\n", cyan(outcome.RemovedPath))
	fmt.Printf("  Clusters: %s\n", cyan(outcome.ClustersPath))
	fmt.Printf("  Report:   %s\n", cyan(outcome.ReportPath))
	if opts.Persist != "" {
		fmt.Printf("  Recorded: %s (run %s)\n", cyan(opts.Persist), outcome.RunID)
	}
	fmt.Println()
	fmt.Printf("%s Next steps:\n", gray("→"))
	fmt.Printf("  %s\n", gray("neardup inspect "+opts.Output))
	if opts.Persist != "" {
		fmt.Printf("  %s\n", gray("neardup runs --db "+opts.Persist))
	}
	fmt.Println()
}

// registerRunFlags declares the run flags on cmd. Flag defaults mirror the
// engine defaults so --help shows the effective values, but resolveOptions
// only applies flags the user actually set.
func registerRunFlags(cmd *cobra.Command) {
	defaults := pipeline.DefaultOptions()

	cmd.Flags().StringP("input", "i", "", "Corpus to deduplicate (.jsonl, or .db from 'neardup ingest')")
	cmd.Flags().StringP("output", "o", defaults.Output, "Directory for run artifacts")
	cmd.Flags().StringP("config", "c", "", "YAML options file")
	cmd.Flags().String("persist", "", "SQLite database recording the run for later inspection")
	cmd.Flags().Int("shingle-size", defaults.Dedup.ShingleSize, "Word n-gram width for shingling")
	cmd.Flags().Int("signature-size", defaults.Dedup.SignatureSize, "Number of MinHash functions per signature")
	cmd.Flags().Int("bands", 0, "Explicit LSH band count (0 = derive from threshold)")
	cmd.Flags().Int("rows-per-band", 0, "Explicit rows per LSH band (0 = derive from threshold)")
	cmd.Flags().Float64P("threshold", "t", defaults.Dedup.SimilarityThreshold, "Jaccard similarity at or above which documents are duplicates")
	cmd.Flags().Bool("exact", false, "Verify candidates against exact shingle sets instead of signature estimates")
	cmd.Flags().String("survivor-policy", string(defaults.Dedup.SurvivorPolicy), "Cluster survivor: earliest-ingestion or highest-quality-score")
	cmd.Flags().Int64("seed", defaults.Dedup.Seed, "MinHash seed")
	cmd.Flags().Int("workers", defaults.Dedup.Workers, "Parallel worker count")
}

func init() {
	registerRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
