package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "neardup",
	Short: "Near-duplicate detection for text corpora",
	Long: `neardup finds and removes near-duplicate documents from text corpora.

Each document is shingled into word n-grams, compressed into a MinHash
signature, and banded with locality-sensitive hashing so that only likely
duplicates are ever compared. Verified duplicate pairs are clustered,
one survivor is kept per cluster, and the rest are removed.

Typical workflow:
  neardup run --input corpus.jsonl --output out   # Deduplicate a corpus
  neardup inspect out                             # Browse the results
  neardup ingest --input corpus.jsonl --db corpus.db
  neardup runs --db runs.db                       # List persisted runs

Settings are resolved in order: built-in defaults, NEARDUP_* environment
variables, a --config YAML file, then explicit flags.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	// Pick up NEARDUP_* settings from a local .env file if one exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
