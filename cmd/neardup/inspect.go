package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpuslab/neardup/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [output-dir]",
	Short: "Browse the artifacts of a dedup run interactively",
	Long: `Start an interactive shell over the artifacts of a finished run.

The inspector reads report.json, clusters.json, removed.jsonl, and
kept.jsonl from the output directory and answers questions about them:

  report          Show the run summary
  clusters [n]    List the first n duplicate clusters
  cluster <n>     Show one cluster in full
  find <doc-id>   Explain what happened to a document

Type 'help' in the shell for the full command list. The output directory
defaults to 'out'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "out"
		if len(args) > 0 {
			dir = args[0]
		}

		ins, err := inspect.New(dir, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := ins.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
