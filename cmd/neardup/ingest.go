package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a JSONL corpus into a SQLite database",
	Long: `Load documents from a JSONL file into a SQLite corpus database.

Documents keep their ingestion order, so a run over the database produces
the same survivors as a run over the original file. Ingestion validates
document IDs up front: empty or repeated IDs fail the whole batch before
anything is written.

Example:
  neardup ingest --input corpus.jsonl --db corpus.db
  neardup run --input corpus.db --output out`,
	Run: func(cmd *cobra.Command, args []string) {
		input, _ := cmd.Flags().GetString("input")
		dbPath, _ := cmd.Flags().GetString("db")
		if input == "" || dbPath == "" {
			fmt.Fprintf(os.Stderr, "Error: --input and --db are required\n")
			os.Exit(1)
		}

		docs, err := corpus.ReadJSONL(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := corpus.ValidateIDs(docs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store, err := storage.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		if err := store.InsertDocuments(context.Background(), docs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Ingested %d documents into %s\n\n", green("✓"), len(docs), cyan(dbPath))
	},
}

func init() {
	ingestCmd.Flags().StringP("input", "i", "", "JSONL corpus to ingest")
	ingestCmd.Flags().String("db", "", "SQLite database to write")
	rootCmd.AddCommand(ingestCmd)
}
