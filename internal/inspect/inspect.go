// Package inspect provides an interactive shell for browsing the artifacts
// of a finished deduplication run.
package inspect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/dedup"
	"github.com/corpuslab/neardup/internal/pipeline"
)

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Inspector is the interactive shell over one run's output directory.
type Inspector struct {
	dir      string
	out      io.Writer
	report   pipeline.RunReport
	clusters []dedup.Cluster
	removed  map[string]string
	kept     map[string]struct{}
	rl       *readline.Instance
	commands map[string]CommandHandler
}

// New loads the run artifacts from dir and builds an Inspector writing to
// out. Pass os.Stdout for interactive use.
func New(dir string, out io.Writer) (*Inspector, error) {
	i := &Inspector{
		dir:      dir,
		out:      out,
		removed:  make(map[string]string),
		kept:     make(map[string]struct{}),
		commands: make(map[string]CommandHandler),
	}
	if err := i.loadArtifacts(); err != nil {
		return nil, err
	}
	i.registerCommands()
	return i, nil
}

func (i *Inspector) loadArtifacts() error {
	reportData, err := os.ReadFile(filepath.Join(i.dir, pipeline.ReportFile))
	if err != nil {
		return fmt.Errorf("reading run report: %w", err)
	}
	if err := json.Unmarshal(reportData, &i.report); err != nil {
		return fmt.Errorf("parsing run report: %w", err)
	}

	clustersData, err := os.ReadFile(filepath.Join(i.dir, pipeline.ClustersFile))
	if err != nil {
		return fmt.Errorf("reading clusters: %w", err)
	}
	if err := json.Unmarshal(clustersData, &i.clusters); err != nil {
		return fmt.Errorf("parsing clusters: %w", err)
	}

	removedFile, err := os.Open(filepath.Join(i.dir, pipeline.RemovedFile))
	if err != nil {
		return fmt.Errorf("reading removed records: %w", err)
	}
	defer func() { _ = removedFile.Close() }()
	scanner := bufio.NewScanner(removedFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r pipeline.RemovedRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return fmt.Errorf("parsing removed record: %w", err)
		}
		i.removed[r.ID] = r.Survivor
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning removed records: %w", err)
	}

	kept, err := corpus.ReadJSONL(filepath.Join(i.dir, pipeline.KeptFile))
	if err != nil {
		return fmt.Errorf("reading kept documents: %w", err)
	}
	for _, d := range kept {
		i.kept[d.ID] = struct{}{}
	}
	return nil
}

// registerCommands registers all built-in commands
func (i *Inspector) registerCommands() {
	i.commands["help"] = i.cmdHelp
	i.commands["?"] = i.cmdHelp
	i.commands["report"] = i.cmdReport
	i.commands["clusters"] = i.cmdClusters
	i.commands["cluster"] = i.cmdCluster
	i.commands["find"] = i.cmdFind
	i.commands["exit"] = i.cmdExit
	i.commands["quit"] = i.cmdExit
}

// Run starts the interactive loop.
func (i *Inspector) Run() error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("neardup> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()
	i.rl = rl

	i.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C - just show prompt again
				continue
			} else if err == io.EOF {
				// Ctrl+D - exit
				fmt.Fprintln(i.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := i.processInput(line); err != nil {
			if err == io.EOF {
				// Exit command - graceful shutdown
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(i.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (i *Inspector) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	if handler, ok := i.commands[parts[0]]; ok {
		return handler(parts[1:])
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(i.out, "%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), parts[0])
	return nil
}

// printWelcome prints the welcome message
func (i *Inspector) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(i.out, "\n%s\n", cyan("neardup run inspector"))
	fmt.Fprintf(i.out, "Run %s over %s\n", i.report.RunID, i.report.Input)
	fmt.Fprintln(i.out)
	fmt.Fprintln(i.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(i.out)
}

// cmdHelp shows help information
func (i *Inspector) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(i.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"report", "Show the run summary"},
		{"clusters [n]", "List the first n duplicate clusters (default 10)"},
		{"cluster <n>", "Show every member of cluster n"},
		{"find <doc-id>", "Look a document up in the run"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the inspector"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(i.out, "  %s  %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(i.out)
	return nil
}

// cmdReport shows the run summary
func (i *Inspector) cmdReport(args []string) error {
	r := i.report
	fmt.Fprintf(i.out, "\nRun:        %s\n", r.RunID)
	fmt.Fprintf(i.out, "Created:    %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(i.out, "Input:      %s\n", r.Input)
	fmt.Fprintf(i.out, "Config:     %s\n", r.Config.String())
	fmt.Fprintln(i.out)
	fmt.Fprintf(i.out, "Documents:  %d total, %d kept, %d removed (%.1f%% near-duplicates)\n",
		r.Report.TotalDocuments, r.Report.KeptCount, r.Report.RemovedCount,
		r.Report.NearDuplicateRate*100)
	fmt.Fprintf(i.out, "Clusters:   %d duplicate clusters\n", r.Report.DuplicateClusters)
	fmt.Fprintf(i.out, "Banding:    %d candidate pairs, %d confirmed edges\n",
		r.Report.CandidatePairs, r.Report.ConfirmedEdges)
	fmt.Fprintf(i.out, "Elapsed:    %dms\n\n", r.Report.ProcessingTimeMs)
	return nil
}

// cmdClusters lists duplicate clusters
func (i *Inspector) cmdClusters(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("clusters takes a positive count, got %q", args[0])
		}
		limit = n
	}

	if len(i.clusters) == 0 {
		fmt.Fprintln(i.out, "No duplicate clusters in this run.")
		return nil
	}

	shown := limit
	if shown > len(i.clusters) {
		shown = len(i.clusters)
	}
	fmt.Fprintf(i.out, "\nShowing %d of %d clusters:\n", shown, len(i.clusters))
	for n, c := range i.clusters[:shown] {
		fmt.Fprintf(i.out, "  #%-4d size=%-4d survivor=%s\n", n, c.Size, c.Survivor)
	}
	fmt.Fprintln(i.out)
	return nil
}

// cmdCluster shows one cluster in full
func (i *Inspector) cmdCluster(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cluster <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= len(i.clusters) {
		return fmt.Errorf("cluster index out of range (have %d clusters)", len(i.clusters))
	}

	green := color.New(color.FgGreen).SprintFunc()
	c := i.clusters[n]
	fmt.Fprintf(i.out, "\nCluster #%d, %d members:\n", n, c.Size)
	fmt.Fprintf(i.out, "  %s %s\n", green("survivor"), c.Survivor)
	for _, id := range c.Removed {
		fmt.Fprintf(i.out, "  removed  %s\n", id)
	}
	fmt.Fprintln(i.out)
	return nil
}

// cmdFind looks a document up in the run
func (i *Inspector) cmdFind(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: find <doc-id>")
	}
	id := args[0]

	if survivor, ok := i.removed[id]; ok {
		fmt.Fprintf(i.out, "%s was removed as a duplicate of %s\n", id, survivor)
		return nil
	}
	for n, c := range i.clusters {
		if c.Survivor == id {
			fmt.Fprintf(i.out, "%s survived cluster #%d (%d members)\n", id, n, c.Size)
			return nil
		}
	}
	if _, ok := i.kept[id]; ok {
		fmt.Fprintf(i.out, "%s was kept, no duplicates found\n", id)
		return nil
	}
	return fmt.Errorf("document %q is not part of this run", id)
}

// cmdExit exits the inspector
func (i *Inspector) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(i.out, "\n%s Goodbye!\n", green("✓"))
	if i.rl != nil {
		_ = i.rl.Close()
	}
	return io.EOF // Signal to exit the loop
}
