package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abramin/swiftscip/internal/orchestrate"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	indexDerivedData      string
	indexProjectRoot      string
	indexOutput           string
	indexIncremental      bool
	indexForce            bool
	indexModules          []string
	indexNoIncludeSnippet bool
	indexJSON             bool
	indexVerbose          bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a Swift project and write a SCIP or legacy JSON index",
	Long: `Reads the Swift compiler's on-disk index store under --derived-data
and writes a code intelligence index for --project-root.

By default it writes the relational Storage Engine format. Pass --json to
force the single-document legacy JSON format regardless of repository
state. Pass --incremental to let the orchestrator restore or update a
branch cache instead of rebuilding from scratch when it safely can.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if indexDerivedData == "" {
			return fmt.Errorf("--derived-data is required")
		}
		if indexProjectRoot == "" {
			indexProjectRoot = "."
		}
		if indexOutput == "" {
			return fmt.Errorf("--output is required")
		}

		cfg := GetConfig()
		includeSnippets := cfg.SnippetsEnabled() && !indexNoIncludeSnippet

		if indexVerbose {
			fmt.Printf("Indexing project at: %s\n", indexProjectRoot)
			fmt.Printf("Derived data store:  %s\n", indexDerivedData)
		}

		start := time.Now()
		result, err := orchestrate.Run(context.Background(), orchestrate.Options{
			DerivedDataRoot:     indexDerivedData,
			ProjectRoot:         indexProjectRoot,
			OutputPath:          indexOutput,
			StateDir:            cfg.StateDir,
			SourceExtension:     cfg.SourceExtension,
			Incremental:         indexIncremental,
			Force:               indexForce,
			IncludeSnippets:     includeSnippets,
			JSON:                indexJSON,
			Modules:             indexModules,
			ToolName:            cfg.Tool.Name,
			ToolVersion:         cfg.Tool.Version,
			DataStoreCandidates: cfg.DataStoreCandidatePaths(indexDerivedData),
		})
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		elapsed := time.Since(start)

		printSummary(result, elapsed)
		return nil
	},
}

func printSummary(result *orchestrate.Result, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("Indexing complete! (%s)\n", result.Mode)
	fmt.Printf("  Files:        %s\n", humanize.Comma(int64(result.FilesIndexed)))
	if result.SymbolCount > 0 || result.OccurrenceCount > 0 {
		fmt.Printf("  Symbols:      %s\n", humanize.Comma(int64(result.SymbolCount)))
		fmt.Printf("  Occurrences:  %s\n", humanize.Comma(int64(result.OccurrenceCount)))
	}
	if result.Branch != "" {
		fmt.Printf("  Branch:       %s @ %s\n", result.Branch, shortCommit(result.Commit))
	}
	fmt.Printf("  Duration:     %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Output:       %s\n", result.OutputPath)

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Println()
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVar(&indexDerivedData, "derived-data", "", "path to the Xcode/SwiftPM derived-data root holding the compiler index store")
	indexCmd.Flags().StringVar(&indexProjectRoot, "project-root", ".", "root of the Swift project's git checkout")
	indexCmd.Flags().StringVar(&indexOutput, "output", "", "output path for the index (.db for the relational format, any path for --json)")
	indexCmd.Flags().BoolVar(&indexIncremental, "incremental", false, "allow branch-cache restore or incremental update instead of a full rebuild")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "bypass branch-cache fast paths and force a full rebuild")
	indexCmd.Flags().StringSliceVar(&indexModules, "module", nil, "restrict output to the named module(s) (repeatable); default is all modules")
	indexCmd.Flags().BoolVar(&indexNoIncludeSnippet, "no-include-snippets", false, "omit one-line source snippets from occurrences")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "emit the legacy single-document JSON format instead of the relational store")
	indexCmd.Flags().BoolVar(&indexVerbose, "verbose", false, "print progress as indexing proceeds")
}
