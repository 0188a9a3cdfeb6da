package cmd

import (
	"fmt"

	"github.com/abramin/swiftscip/internal/branchcache"
	"github.com/abramin/swiftscip/internal/vcs"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	statusProjectRoot string
	statusVerbose     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current branch's index cache state",
	Long: `Reports the project's current branch and commit, and lists every
branch with a cache under the project's state directory, marking whether
the current commit already matches its cache (a future index run would
take the fast-switch path).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if statusProjectRoot == "" {
			statusProjectRoot = "."
		}

		tracker := vcs.New(statusProjectRoot, cfg.SourceExtension)
		if !tracker.IsRepository() {
			fmt.Printf("%s is not a git repository; only legacy JSON mode is available.\n", statusProjectRoot)
			return nil
		}

		manager := branchcache.New(statusProjectRoot, cfg.StateDir, tracker)

		branch, err := manager.CurrentBranch()
		if err != nil {
			return fmt.Errorf("resolving current branch: %w", err)
		}
		commit, err := tracker.CurrentCommitHash()
		if err != nil {
			return fmt.Errorf("resolving current commit: %w", err)
		}

		fmt.Printf("Branch: %s\n", branch)
		fmt.Printf("Commit: %s\n", shortCommit(commit))

		branches, err := manager.ListCachedBranches()
		if err != nil {
			return fmt.Errorf("listing branch caches: %w", err)
		}
		if len(branches) == 0 {
			fmt.Println("No branch caches yet.")
			return nil
		}

		fmt.Println()
		fmt.Println("Cached branches:")
		for _, b := range branches {
			cache, ok, err := manager.GetBranchCache(b)
			if err != nil {
				fmt.Printf("  %-30s (error reading cache: %v)\n", b, err)
				continue
			}
			if !ok {
				continue
			}
			marker := ""
			if b == branch && cache.Commit == commit {
				marker = " (up to date, fast-switch eligible)"
			}
			if statusVerbose {
				fmt.Printf("  %-30s %s  cached %s%s\n", b, shortCommit(cache.Commit), humanize.Time(cache.MTime), marker)
			} else {
				fmt.Printf("  %-30s %s%s\n", b, shortCommit(cache.Commit), marker)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusProjectRoot, "project-root", ".", "root of the Swift project's git checkout")
	statusCmd.Flags().BoolVar(&statusVerbose, "verbose", false, "show cache timestamps")
}
