// Package cmd implements the swiftscip command-line surface: index and
// status, layered over a project config loaded once in PersistentPreRunE
// and shared by every subcommand.
package cmd

import (
	"fmt"

	"github.com/abramin/swiftscip/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "swiftscip",
	Short: "Generate SCIP code intelligence indexes for Swift projects",
	Long: `swiftscip reads a Swift compiler's on-disk index store and turns
it into either a SCIP-shaped relational index (internal/scipstore) or a
single legacy JSON document, depending on the flags and repository state
it finds.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scip.yaml)")
}

// GetConfig returns the config loaded by PersistentPreRunE.
func GetConfig() *config.Config {
	return cfg
}
