// Command loom runs coding agents as supervised subprocesses and
// normalizes their output into a uniform timeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "loom",
	Short:         "Run coding agents as supervised subprocesses",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path")
	rootCmd.PersistentFlags().StringP("dir", "C", ".", "working directory for the agent")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the working directory and loads configuration
// for the invoked command.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	explicit, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(explicit, dir)
	if err != nil {
		return nil, "", err
	}
	return cfg, dir, nil
}
