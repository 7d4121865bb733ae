package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/logging"
)

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringP("agent", "a", "", "agent profile to use")
	resumeCmd.Flags().String("session", "", "session id to resume (defaults to the latest logged run)")
	resumeCmd.Flags().Bool("no-ui", false, "print the timeline instead of the interactive viewer")
	resumeCmd.Flags().Bool("no-log", false, "skip writing the JSONL timeline file")
}

var resumeCmd = &cobra.Command{
	Use:   "resume <prompt>",
	Short: "Continue a previous session with a follow-up prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := flagString(cmd, "session")
		if sessionID == "" {
			var err error
			sessionID, err = latestSessionID(cmd)
			if err != nil {
				return err
			}
		}
		return runAgent(cmd, strings.Join(args, " "), sessionID)
	},
}

// latestSessionID reads the most recent run log for the working
// directory and returns the session its agent announced.
func latestSessionID(cmd *cobra.Command) (string, error) {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	logDir, err := logging.FindLogDir(cfg.ExpandLogDir(), dir)
	if err != nil {
		return "", err
	}
	path, err := logging.FindLatestLog(logDir)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no previous runs logged under %s; pass --session", logDir)
	}
	entries, err := logging.ReadEntries(path)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Kind == entry.KindInit && e.SessionID != "" {
			return e.SessionID, nil
		}
	}
	return "", fmt.Errorf("no session id recorded in %s; pass --session", path)
}
