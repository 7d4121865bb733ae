package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/logging"
	"github.com/loomhq/loom/internal/ui"
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsListCmd, logsShowCmd)

	logsShowCmd.Flags().Bool("ui", false, "replay the timeline in the interactive viewer")
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect persisted run timelines",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged runs for this project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir, err := projectLogDir(cmd)
		if err != nil {
			return err
		}
		dirEntries, err := os.ReadDir(logDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No runs logged yet.")
				return nil
			}
			return err
		}

		type row struct {
			name string
			mod  string
		}
		var rows []row
		for _, de := range dirEntries {
			if de.IsDir() || !strings.HasSuffix(de.Name(), ".jsonl") {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			rows = append(rows, row{
				name: strings.TrimSuffix(de.Name(), ".jsonl"),
				mod:  info.ModTime().Format("2006-01-02 15:04:05"),
			})
		}
		if len(rows) == 0 {
			fmt.Println("No runs logged yet.")
			return nil
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].mod > rows[j].mod })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tWRITTEN")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\n", r.name, r.mod)
		}
		return w.Flush()
	},
}

var logsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Replay a logged timeline (latest when no run id is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir, err := projectLogDir(cmd)
		if err != nil {
			return err
		}
		var path string
		if len(args) == 1 {
			path = filepath.Join(logDir, args[0]+".jsonl")
		} else {
			path, err = logging.FindLatestLog(logDir)
			if err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("no runs logged under %s", logDir)
			}
		}
		if flagBool(cmd, "ui") {
			st, err := logging.ReplayStore(path)
			if err != nil {
				return err
			}
			return ui.RunTimeline(context.Background(), st, nil, nil)
		}

		entries, err := logging.ReadEntries(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(formatEntry(e))
		}
		return nil
	},
}

func projectLogDir(cmd *cobra.Command) (string, error) {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return logging.FindLogDir(cfg.ExpandLogDir(), dir)
}
