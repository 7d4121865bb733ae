package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/approval"
	"github.com/loomhq/loom/internal/executor"
)

func init() {
	rootCmd.AddCommand(agentsCmd)
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agent profiles and their availability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tAGENT\tAVAILABILITY\tLAST AUTH\tCAPABILITIES")
		for _, name := range names {
			profile := cfg.Profiles[name]
			ex, err := executor.New(name, profile, approval.NewGate(approval.Policy{}), cfg.ApprovalTimeout(), nil)
			if err != nil {
				fmt.Fprintf(w, "%s\t%s\t%s\t\t\n", name, profile.Kind(name), err)
				continue
			}
			avail := ex.Availability()
			lastAuth := ""
			if !avail.LastAuth.IsZero() {
				lastAuth = avail.LastAuth.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				name, ex.Name(), avail.State, lastAuth, capabilityList(ex.Capabilities()))
		}
		return w.Flush()
	},
}

func capabilityList(caps []executor.Capability) string {
	out := ""
	for i, c := range caps {
		if i > 0 {
			out += ","
		}
		out += string(c)
	}
	return out
}
