// Command wazergo is the demo embedder for the runtime in internal/: it
// wires an artifact, a mount table, a network ruleset, and an effect
// journal together the way a real embedder would, playing the role
// cmd/wazero's own CLI plays for its engine.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	mountFlags  []string
	netRuleset  string
	journalPath string
	verbose     bool
)

func main() {
	root := &cobra.Command{
		Use:   "wazergo",
		Short: "inspect and exercise compiled wazergo artifacts",
	}
	root.PersistentFlags().StringArrayVar(&mountFlags, "mount", nil,
		"host directory to mount, repeatable: <hostdir>[:<guestpath>][:ro]")
	root.PersistentFlags().StringVar(&netRuleset, "net", "",
		"comma-separated network admission ruleset (empty disables all sockets)")
	root.PersistentFlags().StringVar(&journalPath, "journal", "",
		"path to an effect journal file (created if missing; empty disables journaling)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newInstantiateCmd())
	root.AddCommand(newProbeCmd())

	cobra.OnInitialize(func() {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wazergo:", err)
		os.Exit(1)
	}
}
