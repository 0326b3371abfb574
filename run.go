package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"polycode/supervisor-app/core"
	"polycode/supervisor-app/services/agent_service"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run one request and print every snapshot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := agent_service.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for snap, err := range svc.Stream(ctx, strings.Join(args, " ")) {
			if err != nil {
				return err
			}
			printSnapshot(out, snap)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func printSnapshot(w io.Writer, snap core.Snapshot) {
	switch snap.State {
	case core.StateRunWorker:
		fmt.Fprintf(w, "[%d] %s -> %s\n", snap.Cycle, snap.Node, snap.Route)
	case core.StateAwaitDispatch:
		fmt.Fprintf(w, "[%d] %s reported\n", snap.Cycle, snap.Node)
		for _, m := range snap.Messages {
			fmt.Fprintf(w, "%s: %s\n", m.Author, m.Content)
		}
	case core.StateDone:
		fmt.Fprintf(w, "[%d] %s -> %s\n", snap.Cycle, snap.Node, snap.Route)
	}
	fmt.Fprintln(w, "----")
}
