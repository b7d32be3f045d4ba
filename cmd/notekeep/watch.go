package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/adapters/lifecycle"
	"github.com/aretw0/notekeep/pkg/core"
)

var watchOnly []string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print changes made to the notes by other processes",
	Long: `Watch the store for changes made by other processes (another
notekeep invocation, a sync tool or a manual edit) until interrupted.
Only the fs engine supports watching.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := openService(ctx)
		defer svc.Close()

		var types []core.EventType
		for _, t := range watchOnly {
			types = append(types, core.EventType(strings.ToUpper(t)))
		}

		src, err := lifecycle.WatchService(ctx, svc, lifecycle.OnlyTypes(types...))
		if err != nil {
			fatal("Failed to watch notes", err)
		}
		if err := src.Start(ctx); err != nil {
			fatal("Failed to start watcher", err)
		}

		fmt.Fprintln(os.Stderr, "Watching for changes (Ctrl+C to stop)...")
		for e := range src.Events() {
			fmt.Println(e)
			state := svc.Snapshot()
			fmt.Fprintf(os.Stderr, "  %d notes, %d in trash\n", len(state.Notes), len(state.TrashedNotes))
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVar(&watchOnly, "only", nil, "Only report these change types (create, modify, delete)")
}
