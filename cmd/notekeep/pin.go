package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

// pinCmd represents the pin command
var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin or unpin a note",
	Long:  fmt.Sprintf("Toggle the pin of a note. At most %d notes can be pinned.", core.MaxPinned),
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		id := resolveID(svc, args[0])
		changed, err := svc.TogglePin(ctx, id)
		if err != nil {
			fatal("Failed to toggle pin", err)
		}
		if !changed {
			fmt.Fprintf(os.Stderr, "Pin of %s left unchanged\n", id)
			os.Exit(1)
		}
		n, _ := svc.Note(id)
		if n.IsPinned {
			fmt.Printf("Pinned %s\n", id)
		} else {
			fmt.Printf("Unpinned %s\n", id)
		}
	},
}

func init() {
	rootCmd.AddCommand(pinCmd)
}
