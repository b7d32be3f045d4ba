package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every note, including the trash",
	Run: func(cmd *cobra.Command, args []string) {
		if !clearYes {
			fatal("Refusing to clear", fmt.Errorf("pass --yes to delete all notes"))
		}
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		count := len(svc.Snapshot().Notes) + len(svc.Snapshot().TrashedNotes)
		if err := svc.Store().ClearAllNotes(ctx); err != nil {
			fatal("Failed to clear notes", err)
		}
		if err := svc.Resync(ctx); err != nil {
			fatal("Failed to reload notes", err)
		}
		fmt.Printf("Deleted %d notes\n", count)
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deletion")
}
