package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// trashCmd represents the trash command
var trashCmd = &cobra.Command{
	Use:   "trash <id>...",
	Short: "Move notes to the trash",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		for _, arg := range args {
			id := resolveID(svc, arg)
			if err := svc.TrashNote(ctx, id); err != nil {
				fatal("Failed to trash note", err)
			}
			fmt.Printf("Trashed %s\n", id)
		}
	},
}

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <id>...",
	Short: "Bring notes back from the trash",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		for _, arg := range args {
			id := resolveID(svc, arg)
			if err := svc.RestoreNote(ctx, id); err != nil {
				fatal("Failed to restore note", err)
			}
			fmt.Printf("Restored %s\n", id)
		}
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete notes permanently",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		for _, arg := range args {
			id := resolveID(svc, arg)
			if err := svc.DeleteNotePermanently(ctx, id); err != nil {
				fatal("Failed to delete note", err)
			}
			fmt.Printf("Deleted %s\n", id)
		}
	},
}

func init() {
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(deleteCmd)
}
