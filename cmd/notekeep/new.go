package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	newTitle string
	newText  string
	newTags  []string
)

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a note",
	Long:  `Create a note and print its id. Title, text and tags are optional.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		id, err := svc.CreateNote(ctx)
		if err != nil {
			fatal("Failed to create note", err)
		}

		u := editUpdate(cmd, newTitle, newText, newTags)
		if !u.IsZero() {
			if err := svc.UpdateNote(ctx, id, u); err != nil {
				fatal("Failed to save note", err)
			}
		}
		fmt.Println(id)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVarP(&newTitle, "title", "t", "", "Title of the note")
	newCmd.Flags().StringVar(&newText, "text", "", "Body text (blank lines separate paragraphs)")
	newCmd.Flags().StringSliceVar(&newTags, "tags", nil, "Comma separated tags")
}

