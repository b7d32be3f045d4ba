package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
	"github.com/aretw0/notekeep/pkg/exchange"
)

var importMarkdown string

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import notes from an export file or markdown files",
	Long: `Import notes from a JSON export of any version (use - for stdin),
or from markdown files matching a glob with --markdown "notes/**/*.md".
Records with an id already in the store replace the stored note.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if (len(args) == 0) == (importMarkdown == "") {
			fatal("Invalid arguments", fmt.Errorf("give either a file or --markdown"))
		}

		ctx := context.Background()
		now := time.Now().UnixMilli()

		var notes []core.Note
		if importMarkdown != "" {
			cwd, err := os.Getwd()
			if err != nil {
				fatal("Failed to get CWD", err)
			}
			notes, err = exchange.ImportMarkdown(os.DirFS(cwd), importMarkdown, now)
			if err != nil {
				fatal("Failed to read markdown", err)
			}
		} else {
			data, err := readInput(args[0])
			if err != nil {
				fatal("Failed to read import file", err)
			}
			res, err := exchange.Parse(data, now)
			if err != nil {
				fatal("Failed to parse import file", err)
			}
			if res.Skipped > 0 {
				fmt.Fprintf(os.Stderr, "Skipped %d invalid records\n", res.Skipped)
			}
			notes = res.Collection.All()
		}

		svc := openService(ctx)
		defer svc.Close()

		added, err := svc.ImportNotes(ctx, notes)
		if err != nil {
			fatal("Failed to import notes", err)
		}
		fmt.Printf("Imported %d notes (%d new)\n", len(notes), added)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importMarkdown, "markdown", "", "Glob of markdown files to import")
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
