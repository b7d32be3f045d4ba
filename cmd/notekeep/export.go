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

var exportOut string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all notes, including the trash, to a JSON file",
	Long: `Export every note to a versioned JSON document.
The default file name is notekeep-backup-YYYY-MM-DD.json; use --out - for stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		now := time.Now()
		state := svc.Snapshot()
		c := core.Collection{Notes: state.Notes, Trashed: state.TrashedNotes}

		out := exportOut
		if out == "" {
			out = exchange.Filename("notekeep", now)
		}

		var w io.Writer = os.Stdout
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				fatal("Failed to create export file", err)
			}
			defer f.Close()
			w = f
		}
		if err := exchange.Encode(w, c, now); err != nil {
			fatal("Failed to export", err)
		}
		if out != "-" {
			fmt.Fprintf(os.Stderr, "Exported %d notes to %s\n", c.Len(), out)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (- for stdout)")
}
