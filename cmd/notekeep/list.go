package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

var (
	listTrash bool
	listTag   string
	listSort  string
	listJSON  bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long: `List active notes (or the trash with --trash).
Pinned notes come first unless --sort is given.
Tags can be filtered with a glob such as "work/**".`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		state := svc.Snapshot()
		notes := state.Notes
		if listTrash {
			notes = state.TrashedNotes
		}

		if listTag != "" {
			filtered := notes[:0:0]
			for _, n := range notes {
				if core.MatchTag(listTag, n.Tags) {
					filtered = append(filtered, n)
				}
			}
			notes = filtered
		}

		if cmd.Flags().Changed("sort") {
			field, order, err := core.ParseSort(listSort)
			if err != nil {
				fatal("Invalid sort", err)
			}
			notes = core.SortNotes(notes, field, order)
		} else if !listTrash {
			notes = pinnedFirst(notes)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(notes); err != nil {
				fatal("Failed to encode notes", err)
			}
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, n := range notes {
			pin := " "
			if n.IsPinned {
				pin = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n",
				pin, shortID(n.ID), n.Title, strings.Join(n.Tags, ","), formatMillis(n.UpdatedAt))
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listTrash, "trash", false, "List trashed notes")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only notes with a tag matching this glob")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort by field-order (updatedAt, createdAt, title, charCount; asc or desc)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

// pinnedFirst keeps the stored order but moves pinned notes to the top.
func pinnedFirst(notes []core.Note) []core.Note {
	out := make([]core.Note, 0, len(notes))
	for _, n := range notes {
		if n.IsPinned {
			out = append(out, n)
		}
	}
	for _, n := range notes {
		if !n.IsPinned {
			out = append(out, n)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
