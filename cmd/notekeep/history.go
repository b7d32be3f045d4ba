package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

var historyRestore int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List or restore previous versions of a note",
	Long: fmt.Sprintf(`List the retained versions of a note, newest first (up to %d).
With --restore N the note's content is replaced by version N;
the replaced content becomes the newest version.`, core.MaxHistory),
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		id := resolveID(svc, args[0])
		if cmd.Flags().Changed("restore") {
			ok, err := svc.RestoreVersion(ctx, id, historyRestore)
			if err != nil {
				fatal("Failed to restore version", err)
			}
			if !ok {
				fatal("Failed to restore version", fmt.Errorf("no version %d", historyRestore))
			}
			fmt.Printf("Restored version %d of %s\n", historyRestore, id)
			return
		}

		n, _ := svc.Note(id)
		if len(n.History) == 0 {
			fmt.Println("No previous versions.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for i, h := range n.History {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d chars\n",
				i, formatMillis(h.UpdatedAt), core.DeriveTitle(h.Content), core.CountChars(h.Content))
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyRestore, "restore", 0, "Restore the version at this index")
}
