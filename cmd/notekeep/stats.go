package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

var statsJSON bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize active notes",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		state := svc.Snapshot()
		st := core.Summarize(state.Notes)
		if statsJSON {
			if err := json.NewEncoder(os.Stdout).Encode(st); err != nil {
				fatal("Failed to encode stats", err)
			}
			return
		}

		fmt.Printf("Notes:   %d (%d pinned, %d in trash)\n", st.TotalNotes, st.Pinned, len(state.TrashedNotes))
		fmt.Printf("Words:   %d\n", st.TotalWords)
		fmt.Printf("Chars:   %d\n", st.TotalChars)
		fmt.Printf("Tags:    %d\n", st.TagCount)
		for _, tc := range st.TopTags {
			fmt.Printf("  %-20s %d\n", tc.Tag, tc.Count)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}
