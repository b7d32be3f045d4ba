package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

var showJSON bool

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		n, _ := svc.Note(resolveID(svc, args[0]))
		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(n); err != nil {
				fatal("Failed to encode note", err)
			}
			return
		}

		fmt.Printf("# %s\n", n.Title)
		fmt.Printf("id: %s\n", n.ID)
		if len(n.Tags) > 0 {
			fmt.Printf("tags: %s\n", strings.Join(n.Tags, ", "))
		}
		status := []string{}
		if n.IsPinned {
			status = append(status, "pinned")
		}
		if n.IsTrashed {
			status = append(status, "trashed")
		}
		if len(status) > 0 {
			fmt.Printf("status: %s\n", strings.Join(status, ", "))
		}
		fmt.Printf("updated: %s (%d chars, %d versions)\n\n", formatMillis(n.UpdatedAt), n.CharCount, len(n.History))
		printContent(n.Content)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")
}

// printContent renders blocks as plain text.
func printContent(c core.Content) {
	for _, b := range c.Blocks {
		text := core.StripHTML(strings.ReplaceAll(b.Text(), "<br>", "\n"))
		switch b.Type {
		case "header":
			fmt.Printf("## %s\n\n", text)
		case "list":
			if items, ok := b.Data["items"].([]any); ok {
				for _, item := range items {
					if s, ok := item.(string); ok {
						fmt.Printf("- %s\n", core.StripHTML(s))
					}
				}
				fmt.Println()
			}
		case "quote":
			fmt.Printf("> %s\n\n", text)
		case "delimiter":
			fmt.Print("* * *\n\n")
		case "code":
			code, _ := b.Data["code"].(string)
			fmt.Printf("    %s\n\n", strings.ReplaceAll(code, "\n", "\n    "))
		default:
			if text != "" {
				fmt.Printf("%s\n\n", text)
			}
		}
	}
}
