package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

var errNoChanges = errors.New("set --title, --text or --tags")

var (
	editTitle string
	editText  string
	editTags  []string
)

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the title, text or tags of a note",
	Long: `Change a note in place. Only the given flags are applied.
A text change records the previous content in the note's history.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		id := resolveID(svc, args[0])
		u := editUpdate(cmd, editTitle, editText, editTags)
		if u.IsZero() {
			fatal("Nothing to change", errNoChanges)
		}
		if err := svc.UpdateNote(ctx, id, u); err != nil {
			fatal("Failed to save note", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	editCmd.Flags().StringVar(&editText, "text", "", "New body text (blank lines separate paragraphs)")
	editCmd.Flags().StringSliceVar(&editTags, "tags", nil, "Replace tags (comma separated)")
}

// editUpdate builds an update from the flags that were set on cmd.
func editUpdate(cmd *cobra.Command, title, text string, tags []string) core.Update {
	var u core.Update
	flags := cmd.Flags()
	if flags.Changed("title") {
		u.Title = core.Ptr(title)
	}
	if flags.Changed("text") {
		c := textContent(text, time.Now().UnixMilli())
		u.Content = &c
		u.CharCount = core.Ptr(core.CountChars(c))
	}
	if flags.Changed("tags") {
		u.Tags = core.NormalizeTags(tags)
	}
	return u
}

// textContent turns plain text into paragraph blocks.
func textContent(text string, now int64) core.Content {
	c := core.Content{Time: now, Blocks: []core.Block{}, Version: core.ContentVersion}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		c.Blocks = append(c.Blocks, core.Block{
			Type: "paragraph",
			Data: map[string]any{"text": strings.ReplaceAll(para, "\n", "<br>")},
		})
	}
	return c
}
