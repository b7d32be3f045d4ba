package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/adapters/fs"
	"github.com/aretw0/notekeep/pkg/core"
	"github.com/aretw0/notekeep/pkg/store"
)

var inspectDiagram bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the internal state of the service and its store",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		svcState, _ := svc.State().(core.ServiceState)
		var storeState store.StoreState
		if intro, ok := svc.Store().(introspection.Introspectable); ok {
			storeState, _ = intro.State().(store.StoreState)
		}

		if inspectDiagram {
			config := introspection.DefaultDiagramConfig()
			config.SecondaryID = "notekeep"
			config.SecondaryLabel = "Notekeep Topology"
			fmt.Println(introspection.TreeDiagram(buildTree(svcState, storeState), config))
			return
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			svc.ComponentType(): svcState,
			"store":             storeState,
		}); err != nil {
			fatal("Failed to encode state", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectDiagram, "diagram", false, "Print a Mermaid diagram instead of JSON")
}

type node struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []node
}

// buildTree maps component state to diagram nodes. Status values must be
// classes known to introspection.DefaultStyles().
func buildTree(svc core.ServiceState, st store.StoreState) node {
	engine := node{
		Name:   "Engine",
		Status: "running",
		Metadata: map[string]string{
			"type":   "container",
			"engine": st.Engine,
		},
	}
	if kv, ok := st.KV.(fs.KVState); ok {
		engine.Metadata["path"] = kv.Path
		engine.Metadata["cache"] = strconv.Itoa(kv.CacheSize)
		watcher := "suspended"
		if kv.WatcherActive {
			watcher = "running"
		}
		engine.Children = append(engine.Children, node{
			Name:     "Watcher",
			Status:   watcher,
			Metadata: map[string]string{"type": "goroutine"},
		})
	}

	backup := "stopped"
	if svc.BackupEnabled {
		backup = "suspended"
	}
	return node{
		Name:   "Service",
		Status: "running",
		Metadata: map[string]string{
			"type":    "process",
			"notes":   strconv.Itoa(svc.Notes),
			"trashed": strconv.Itoa(svc.Trashed),
			"pending": strconv.Itoa(svc.PendingWrites),
		},
		Children: []node{
			engine,
			{
				Name:     "Backup",
				Status:   backup,
				Metadata: map[string]string{"type": "container"},
			},
		},
	}
}
