package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/notekeep"
	"github.com/aretw0/notekeep/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of notes to generate")
	adapter := flag.String("adapter", notekeep.AdapterFS, "Engine to benchmark (fs, sqlite, redis, memory)")
	uri := flag.String("uri", "", "Engine location (default: a temp dir; required for redis)")
	workers := flag.Int("workers", 8, "Concurrent writers in the update run")
	keep := flag.Bool("keep", false, "Keep the benchmark data after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "notekeep_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	location := *uri
	if location == "" {
		location = benchDir
		if *adapter == notekeep.AdapterSQLite {
			location = filepath.Join(benchDir, "bench.db")
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	open := func() *core.Service {
		svc, err := notekeep.New(location,
			notekeep.WithAdapter(*adapter),
			notekeep.WithLogger(logger),
		)
		if err != nil {
			panic(err)
		}
		return svc
	}

	ctx := context.Background()

	// 1. Generate through the store so every engine sees the same records.
	fmt.Printf("Generating %d notes (%s at %s)...\n", *count, *adapter, location)
	startGen := time.Now()
	now := time.Now().UnixMilli()
	notes := make([]core.Note, *count)
	for i := range notes {
		n := core.NewNote(fmt.Sprintf("bench-%06d", i), now-int64(i))
		n.Content.Blocks = []core.Block{
			{Type: "header", Data: map[string]any{"text": fmt.Sprintf("Benchmark Note %d", i), "level": 2}},
			{Type: "paragraph", Data: map[string]any{"text": "This is a <b>test</b> note."}},
		}
		n.Title = core.DeriveTitle(n.Content)
		n.CharCount = core.CountChars(n.Content)
		n.Tags = []string{"benchmark", "test"}
		notes[i] = n
	}
	gen := open()
	if err := gen.Store().ImportNotes(ctx, notes); err != nil {
		panic(err)
	}
	gen.Close()
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	// 2. Load twice; a fresh service simulates a new CLI run.
	fmt.Println("Running Load (Run 1 - Cold)...")
	svc := open()
	startLoad := time.Now()
	if err := svc.EnsureLoaded(ctx); err != nil {
		panic(err)
	}
	cold := time.Since(startLoad)
	fmt.Printf("Run 1 Result: %v (Items: %d)\n", cold, len(svc.Snapshot().Notes))
	svc.Close()

	fmt.Println("Running Load (Run 2 - Warm)...")
	svc = open()
	defer svc.Close()
	startLoad = time.Now()
	if err := svc.EnsureLoaded(ctx); err != nil {
		panic(err)
	}
	warm := time.Since(startLoad)
	fmt.Printf("Run 2 Result: %v (Items: %d)\n", warm, len(svc.Snapshot().Notes))

	// 3. Concurrent optimistic updates.
	fmt.Printf("Running Updates (%d workers)...\n", *workers)
	startUpd := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for i, n := range notes {
		content := n.Content.Clone()
		content.Blocks = append(content.Blocks, core.Block{Type: "paragraph", Data: map[string]any{"text": fmt.Sprintf("edit %d", i)}})
		g.Go(func() error {
			return svc.UpdateNote(gctx, n.ID, core.Update{Content: &content, CharCount: core.Ptr(core.CountChars(content))})
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	updates := time.Since(startUpd)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes, %s):\n", *count, *adapter)
	fmt.Printf("  Cold:    %v\n", cold)
	fmt.Printf("  Warm:    %v\n", warm)
	fmt.Printf("  Updates: %v (%.0f/s)\n", updates, float64(*count)/updates.Seconds())
	fmt.Printf("--------------------------------------------------\n")
}
