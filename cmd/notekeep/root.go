package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep"
	"github.com/aretw0/notekeep/pkg/core"
)

var (
	verbose    bool
	adapter    string
	dataPath   string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notekeep",
	Short: "Local-first notes with trash, history and remote backup",
	Long: `notekeep keeps rich-text notes in a local store (files, SQLite or Redis),
with a trash, per-note version history, pinning and tags.
Notes can be exported, imported from markdown, and backed up to Google Drive or S3.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage engine (fs, sqlite, redis, memory)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "path", "", "Data location (directory, database file or redis URL)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: notekeep.yaml found upwards)")
}

// stderrNotifier prints user-visible notices.
var stderrNotifier = core.NotifierFunc(func(level core.NoticeLevel, msg string) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", level, msg)
})

// openService builds the service from flags and config, and loads both
// collections.
func openService(ctx context.Context) *core.Service {
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}

	var cfg *notekeep.Config
	if configPath != "" {
		if cfg, err = notekeep.LoadConfig(configPath); err != nil {
			fatal("Failed to load config", err)
		}
	} else if found, ok, err := notekeep.FindConfig(cwd); err != nil {
		fatal("Failed to load config", err)
	} else if ok {
		cfg = found
	}

	opts := []notekeep.Option{}
	uri := dataPath
	if cfg != nil {
		copts, err := cfg.Options(slog.Default())
		if err != nil {
			fatal("Invalid config", err)
		}
		opts = append(opts, copts...)
		if uri == "" {
			uri = cfg.URI()
		}
	}
	if adapter != "" {
		opts = append(opts, notekeep.WithAdapter(adapter))
	}
	if uri == "" {
		uri = defaultDataDir(cwd)
	}
	opts = append(opts,
		notekeep.WithLogger(slog.Default()),
		notekeep.WithNotifier(stderrNotifier),
	)

	svc, err := notekeep.New(uri, opts...)
	if err != nil {
		fatal("Failed to initialize notekeep", err)
	}
	if err := svc.EnsureLoaded(ctx); err != nil {
		fatal("Failed to load notes", err)
	}
	return svc
}

// defaultDataDir is <root>/.notekeep/notes, where root is the nearest data
// root or the working directory.
func defaultDataDir(cwd string) string {
	root, err := notekeep.FindRoot(cwd)
	if err != nil {
		root = cwd
	}
	return filepath.Join(root, ".notekeep", "notes")
}

// resolveID accepts a full id or an unambiguous prefix or suffix of one.
func resolveID(svc *core.Service, arg string) string {
	if _, ok := svc.Note(arg); ok {
		return arg
	}
	state := svc.Snapshot()
	var matches []string
	for _, n := range append(state.Notes, state.TrashedNotes...) {
		if strings.HasPrefix(n.ID, arg) || strings.HasSuffix(n.ID, arg) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		fatal("Note not found", fmt.Errorf("no note matches %q", arg))
	case 1:
		return matches[0]
	}
	fatal("Ambiguous id", fmt.Errorf("%q matches %d notes", arg, len(matches)))
	return ""
}
