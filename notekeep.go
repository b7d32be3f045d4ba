package notekeep

import (
	"log/slog"

	"github.com/aretw0/notekeep/internal/platform"
	"github.com/aretw0/notekeep/pkg/core"
)

// --- Configuration ---

// Option defines a functional option for configuring notekeep.
type Option = platform.Option

// Config is the content of a notekeep.yaml file.
type Config = platform.Config

// Adapter names.
const (
	AdapterFS     = platform.AdapterFS
	AdapterMemory = platform.AdapterMemory
	AdapterRedis  = platform.AdapterRedis
	AdapterSQLite = platform.AdapterSQLite
)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the storage engine by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithStore injects a custom note store.
func WithStore(s core.NoteStore) Option {
	return platform.WithStore(s)
}

// WithKV injects a custom key-value engine.
func WithKV(kv core.KV) Option {
	return platform.WithKV(kv)
}

// WithNamespace sets the key namespace of the redis engine.
func WithNamespace(ns string) Option {
	return platform.WithNamespace(ns)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist ensures the data directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithEventBuffer sets the buffer of the watch channel.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithBackup enables remote backup.
func WithBackup(client core.BackupClient, tokens core.TokenSource) Option {
	return platform.WithBackup(client, tokens)
}

// WithNotifier routes user-visible notices.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a new notekeep Service.
func New(uri string, opts ...Option) (*core.Service, error) {
	return platform.New(uri, opts...)
}

// LoadConfig reads a notekeep.yaml file.
func LoadConfig(path string) (*Config, error) {
	return platform.LoadConfig(path)
}

// --- Safety & Utils ---

// ResolveDataPath determines the actual data path based on safety rules.
func ResolveDataPath(userPath string, forceTemp bool) string {
	return platform.ResolveDataPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot walks up from startDir to the nearest notekeep root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// FindConfig looks upwards from startDir for a notekeep.yaml file.
func FindConfig(startDir string) (*Config, bool, error) {
	return platform.FindConfig(startDir)
}
