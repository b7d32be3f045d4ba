package platform

import (
	"log/slog"

	"github.com/aretw0/notekeep/pkg/core"
)

// options holds the internal configuration for the notekeep service.
type options struct {
	store        core.NoteStore
	kv           core.KV
	logger       *slog.Logger
	adapter      string
	namespace    string
	readOnly     bool
	mustExist    bool
	forceTemp    bool
	devSafety    bool
	eventBuffer  int
	backup       core.BackupClient
	tokens       core.TokenSource
	notifier     core.Notifier
	errorHandler func(error)
}

// Option defines a functional option for configuring notekeep.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		devSafety: true,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// WithLogger sets the logger for the service and its engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAdapter selects the storage engine by name: "fs", "memory", "redis"
// or "sqlite". When unset the engine is detected from the URI.
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithStore injects a ready note store. The adapter settings are ignored.
func WithStore(s core.NoteStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithKV injects a ready key-value engine (e.g. a shared redis client).
func WithKV(kv core.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithNamespace sets the key namespace of the redis engine.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Writes to the fs engine return core.ErrReadOnly.
// 2. The data directory is never created.
// 3. The dev sandbox is bypassed (the real path is read).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist ensures the data directory already exists.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces file-based engines into a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default (true), relative data paths are redirected into a temporary
// directory to prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithEventBuffer sets the buffer of the service watch channel.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithBackup enables remote backup with the given client and token source.
func WithBackup(client core.BackupClient, tokens core.TokenSource) Option {
	return func(o *options) {
		o.backup = client
		o.tokens = tokens
	}
}

// WithNotifier routes user-visible notices.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithWatcherErrorHandler registers a callback for runtime failures of the
// fs watcher (e.g. permission denied), which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
