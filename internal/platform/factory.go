package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/notekeep/pkg/adapters/fs"
	"github.com/aretw0/notekeep/pkg/adapters/memory"
	"github.com/aretw0/notekeep/pkg/adapters/redis"
	"github.com/aretw0/notekeep/pkg/adapters/sqlite"
	"github.com/aretw0/notekeep/pkg/core"
	"github.com/aretw0/notekeep/pkg/store"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterMemory = "memory"
	AdapterRedis  = "redis"
	AdapterSQLite = "sqlite"
)

// New wires a service on top of the engine selected by the options.
// The URI argument is adapter-specific: a directory for "fs", a database
// file for "sqlite", a redis:// URL for "redis".
//
//	svc, err := platform.New("./notes", platform.WithAdapter("fs"))
func New(uri string, opts ...Option) (*core.Service, error) {
	o := applyOptions(opts)

	s := o.store
	if s == nil {
		kv, err := openKV(uri, o)
		if err != nil {
			return nil, err
		}
		s = store.New(kv, store.WithLogger(o.logger))
	}

	svcOpts := []core.ServiceOption{
		core.WithLogger(o.logger),
		core.WithEventBuffer(o.eventBuffer),
	}
	if o.notifier != nil {
		svcOpts = append(svcOpts, core.WithNotifier(o.notifier))
	}
	if o.backup != nil {
		svcOpts = append(svcOpts, core.WithBackup(o.backup, o.tokens))
	}
	return core.NewService(s, svcOpts...), nil
}

// OpenKV opens the engine selected by the options without building a service.
func OpenKV(uri string, opts ...Option) (core.KV, error) {
	return openKV(uri, applyOptions(opts))
}

// DetectAdapter guesses the engine from the shape of uri.
func DetectAdapter(uri string) string {
	switch {
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"), strings.HasPrefix(uri, "unix://"):
		return AdapterRedis
	case uri == ":memory:":
		return AdapterMemory
	case sqlite.IsDatabaseFile(uri):
		return AdapterSQLite
	}
	return AdapterFS
}

func openKV(uri string, o *options) (core.KV, error) {
	if o.kv != nil {
		return o.kv, nil
	}

	adapter := o.adapter
	if adapter == "" {
		adapter = DetectAdapter(uri)
	}

	switch adapter {
	case AdapterMemory:
		return memory.New(), nil
	case AdapterFS:
		return openFS(uri, o)
	case AdapterSQLite:
		path := resolvePath(uri, o)
		if !sqlite.IsDatabaseFile(path) {
			path = filepath.Join(path, sqlite.DefaultFile)
		}
		return sqlite.Open(path)
	case AdapterRedis:
		var ropts []redis.Option
		if o.namespace != "" {
			ropts = append(ropts, redis.WithNamespace(o.namespace))
		}
		return redis.Connect(uri, ropts...)
	}
	return nil, fmt.Errorf("unknown adapter: %s", adapter)
}

// resolvePath applies the dev sandbox to file-based engines.
func resolvePath(path string, o *options) string {
	// Read-only access is inherently safe, so it bypasses the sandbox.
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	resolved := ResolveDataPath(path, useTemp)

	if IsDevRun() {
		switch {
		case bypassSafety && o.readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if useTemp && resolved != filepath.Clean(path) {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

func openFS(path string, o *options) (core.KV, error) {
	kv := fs.New(fs.Config{
		Path:         resolvePath(path, o),
		ReadOnly:     o.readOnly,
		MustExist:    o.mustExist,
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
	})
	if err := kv.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return kv, nil
}
