package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notekeep/pkg/adapters/drive"
	"github.com/aretw0/notekeep/pkg/adapters/s3"
	"github.com/aretw0/notekeep/pkg/core"
)

// DefaultTokenEnv is the environment variable holding the backup token.
const DefaultTokenEnv = "NOTEKEEP_TOKEN"

// Config is the content of notekeep.yaml.
type Config struct {
	Adapter     string       `yaml:"adapter"`
	Path        string       `yaml:"path"`
	ReadOnly    bool         `yaml:"read_only"`
	EventBuffer int          `yaml:"event_buffer"`
	Redis       RedisConfig  `yaml:"redis"`
	Backup      BackupConfig `yaml:"backup"`
}

// RedisConfig configures the redis engine.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// BackupConfig selects and configures the remote backup provider.
type BackupConfig struct {
	Provider string      `yaml:"provider"` // "drive", "s3" or empty (disabled)
	TokenEnv string      `yaml:"token_env"`
	Drive    DriveConfig `yaml:"drive"`
	S3       S3Config    `yaml:"s3"`
}

// DriveConfig overrides the Drive endpoint, mostly for testing.
type DriveConfig struct {
	Endpoint string `yaml:"endpoint"`
	FileName string `yaml:"file_name"`
}

// S3Config holds the object store settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LoadConfig reads a configuration file. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Path != "" && !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(filepath.Dir(path), cfg.Path)
	}
	return &cfg, nil
}

// FindConfig looks upwards from startDir for a root holding notekeep.yaml.
// ok is false when no root or no file exists.
func FindConfig(startDir string) (cfg *Config, ok bool, err error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return nil, false, nil
	}
	path := filepath.Join(root, ConfigFile)
	if !exists(path) {
		return nil, false, nil
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// URI returns the engine location described by the config.
func (c *Config) URI() string {
	if c.Adapter == "redis" || (c.Adapter == "" && c.Redis.URL != "") {
		return c.Redis.URL
	}
	return c.Path
}

// Options converts the config into factory options. Explicit options given
// after these take precedence.
func (c *Config) Options(logger *slog.Logger) ([]Option, error) {
	opts := []Option{
		WithAdapter(c.Adapter),
		WithReadOnly(c.ReadOnly),
		WithEventBuffer(c.EventBuffer),
	}
	if c.Redis.Namespace != "" {
		opts = append(opts, WithNamespace(c.Redis.Namespace))
	}
	client, err := c.Backup.Client(logger)
	if err != nil {
		return nil, err
	}
	if client != nil {
		opts = append(opts, WithBackup(client, c.Backup.Tokens()))
	}
	return opts, nil
}

// Client builds the configured backup client, or nil when backup is disabled.
func (b BackupConfig) Client(logger *slog.Logger) (core.BackupClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch b.Provider {
	case "":
		return nil, nil
	case "drive":
		opts := []drive.Option{drive.WithLogger(logger)}
		if b.Drive.Endpoint != "" {
			opts = append(opts, drive.WithEndpoint(b.Drive.Endpoint))
		}
		if b.Drive.FileName != "" {
			opts = append(opts, drive.WithFileName(b.Drive.FileName))
		}
		return drive.New(opts...), nil
	case "s3":
		return s3.New(s3.Config{
			Bucket:          b.S3.Bucket,
			Key:             b.S3.Key,
			Region:          b.S3.Region,
			Endpoint:        b.S3.Endpoint,
			PathStyle:       b.S3.PathStyle,
			AccessKeyID:     b.S3.AccessKeyID,
			SecretAccessKey: b.S3.SecretAccessKey,
			Logger:          logger,
		})
	}
	return nil, fmt.Errorf("unknown backup provider: %s", b.Provider)
}

// Tokens returns the token source reading the configured variable.
func (b BackupConfig) Tokens() core.TokenSource {
	if b.TokenEnv == "" {
		return EnvToken(DefaultTokenEnv)
	}
	return EnvToken(b.TokenEnv)
}

// EnvToken reads the backup token from the named environment variable.
type EnvToken string

// Token implements core.TokenSource.
func (e EnvToken) Token(context.Context) (string, error) {
	return os.Getenv(string(e)), nil
}
