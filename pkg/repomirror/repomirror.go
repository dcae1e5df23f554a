// Package repomirror provides the public Go library API for repo-mirror.
//
// repo-mirror mirrors application refs from remote package repositories
// into a local repository and keeps its catalog and summary consistent
// with what was actually mirrored.
//
// # Basic Usage
//
//	client, err := repomirror.New(repomirror.Options{
//	    ConfigPath: "repo-mirror.yaml",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := client.Mirror(ctx)
//	fmt.Println(report.Counts.Promoted, "refs promoted")
package repomirror

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bianoble/repo-mirror/internal/cache"
	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/engine"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
)

// Options configures a Client.
type Options struct {
	// ConfigPath is the config file. Default: "repo-mirror.yaml".
	ConfigPath string

	// CacheDir holds fetched catalogs. Empty means mirror.cache_dir from
	// the config, then the user cache directory.
	CacheDir string

	// Overrides replace config values, as the CLI flags do.
	RepoPath     string
	Arch         string
	MaxPerRemote *int
	Concurrency  *int

	// Store replaces the ostree-backed store. Mostly useful in tests.
	Store Store

	// HTTPClient fetches catalogs. Default: http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Client runs mirroring passes for one configuration.
type Client struct {
	cfg        *config.Config
	configPath string
	cache      *cache.Cache
	store      store.Store
	fetcher    *catalog.Fetcher
	logger     zerolog.Logger
}

// New loads and validates the configuration and prepares the store and
// catalog cache. Configuration problems are returned as *ConfigError.
func New(opts Options) (*Client, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultFileName
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Apply(config.Overrides{
		Path:         opts.RepoPath,
		Arch:         opts.Arch,
		MaxPerRemote: opts.MaxPerRemote,
		Concurrency:  opts.Concurrency,
	})
	if err := config.Check(cfg); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = cfg.Mirror.CacheDir
	}
	if cacheDir == "" {
		cacheDir = cache.DefaultDir()
	}
	c, err := cache.New(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}

	timeout, _ := cfg.Mirror.Timeout()
	fetcher := &catalog.Fetcher{
		Cache:   c,
		MaxSize: cfg.Mirror.MaxCatalogSize,
		Timeout: timeout,
		Logger:  logger,
	}
	if opts.HTTPClient != nil {
		fetcher.Client = opts.HTTPClient
	}

	s := opts.Store
	if s == nil {
		s = store.NewOSTree(cfg.Repository.Path)
	}

	return &Client{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		cache:      c,
		store:      s,
		fetcher:    fetcher,
		logger:     logger,
	}, nil
}

// Config returns the effective configuration, overrides applied.
func (c *Client) Config() *Config {
	return c.cfg
}

// Mirror runs one full pass. The error is non-nil only for store setup
// failures (*InitError) and cancellation; per-ref failures are in the
// report.
func (c *Client) Mirror(ctx context.Context) (*PassReport, error) {
	eng := &engine.PassEngine{
		Store:   c.store,
		Fetcher: c.fetcher,
		Logger:  c.logger,
	}
	return eng.Run(ctx, c.cfg)
}

// Status reports the last recorded pass.
func (c *Client) Status() (*StatusResult, error) {
	return engine.Status(c.cfg)
}

// Info describes the configuration, repository layout and cache.
func (c *Client) Info(version string) *InfoResult {
	return engine.Info(version, c.cfg, c.cache, c.configPath)
}
