package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "repo-mirror.yaml"

// Config is the repo-mirror configuration document. Every field carries
// both yaml and toml tags; the file extension selects the format.
type Config struct {
	Version    int        `yaml:"version" toml:"version"`
	Repository Repository `yaml:"repository" toml:"repository"`
	Mirror     Mirror     `yaml:"mirror" toml:"mirror"`
	Remotes    []Remote   `yaml:"remotes" toml:"remotes"`
}

// Repository describes the local store and how it is published.
type Repository struct {
	Path string `yaml:"path" toml:"path"`
	Mode string `yaml:"mode" toml:"mode"`
	Arch string `yaml:"arch" toml:"arch"`

	// Name is the descriptor file name without extension.
	Name     string `yaml:"name" toml:"name"`
	Title    string `yaml:"title" toml:"title"`
	Comment  string `yaml:"comment,omitempty" toml:"comment"`
	Homepage string `yaml:"homepage,omitempty" toml:"homepage"`

	// URL is where clients reach the repository. Empty means a file URL
	// of Path.
	URL        string `yaml:"url,omitempty" toml:"url"`
	GPGKeyFile string `yaml:"gpg_key_file,omitempty" toml:"gpg_key_file"`

	IntegratedUpdate bool `yaml:"integrated_update" toml:"integrated_update"`
	UpdateCatalog    bool `yaml:"update_catalog" toml:"update_catalog"`

	// StateFile is the pass record, relative to Path unless absolute.
	StateFile string `yaml:"state_file" toml:"state_file"`
}

// Mirror tunes the mirroring pass.
type Mirror struct {
	Concurrency    int    `yaml:"concurrency" toml:"concurrency"`
	MaxPerRemote   int    `yaml:"max_per_remote" toml:"max_per_remote"`
	CacheDir       string `yaml:"cache_dir,omitempty" toml:"cache_dir"`
	FetchTimeout   string `yaml:"fetch_timeout" toml:"fetch_timeout"`
	MaxCatalogSize int64  `yaml:"max_catalog_size" toml:"max_catalog_size"`
}

// Remote is an upstream repository to mirror from.
type Remote struct {
	Name         string `yaml:"name" toml:"name"`
	URL          string `yaml:"url" toml:"url"`
	CatalogURL   string `yaml:"catalog_url,omitempty" toml:"catalog_url"`
	CollectionID string `yaml:"collection_id,omitempty" toml:"collection_id"`
	GPGVerify    bool   `yaml:"gpg_verify" toml:"gpg_verify"`
}

// CatalogURLFor returns the remote's catalog location for arch.
func (r Remote) CatalogURLFor(arch string) string {
	if r.CatalogURL != "" {
		return r.CatalogURL
	}
	return strings.TrimRight(r.URL, "/") + "/appstream/" + arch + "/appstream.xml.gz"
}

// StatePath returns the absolute-or-relative path of the pass record.
func (r Repository) StatePath() string {
	if filepath.IsAbs(r.StateFile) {
		return r.StateFile
	}
	return filepath.Join(r.Path, r.StateFile)
}

// PublicURL returns URL, or a file URL of the repository path.
func (r Repository) PublicURL() string {
	if r.URL != "" {
		return r.URL
	}
	abs, err := filepath.Abs(r.Path)
	if err != nil {
		abs = r.Path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// Timeout parses FetchTimeout. Empty means no timeout.
func (m Mirror) Timeout() (time.Duration, error) {
	if m.FetchTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch_timeout '%s': %w", m.FetchTimeout, err)
	}
	return d, nil
}

// Modes lists the accepted repository modes.
var Modes = []string{"archive-z2", "archive", "bare", "bare-user"}

// DefaultArch maps the host architecture to its package arch name.
func DefaultArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return runtime.GOARCH
	}
}

// Default returns a configuration with every optional field set. Files are
// decoded on top of it.
func Default() *Config {
	return &Config{
		Version: 1,
		Repository: Repository{
			Path:             "repo",
			Mode:             "archive-z2",
			Arch:             DefaultArch(),
			Name:             "repo-mirror",
			Title:            "Repo Mirror",
			IntegratedUpdate: true,
			UpdateCatalog:    true,
			StateFile:        "mirror-state.yaml",
		},
		Mirror: Mirror{
			Concurrency:    4,
			FetchTimeout:   "60s",
			MaxCatalogSize: 256 << 20,
		},
	}
}

// Overrides are command-line values that replace file settings. Nil
// pointers and empty strings leave the file value alone.
type Overrides struct {
	Path         string
	Arch         string
	MaxPerRemote *int
	Concurrency  *int
}

// Apply copies the set overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.Path != "" {
		c.Repository.Path = o.Path
	}
	if o.Arch != "" {
		c.Repository.Arch = o.Arch
	}
	if o.MaxPerRemote != nil {
		c.Mirror.MaxPerRemote = *o.MaxPerRemote
	}
	if o.Concurrency != nil {
		c.Mirror.Concurrency = *o.Concurrency
	}
}
