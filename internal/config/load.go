package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigError is a fatal configuration problem. The pass stops before any
// store interaction.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads path on top of Default and validates the result. Files ending
// in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, isTOML bool) (*Config, error) {
	cfg := Default()
	if isTOML {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parsing toml: unknown field(s) %s", strings.Join(keys, ", "))
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// Check validates cfg after overrides were applied.
func Check(cfg *Config) error {
	if errs := Validate(cfg); len(errs) > 0 {
		return &ConfigError{Err: &ValidationError{Errors: errs}}
	}
	return nil
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", cfg.Version))
	}

	repo := cfg.Repository
	if repo.Path == "" {
		errs = append(errs, "repository: 'path' is required")
	}
	if !validMode(repo.Mode) {
		errs = append(errs, fmt.Sprintf("repository: invalid mode '%s', must be one of: %s", repo.Mode, strings.Join(Modes, ", ")))
	}
	if repo.Arch == "" || strings.Contains(repo.Arch, "/") {
		errs = append(errs, fmt.Sprintf("repository: invalid arch '%s'", repo.Arch))
	}
	if repo.Name == "" || strings.ContainsAny(repo.Name, `/\`) {
		errs = append(errs, fmt.Sprintf("repository: invalid name '%s', must be a plain file name", repo.Name))
	}
	if repo.Title == "" {
		errs = append(errs, "repository: 'title' is required")
	}
	if repo.URL != "" && !validURL(repo.URL) {
		errs = append(errs, fmt.Sprintf("repository: invalid url '%s'", repo.URL))
	}
	if repo.StateFile == "" {
		errs = append(errs, "repository: 'state_file' is required")
	}

	if cfg.Mirror.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("mirror: concurrency must be at least 1, got %d", cfg.Mirror.Concurrency))
	}
	if cfg.Mirror.MaxPerRemote < 0 {
		errs = append(errs, fmt.Sprintf("mirror: max_per_remote must not be negative, got %d", cfg.Mirror.MaxPerRemote))
	}
	if _, err := cfg.Mirror.Timeout(); err != nil {
		errs = append(errs, "mirror: "+err.Error())
	}

	if len(cfg.Remotes) == 0 {
		errs = append(errs, "at least one remote is required")
	}
	names := make(map[string]bool)
	for i, r := range cfg.Remotes {
		prefix := fmt.Sprintf("remote[%d]", i)
		if r.Name != "" {
			prefix = fmt.Sprintf("remote '%s'", r.Name)
		}

		switch {
		case r.Name == "":
			errs = append(errs, prefix+": 'name' is required")
		case strings.ContainsAny(r.Name, ":/ "):
			errs = append(errs, fmt.Sprintf("%s: name must not contain ':', '/' or spaces", prefix))
		case names[r.Name]:
			errs = append(errs, fmt.Sprintf("%s: duplicate remote name '%s'", prefix, r.Name))
		default:
			names[r.Name] = true
		}

		if r.URL == "" {
			errs = append(errs, prefix+": 'url' is required")
		} else if !validURL(r.URL) {
			errs = append(errs, fmt.Sprintf("%s: invalid url '%s'", prefix, r.URL))
		}
		if r.CatalogURL != "" && !validURL(r.CatalogURL) {
			errs = append(errs, fmt.Sprintf("%s: invalid catalog_url '%s'", prefix, r.CatalogURL))
		}
	}

	return errs
}

func validMode(mode string) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "file":
		return u.Path != ""
	}
	return false
}
