package engine

import (
	"github.com/bianoble/repo-mirror/internal/cache"
	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/descriptor"
	"github.com/bianoble/repo-mirror/internal/reconcile"
)

// InfoResult holds tool and repository information for the info command.
type InfoResult struct {
	Version     string
	ConfigPath  string
	RepoPath    string
	Mode        string
	Arch        string
	StatePath   string
	Descriptor  string
	CatalogRefs []string
	CacheDir    string
	CacheSize   int64
	Remotes     []RemoteInfo
}

// RemoteInfo describes a configured remote.
type RemoteInfo struct {
	Name       string
	URL        string
	CatalogURL string
}

// Info gathers tool information. c may be nil.
func Info(version string, cfg *config.Config, c *cache.Cache, configPath string) *InfoResult {
	repo := cfg.Repository
	r := &InfoResult{
		Version:     version,
		ConfigPath:  configPath,
		RepoPath:    repo.Path,
		Mode:        repo.Mode,
		Arch:        repo.Arch,
		StatePath:   repo.StatePath(),
		Descriptor:  repo.Name + descriptor.Extension,
		CatalogRefs: []string{reconcile.LegacyCatalogRef(repo.Arch), reconcile.CurrentCatalogRef(repo.Arch)},
	}

	if c != nil {
		r.CacheDir = c.Path()
		if size, err := c.Size(); err == nil {
			r.CacheSize = size
		}
	}

	for _, rm := range cfg.Remotes {
		r.Remotes = append(r.Remotes, RemoteInfo{
			Name:       rm.Name,
			URL:        rm.URL,
			CatalogURL: rm.CatalogURLFor(repo.Arch),
		})
	}
	return r
}
