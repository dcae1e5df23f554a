// Package state persists the record of the last mirroring pass so that
// status can be reported without touching the store.
package state

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bianoble/repo-mirror/internal/mirror"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the pass record's file name inside the repository.
const DefaultFile = "mirror-state.yaml"

// PassRecord is the mirror-state.yaml document.
type PassRecord struct {
	Version        int               `yaml:"version"`
	Started        time.Time         `yaml:"started"`
	Finished       time.Time         `yaml:"finished"`
	Arch           string            `yaml:"arch"`
	Refs           []RefRecord       `yaml:"refs"`
	Mirrored       []string          `yaml:"mirrored"`
	RemoteErrors   []RemoteRecord    `yaml:"remote_errors,omitempty"`
	Stage          string            `yaml:"stage"`
	CatalogCommits map[string]string `yaml:"catalog_commits,omitempty"`
	Warnings       []string          `yaml:"warnings,omitempty"`
}

// RefRecord is the outcome of one ref in the pass.
type RefRecord struct {
	Ref     string `yaml:"ref"`
	Remote  string `yaml:"remote"`
	Commit  string `yaml:"commit,omitempty"`
	Outcome string `yaml:"outcome"`
	Error   string `yaml:"error,omitempty"`
}

// RemoteRecord is a remote whose catalog could not be read.
type RemoteRecord struct {
	Remote string `yaml:"remote"`
	Error  string `yaml:"error"`
}

// Tally counts refs per outcome.
func (r *PassRecord) Tally() map[string]int {
	out := make(map[string]int)
	for _, ref := range r.Refs {
		out[ref.Outcome]++
	}
	return out
}

// Lookup returns the record for ref. When a ref was attempted from several
// remotes the promoted record wins.
func (r *PassRecord) Lookup(ref string) (RefRecord, bool) {
	var found RefRecord
	ok := false
	for _, rec := range r.Refs {
		if rec.Ref != ref {
			continue
		}
		if !ok || rec.Outcome == string(mirror.Promoted) {
			found, ok = rec, true
		}
	}
	return found, ok
}

// Duration returns how long the pass took.
func (r *PassRecord) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Load reads and validates a pass record.
func Load(path string) (*PassRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pass record %s: %w", path, err)
	}

	var rec PassRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing pass record %s: %w", path, err)
	}

	if errs := Validate(&rec); len(errs) > 0 {
		return nil, &ValidationError{Path: path, Errors: errs}
	}
	return &rec, nil
}

// Save writes rec atomically via a temp file and rename. Refs are written in
// the order given; catalog commits are sorted by the encoder.
func Save(path string, rec *PassRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling pass record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp pass record %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp pass record to %s: %w", path, err)
	}
	return nil
}

// ValidationError holds every problem found in a pass record.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pass record %s is invalid:\n  - %s", e.Path, strings.Join(e.Errors, "\n  - "))
}

var knownOutcomes = map[string]bool{
	string(mirror.Promoted):         true,
	string(mirror.PullFailed):       true,
	string(mirror.ResolutionFailed): true,
	string(mirror.PromotionFailed):  true,
}

// Validate returns the problems found in rec, or nil.
func Validate(rec *PassRecord) []string {
	var errs []string

	if rec.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", rec.Version))
	}
	if rec.Arch == "" {
		errs = append(errs, "'arch' is required")
	}

	for i, ref := range rec.Refs {
		prefix := fmt.Sprintf("refs[%d]", i)
		if ref.Ref != "" {
			prefix = fmt.Sprintf("ref '%s'", ref.Ref)
		}
		if ref.Ref == "" {
			errs = append(errs, prefix+": 'ref' is required")
		}
		if ref.Remote == "" {
			errs = append(errs, prefix+": 'remote' is required")
		}
		if !knownOutcomes[ref.Outcome] {
			errs = append(errs, fmt.Sprintf("%s: unknown outcome '%s'", prefix, ref.Outcome))
		}
		if ref.Outcome == string(mirror.Promoted) && !mirror.IsCommit(ref.Commit) {
			errs = append(errs, prefix+": promoted ref has no valid commit")
		}
	}

	return errs
}

// Outcomes returns the outcome names present in a tally, sorted.
func Outcomes(tally map[string]int) []string {
	names := make([]string, 0, len(tally))
	for k := range tally {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
