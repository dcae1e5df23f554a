// Package engine runs a complete mirroring pass: store setup, mirroring,
// metadata reconciliation, the repo descriptor and the pass record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/descriptor"
	"github.com/bianoble/repo-mirror/internal/mirror"
	"github.com/bianoble/repo-mirror/internal/reconcile"
	"github.com/bianoble/repo-mirror/internal/state"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
)

// PassEngine wires the mirroring components for one store.
type PassEngine struct {
	Store   store.Store
	Fetcher mirror.CatalogFetcher
	Logger  zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// PassReport is the user-visible summary of a pass.
type PassReport struct {
	Started  time.Time
	Finished time.Time

	Results      []mirror.MirrorResult
	Counts       mirror.Counts
	Mirrored     []string
	RemoteErrors []mirror.RemoteError
	Advisories   []mirror.Advisory

	// Reconcile is nil when the pass was interrupted before reconciliation.
	Reconcile *reconcile.Report

	Descriptor    string
	DescriptorErr error

	StatePath string
	StateErr  error
}

// Warnings collects every non-fatal problem worth showing the user.
func (r *PassReport) Warnings() []string {
	var out []string
	for _, re := range r.RemoteErrors {
		out = append(out, "remote skipped: "+re.Error())
	}
	if r.Reconcile != nil {
		if r.Reconcile.Err != nil {
			out = append(out, "metadata reconciliation failed: "+r.Reconcile.Err.Error())
		}
		out = append(out, r.Reconcile.Warnings...)
	}
	if r.DescriptorErr != nil {
		out = append(out, "repo descriptor not written: "+r.DescriptorErr.Error())
	}
	if r.StateErr != nil {
		out = append(out, "pass record not written: "+r.StateErr.Error())
	}
	return out
}

// Run performs one pass. Only store initialization failures and
// cancellation are returned as errors; every per-ref and metadata failure is in the report.
// On cancellation the report covers the work done so far and metadata is
// left untouched.
func (e *PassEngine) Run(ctx context.Context, cfg *config.Config) (*PassReport, error) {
	report := &PassReport{Started: e.now()}
	repo := cfg.Repository

	if err := e.Store.Init(ctx, repo.Mode); err != nil {
		return nil, asInitError(e.Store.Path(), err)
	}

	// A remote that cannot be registered is skipped like one whose catalog
	// cannot be fetched.
	var skipped []mirror.RemoteError
	remotes := make([]mirror.Remote, 0, len(cfg.Remotes))
	for _, r := range cfg.Remotes {
		err := e.Store.AddRemote(ctx, store.Remote{
			Name:         r.Name,
			URL:          r.URL,
			CollectionID: r.CollectionID,
			GPGVerify:    r.GPGVerify,
		})
		if err != nil {
			e.Logger.Error().Err(err).Str("remote", r.Name).Msg("remote registration failed, skipping remote")
			skipped = append(skipped, mirror.RemoteError{Remote: r.Name, Err: fmt.Errorf("registering remote: %w", err)})
			continue
		}
		remotes = append(remotes, mirror.Remote{
			Name:         r.Name,
			CatalogURL:   r.CatalogURLFor(repo.Arch),
			CollectionID: r.CollectionID,
		})
	}

	writer := &sync.Mutex{}
	orch := &mirror.Orchestrator{
		Store:    e.Store,
		Resolver: &mirror.Resolver{Store: e.Store, Logger: e.Logger},
		Promoter: &mirror.Promoter{Store: e.Store, Logger: e.Logger},
		Fetcher:  e.Fetcher,
		Writer:   writer,
		Logger:   e.Logger,
	}

	run, runErr := orch.Run(ctx, remotes, mirror.Options{
		Arch:         repo.Arch,
		MaxPerRemote: cfg.Mirror.MaxPerRemote,
		Concurrency:  cfg.Mirror.Concurrency,
	})
	report.Results = run.Results
	report.Counts = mirror.Count(run.Results)
	report.RemoteErrors = append(skipped, run.RemoteErrors...)
	report.Advisories = run.Advisories
	for _, c := range run.Mirrored {
		report.Mirrored = append(report.Mirrored, c.ID)
	}

	if runErr == nil {
		rec := &reconcile.Reconciler{
			Store:            e.Store,
			Arch:             repo.Arch,
			Origin:           repo.Name,
			IntegratedUpdate: repo.IntegratedUpdate,
			UpdateCatalog:    repo.UpdateCatalog,
			Metadata: reconcile.Metadata{
				Title:    repo.Title,
				Comment:  repo.Comment,
				Homepage: repo.Homepage,
			},
			Writer: writer,
			Logger: e.Logger,
		}
		report.Reconcile = rec.Reconcile(ctx, run.Mirrored)
		report.Descriptor, report.DescriptorErr = e.writeDescriptor(repo)
	}

	report.Finished = e.now()
	report.StatePath = repo.StatePath()
	report.StateErr = state.Save(report.StatePath, record(repo.Arch, report))
	if report.StateErr != nil {
		e.Logger.Warn().Err(report.StateErr).Msg("pass record not saved")
	}

	e.Logger.Info().
		Int("promoted", report.Counts.Promoted).
		Int("failed", report.Counts.Failed()).
		Int("mirrored", len(report.Mirrored)).
		Msg("pass finished")

	return report, runErr
}

func (e *PassEngine) writeDescriptor(repo config.Repository) (string, error) {
	d := descriptor.Descriptor{
		Name:     repo.Name,
		Title:    repo.Title,
		URL:      repo.PublicURL(),
		Comment:  repo.Comment,
		Homepage: repo.Homepage,
	}
	if repo.GPGKeyFile != "" {
		key, err := os.ReadFile(repo.GPGKeyFile)
		if err != nil {
			return "", fmt.Errorf("reading gpg key: %w", err)
		}
		d.GPGKey = key
	}
	rel, err := descriptor.Write(e.Store.Path(), d)
	if err != nil {
		e.Logger.Warn().Err(err).Msg("repo descriptor not written")
	}
	return rel, err
}

func (e *PassEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func asInitError(path string, err error) error {
	var ie *store.InitError
	if errors.As(err, &ie) {
		return err
	}
	return &store.InitError{Path: path, Err: err}
}

func record(arch string, r *PassReport) *state.PassRecord {
	rec := &state.PassRecord{
		Version:  1,
		Started:  r.Started.UTC(),
		Finished: r.Finished.UTC(),
		Arch:     arch,
		Mirrored: r.Mirrored,
	}
	for _, res := range r.Results {
		ref := state.RefRecord{
			Ref:     res.Ref.String(),
			Remote:  res.Remote,
			Outcome: string(res.Outcome),
		}
		if res.Outcome == mirror.Promoted {
			ref.Commit = res.Commit
		}
		if res.Err != nil {
			ref.Error = res.Err.Error()
		}
		rec.Refs = append(rec.Refs, ref)
	}
	for _, re := range r.RemoteErrors {
		rec.RemoteErrors = append(rec.RemoteErrors, state.RemoteRecord{Remote: re.Remote, Error: re.Err.Error()})
	}
	if r.Reconcile != nil {
		rec.Stage = r.Reconcile.Stage
		rec.Warnings = r.Reconcile.Warnings
		if len(r.Reconcile.CatalogCommits) > 0 {
			rec.CatalogCommits = r.Reconcile.CatalogCommits
		}
	}
	return rec
}

// compile-time check that the catalog fetcher satisfies the orchestrator.
var _ mirror.CatalogFetcher = (*catalog.Fetcher)(nil)
