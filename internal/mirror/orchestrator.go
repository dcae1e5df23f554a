package mirror

import (
	"context"
	"sync"

	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/ref"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CatalogFetcher returns the decoded component catalog published at url.
type CatalogFetcher interface {
	Fetch(ctx context.Context, url string) ([]catalog.Component, error)
}

// Remote is an upstream the orchestrator mirrors from.
type Remote struct {
	Name         string
	CatalogURL   string
	CollectionID string
}

// Options configures a mirroring run.
type Options struct {
	Arch         string
	MaxPerRemote int // 0 = all components
	Concurrency  int // concurrent pulls; values below 1 mean 1
}

// RunResult holds the outcome of a mirroring run.
type RunResult struct {
	// Results has one entry per attempted ref, in derivation order: remotes
	// in configured order, components in catalog order, app before runtime.
	Results []MirrorResult

	// Mirrored lists the components whose app ref was promoted.
	Mirrored []catalog.Component

	RemoteErrors []RemoteError
	Advisories   []Advisory
}

// Orchestrator drives pull, resolve and promote for every ref of every
// component of every remote. A failure for one ref never stops the others.
type Orchestrator struct {
	Store    store.Store
	Resolver *Resolver
	Promoter *Promoter
	Fetcher  CatalogFetcher

	// Writer serializes ref writes. Share it with anything else that
	// updates refs or the summary of the same store.
	Writer *sync.Mutex

	Logger zerolog.Logger
}

type job struct {
	remote    Remote
	component int
	ref       ref.PackageRef
}

// Run mirrors all remotes. Pulls run on a bounded worker pool; resolution,
// promotion and cleanup run one at a time under Writer. The returned error
// is non-nil only if ctx was cancelled; results gathered so far are still
// returned and already-promoted refs stay valid.
func (o *Orchestrator) Run(ctx context.Context, remotes []Remote, opts Options) (*RunResult, error) {
	result := &RunResult{}

	var components []catalog.Component
	var jobs []job
	for _, remote := range remotes {
		list, err := o.Fetcher.Fetch(ctx, remote.CatalogURL)
		if err != nil {
			o.Logger.Error().Err(err).Str("remote", remote.Name).Msg("catalog unavailable, skipping remote")
			result.RemoteErrors = append(result.RemoteErrors, RemoteError{Remote: remote.Name, Err: err})
			continue
		}
		if opts.MaxPerRemote > 0 && len(list) > opts.MaxPerRemote {
			list = list[:opts.MaxPerRemote]
		}
		o.Logger.Info().Str("remote", remote.Name).Int("components", len(list)).Msg("catalog loaded")

		for _, c := range list {
			idx := len(components)
			components = append(components, c)
			for _, r := range DeriveRefs(c, opts.Arch) {
				jobs = append(jobs, job{remote: remote, component: idx, ref: r})
			}
		}
	}

	writer := o.Writer
	if writer == nil {
		writer = &sync.Mutex{}
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]MirrorResult, len(jobs))
	advisories := make([][]Advisory, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i], advisories[i] = o.process(ctx, writer, j, components[j.component].ID)
			return nil
		})
	}
	_ = g.Wait()

	appPromoted := make(map[int]bool)
	for i, j := range jobs {
		if j.ref.Kind == ref.KindApp && results[i].Outcome == Promoted {
			appPromoted[j.component] = true
		}
		result.Advisories = append(result.Advisories, advisories[i]...)
	}
	for idx, c := range components {
		if appPromoted[idx] {
			result.Mirrored = append(result.Mirrored, c)
		}
	}
	result.Results = results

	return result, ctx.Err()
}

func (o *Orchestrator) process(ctx context.Context, writer *sync.Mutex, j job, componentID string) (MirrorResult, []Advisory) {
	res := MirrorResult{Remote: j.remote.Name, Component: componentID, Ref: j.ref}
	log := o.Logger.With().Str("remote", j.remote.Name).Str("ref", j.ref.String()).Logger()

	if err := ctx.Err(); err != nil {
		res.Outcome, res.Err = PullFailed, err
		return res, nil
	}

	log.Debug().Msg("pulling")
	if err := o.Store.Pull(ctx, j.remote.Name, j.ref.String()); err != nil {
		log.Warn().Err(err).Msg("pull failed")
		res.Outcome, res.Err = PullFailed, err
		return res, nil
	}

	writer.Lock()
	defer writer.Unlock()

	commit, err := o.Resolver.Resolve(ctx, j.remote.Name, j.remote.CollectionID, j.ref)
	if err != nil {
		log.Warn().Err(err).Msg("resolution failed")
		res.Outcome, res.Err = ResolutionFailed, err
		return res, nil
	}

	if err := o.Promoter.Promote(ctx, j.ref, commit); err != nil {
		log.Warn().Err(err).Msg("promotion failed")
		res.Outcome, res.Err, res.Commit = PromotionFailed, err, commit
		return res, nil
	}

	advisories := o.Promoter.Cleanup(ctx, j.remote.Name, j.remote.CollectionID, j.ref)

	log.Info().Str("commit", commit).Msg("promoted")
	res.Outcome, res.Commit = Promoted, commit
	return res, advisories
}
