// Package reconcile brings the repository's published metadata (catalog
// refs and summary) in line with the refs a mirroring pass produced.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/mirror"
	"github.com/bianoble/repo-mirror/internal/sandbox"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
)

// Outcome is what a stage reports back to the ladder.
type Outcome string

const (
	// StageDone ends the ladder.
	StageDone Outcome = "done"
	// StageContinue hands over to the next stage without an error.
	StageContinue Outcome = "continue"
	// StageFailed records the error and hands over to the next stage.
	StageFailed Outcome = "failed"
)

// Summary metadata keys appended when the summary is recomputed explicitly.
const (
	KeyTitle    = "xa.title"
	KeyComment  = "xa.comment"
	KeyHomepage = "xa.homepage"
)

// Stage is one rung of the fallback ladder.
type Stage struct {
	Name string
	Run  func(ctx context.Context, p *Pass) (Outcome, error)
}

// Pass is the state shared by the stages of one Reconcile call.
type Pass struct {
	Mirrored []catalog.Component
	Report   *Report
}

// StageResult records one attempted stage.
type StageResult struct {
	Name    string
	Outcome Outcome
	Err     error
}

// Report describes what reconciliation did.
type Report struct {
	// Stage is the stage that ended the ladder, or the last one attempted.
	Stage  string
	Stages []StageResult

	// CatalogCommits maps catalog ref to the commit written in this pass.
	CatalogCommits map[string]string

	Warnings   []string
	Advisories []mirror.Advisory

	// Err is set when the last attempted stage failed. Promoted refs are
	// unaffected either way.
	Err error
}

// Metadata holds the auxiliary summary values. Empty values are skipped.
type Metadata struct {
	Title    string
	Comment  string
	Homepage string
}

// Reconciler runs the metadata ladder against one store and architecture.
type Reconciler struct {
	Store  store.Store
	Arch   string
	Origin string

	Metadata Metadata

	// IntegratedUpdate enables the all-in-one store update stage.
	IntegratedUpdate bool
	UpdateCatalog    bool

	// Writer must be the mutex that guards ref writes during mirroring.
	Writer *sync.Mutex

	// Stages overrides the ladder. Nil means DefaultStages.
	Stages []Stage

	Logger zerolog.Logger
}

// LegacyCatalogRef is the catalog ref older clients read.
func LegacyCatalogRef(arch string) string { return "appstream/" + arch }

// CurrentCatalogRef is the versioned catalog ref.
func CurrentCatalogRef(arch string) string { return "appstream2/" + arch }

// CatalogRefs returns both catalog refs, legacy first.
func (r *Reconciler) CatalogRefs() []string {
	return []string{LegacyCatalogRef(r.Arch), CurrentCatalogRef(r.Arch)}
}

// StagingDir is the store-relative directory the catalog is assembled in.
func (r *Reconciler) StagingDir() string {
	return path.Join("appstream", r.Arch, "active")
}

// DefaultStages returns the ladder: integrated update, explicit catalog
// commit, explicit summary recompute.
func (r *Reconciler) DefaultStages() []Stage {
	return []Stage{
		{Name: "integrated", Run: r.integratedUpdate},
		{Name: "catalog-commit", Run: r.commitCatalog},
		{Name: "summary", Run: r.updateSummary},
	}
}

// Reconcile writes the catalog for mirrored and reconciles the summary. It
// runs the stages in order until one is done, then verifies that both
// catalog refs exist. Missing refs become warnings.
func (r *Reconciler) Reconcile(ctx context.Context, mirrored []catalog.Component) *Report {
	if r.Writer != nil {
		r.Writer.Lock()
		defer r.Writer.Unlock()
	}

	report := &Report{CatalogCommits: map[string]string{}}
	p := &Pass{Mirrored: mirrored, Report: report}

	stages := r.Stages
	if stages == nil {
		stages = r.DefaultStages()
	}

	var last StageResult
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			last = StageResult{Name: s.Name, Outcome: StageFailed, Err: err}
			report.Stages = append(report.Stages, last)
			break
		}

		outcome, err := s.Run(ctx, p)
		last = StageResult{Name: s.Name, Outcome: outcome, Err: err}
		report.Stages = append(report.Stages, last)

		log := r.Logger.With().Str("stage", s.Name).Str("outcome", string(outcome)).Logger()
		if err != nil {
			log.Warn().Err(err).Msg("reconcile stage")
		} else {
			log.Debug().Msg("reconcile stage")
		}

		if outcome == StageDone {
			break
		}
	}
	report.Stage = last.Name
	if last.Outcome == StageFailed {
		report.Err = last.Err
	}

	r.verify(ctx, report)
	return report
}

func (r *Reconciler) integratedUpdate(ctx context.Context, p *Pass) (Outcome, error) {
	if !r.IntegratedUpdate {
		return StageContinue, nil
	}

	err := r.Store.UpdateRepo(ctx, store.UpdateOptions{UpdateCatalog: r.UpdateCatalog})
	if errors.Is(err, store.ErrUnavailable) {
		r.Logger.Info().Msg("integrated repository update unavailable")
		return StageContinue, nil
	}
	if err != nil {
		return StageFailed, fmt.Errorf("integrated repository update: %w", err)
	}

	refs, err := r.Store.ListRefs(ctx)
	if err != nil {
		return StageContinue, nil
	}
	for _, name := range r.CatalogRefs() {
		if !store.HasRef(refs, name) {
			r.Logger.Info().Str("ref", name).Msg("integrated update left catalog ref missing")
			return StageContinue, nil
		}
	}
	return StageDone, nil
}

// commitCatalog stages the catalog of mirrored components and commits it to
// each catalog ref independently. It fails only if no ref could be written.
func (r *Reconciler) commitCatalog(ctx context.Context, p *Pass) (Outcome, error) {
	xmlData, err := catalog.Encode(r.Origin, r.Arch, p.Mirrored)
	if err != nil {
		return StageFailed, err
	}
	gzData, err := catalog.Compress(xmlData)
	if err != nil {
		return StageFailed, err
	}

	root := r.Store.Path()
	staging := r.StagingDir()
	dir, err := sandbox.ResetDir(root, staging)
	if err != nil {
		return StageFailed, fmt.Errorf("preparing catalog staging: %w", err)
	}
	if err := sandbox.WriteFile(root, path.Join(staging, "appstream.xml"), xmlData, 0644); err != nil {
		return StageFailed, err
	}
	if err := sandbox.WriteFile(root, path.Join(staging, "appstream.xml.gz"), gzData, 0644); err != nil {
		return StageFailed, err
	}

	for _, c := range []struct{ src, dst string }{
		{"appstream.xml", "catalog.xml"},
		{"appstream.xml.gz", "catalog.xml.gz"},
	} {
		dst := path.Join("appstream", r.Arch, c.dst)
		err := sandbox.CopyFile(root, path.Join(staging, c.src), dst)
		p.Report.Advisories = append(p.Report.Advisories, mirror.Advisory{Op: "copy", Target: dst, Err: err})
		if err != nil {
			r.Logger.Warn().Err(err).Str("path", dst).Msg("legacy catalog copy failed")
		}
	}

	subject := fmt.Sprintf("Catalog of %d components", len(p.Mirrored))
	var errs []error
	for _, branch := range r.CatalogRefs() {
		commit, err := r.Store.CommitTree(ctx, branch, subject, dir)
		if err != nil {
			r.Logger.Warn().Err(err).Str("ref", branch).Msg("catalog commit failed")
			errs = append(errs, fmt.Errorf("committing %s: %w", branch, err))
			continue
		}
		p.Report.CatalogCommits[branch] = commit
		r.Logger.Info().Str("ref", branch).Str("commit", commit).Msg("catalog committed")
	}

	if len(p.Report.CatalogCommits) == 0 {
		return StageFailed, errors.Join(errs...)
	}
	// The ref list changed, so the summary stage still has to run.
	return StageContinue, errors.Join(errs...)
}

func (r *Reconciler) updateSummary(ctx context.Context, p *Pass) (Outcome, error) {
	if err := r.Store.UpdateSummary(ctx); err != nil {
		return StageFailed, fmt.Errorf("updating summary: %w", err)
	}

	for _, kv := range []struct{ key, value string }{
		{KeyTitle, r.Metadata.Title},
		{KeyComment, r.Metadata.Comment},
		{KeyHomepage, r.Metadata.Homepage},
	} {
		if kv.value == "" {
			continue
		}
		err := r.Store.AddSummaryMetadata(ctx, kv.key, kv.value)
		p.Report.Advisories = append(p.Report.Advisories, mirror.Advisory{Op: "summary-metadata", Target: kv.key, Err: err})
		if err != nil {
			r.Logger.Warn().Err(err).Str("key", kv.key).Msg("summary metadata not written")
		}
	}
	return StageDone, nil
}

func (r *Reconciler) verify(ctx context.Context, report *Report) {
	refs, err := r.Store.ListRefs(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("could not list refs for verification: %s", err))
		return
	}
	for _, name := range r.CatalogRefs() {
		if !store.HasRef(refs, name) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("catalog ref %s is missing", name))
		}
	}
}
