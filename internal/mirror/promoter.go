package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bianoble/repo-mirror/internal/ref"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
)

// Promoter turns a resolved commit into a durable local ref and removes the
// transient artifacts the pull left behind.
type Promoter struct {
	Store   store.Store
	Layouts []CandidateLayout // nil means DefaultLayouts
	Logger  zerolog.Logger
}

// Promote force-creates the local ref named after pref so that it points at
// commit. Repeating it with the same commit leaves the ref unchanged.
func (p *Promoter) Promote(ctx context.Context, pref ref.PackageRef, commit string) error {
	if err := p.Store.CreateRef(ctx, pref.String(), commit); err != nil {
		return fmt.Errorf("promoting %s to %s: %w", pref, commit, err)
	}
	return nil
}

// Cleanup removes every candidate transient file for pref and the
// remote-qualified ref-spec. Artifacts that are already gone are not
// failures. Nothing here affects published refs.
func (p *Promoter) Cleanup(ctx context.Context, remote, collectionID string, pref ref.PackageRef) []Advisory {
	layouts := p.Layouts
	if layouts == nil {
		layouts = DefaultLayouts
	}

	var advisories []Advisory
	for _, rel := range candidatePaths(layouts, remote, collectionID, pref) {
		full := filepath.Join(p.Store.Path(), filepath.FromSlash(rel))
		err := os.Remove(full)
		if os.IsNotExist(err) {
			continue
		}
		advisories = append(advisories, Advisory{Op: "remove", Target: rel, Err: err})
	}

	spec := Refspecs(remote, pref)[0]
	advisories = append(advisories, Advisory{Op: "delete-ref", Target: spec, Err: p.Store.DeleteRef(ctx, spec)})

	for _, a := range advisories {
		if a.Err != nil {
			p.Logger.Debug().Str("op", a.Op).Str("target", a.Target).Err(a.Err).Msg("cleanup skipped")
		}
	}
	return advisories
}
