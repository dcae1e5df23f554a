package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bianoble/repo-mirror/internal/ref"
	"github.com/bianoble/repo-mirror/internal/store"
	"github.com/rs/zerolog"
)

// Resolver locates the commit a pull produced for a ref.
type Resolver struct {
	Store   store.Store
	Layouts []CandidateLayout // nil means DefaultLayouts
	Logger  zerolog.Logger
}

// Resolve tries, in order: a scan of the transient mirror namespace, the
// candidate layouts, and direct rev-parse queries. It returns an error
// wrapping ErrCommitNotFound when every strategy fails.
func (r *Resolver) Resolve(ctx context.Context, remote, collectionID string, pref ref.PackageRef) (string, error) {
	root := r.Store.Path()
	log := r.Logger.With().Str("remote", remote).Str("ref", pref.String()).Logger()

	scanRoot := filepath.Join(root, filepath.FromSlash(MirrorsDir))
	if info, err := os.Stat(scanRoot); err == nil && info.IsDir() {
		if commit, found := scanMirrors(scanRoot, pref); found {
			log.Debug().Str("strategy", "scan").Str("commit", commit).Msg("resolved")
			return commit, nil
		}

		for _, rel := range candidatePaths(r.layouts(), remote, collectionID, pref) {
			commit, found := readCommitFile(filepath.Join(root, filepath.FromSlash(rel)))
			if found {
				log.Debug().Str("strategy", "candidate").Str("path", rel).Str("commit", commit).Msg("resolved")
				return commit, nil
			}
		}
	}

	var lastErr error
	for _, spec := range Refspecs(remote, pref) {
		commit, err := r.Store.RevParse(ctx, spec)
		if err == nil && commit != "" {
			log.Debug().Str("strategy", "rev-parse").Str("refspec", spec).Str("commit", commit).Msg("resolved")
			return commit, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("%s from %s: %w (last query: %v)", pref, remote, ErrCommitNotFound, lastErr)
	}
	return "", fmt.Errorf("%s from %s: %w", pref, remote, ErrCommitNotFound)
}

func (r *Resolver) layouts() []CandidateLayout {
	if r.Layouts == nil {
		return DefaultLayouts
	}
	return r.Layouts
}

// scanMirrors walks root in lexical order for a regular file named by the
// ref's path segments and holding a valid commit.
func scanMirrors(root string, pref ref.PackageRef) (string, bool) {
	want := pref.String()
	var commit string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped; the scan is opportunistic.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != want && !strings.HasSuffix(rel, "/"+want) {
			return nil
		}
		if c, ok := readCommitFile(p); ok {
			commit = c
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return "", false
	}
	return commit, commit != ""
}

// readCommitFile reads a ref file and validates its content as a commit.
func readCommitFile(p string) (string, bool) {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	commit := strings.TrimSpace(string(data))
	if !IsCommit(commit) {
		return "", false
	}
	return commit, true
}

// IsCommit reports whether s looks like a store commit: 64 lowercase hex
// characters.
func IsCommit(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
