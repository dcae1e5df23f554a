package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// OSTree implements Store by driving the ostree and flatpak command-line
// tools against a single repository directory.
type OSTree struct {
	Repo       string
	Runner     Runner
	OSTreeBin  string // default "ostree"
	FlatpakBin string // default "flatpak"

	// metadata holds the summary keys written since the last UpdateSummary.
	// Each summary rewrite keeps only the keys passed on its command line.
	mu       sync.Mutex
	metadata []summaryKey
}

type summaryKey struct {
	key, value string
}

// NewOSTree returns an OSTree store for the repository at repo.
func NewOSTree(repo string) *OSTree {
	return &OSTree{Repo: repo, Runner: ExecRunner{}}
}

func (o *OSTree) Path() string {
	return o.Repo
}

// Init creates the repository. It is a no-op when the object directory
// already exists.
func (o *OSTree) Init(ctx context.Context, mode string) error {
	if info, err := os.Stat(filepath.Join(o.Repo, "objects")); err == nil && info.IsDir() {
		return nil
	}
	if err := os.MkdirAll(o.Repo, 0755); err != nil {
		return &InitError{Path: o.Repo, Err: err}
	}
	if _, err := o.ostree(ctx, "init", "--mode="+mode); err != nil {
		return &InitError{Path: o.Repo, Err: err}
	}
	return nil
}

func (o *OSTree) AddRemote(ctx context.Context, remote Remote) error {
	args := []string{"remote", "add", "--if-not-exists"}
	if !remote.GPGVerify {
		args = append(args, "--no-gpg-verify")
	}
	if remote.CollectionID != "" {
		args = append(args, "--collection-id="+remote.CollectionID)
	}
	args = append(args, remote.Name, remote.URL)
	_, err := o.ostree(ctx, args...)
	return err
}

// Pull fetches refspec from remote in mirror mode. The commit lands in a
// transient location and must be resolved and promoted by the caller.
func (o *OSTree) Pull(ctx context.Context, remote, refspec string) error {
	_, err := o.ostree(ctx, "pull", "--mirror", remote, refspec)
	return err
}

func (o *OSTree) ListRefs(ctx context.Context) ([]string, error) {
	out, err := o.ostree(ctx, "refs")
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}

// CreateRef points name at commit, overwriting any existing target.
func (o *OSTree) CreateRef(ctx context.Context, name, commit string) error {
	_, err := o.ostree(ctx, "refs", "--create="+name, commit, "--force")
	return err
}

// DeleteRef removes refspec. A ref that does not exist is not an error.
func (o *OSTree) DeleteRef(ctx context.Context, refspec string) error {
	_, err := o.ostree(ctx, "refs", "--delete", refspec)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (o *OSTree) RevParse(ctx context.Context, refspec string) (string, error) {
	out, err := o.ostree(ctx, "rev-parse", refspec)
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return "", fmt.Errorf("rev-parse %s: empty output", refspec)
	}
	return commit, nil
}

func (o *OSTree) UpdateSummary(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metadata = nil
	_, err := o.ostree(ctx, "summary", "--update")
	return err
}

// AddSummaryMetadata rewrites the summary with key set, repeating every key
// added since the last UpdateSummary. A failed key is not carried forward.
func (o *OSTree) AddSummaryMetadata(ctx context.Context, key, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending := make([]summaryKey, 0, len(o.metadata)+1)
	for _, kv := range o.metadata {
		if kv.key != key {
			pending = append(pending, kv)
		}
	}
	pending = append(pending, summaryKey{key: key, value: value})

	args := []string{"summary", "--update"}
	for _, kv := range pending {
		args = append(args, "--add-metadata="+kv.key+"="+kv.value)
	}
	if _, err := o.ostree(ctx, args...); err != nil {
		return err
	}
	o.metadata = pending
	return nil
}

// UpdateRepo runs the integrated update which regenerates the summary and,
// when requested, the catalog branches. Returns ErrUnavailable if the
// flatpak tool is not installed.
func (o *OSTree) UpdateRepo(ctx context.Context, opts UpdateOptions) error {
	args := []string{"build-update-repo"}
	if !opts.UpdateCatalog {
		args = append(args, "--no-update-appstream")
	}
	args = append(args, o.Repo)

	_, err := o.runner().Run(ctx, o.flatpakBin(), args...)
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s build-update-repo: %w", o.flatpakBin(), ErrUnavailable)
	}
	return err
}

// CommitTree commits the contents of dir to branch and returns the new commit.
func (o *OSTree) CommitTree(ctx context.Context, branch, subject, dir string) (string, error) {
	out, err := o.ostree(ctx, "commit", "--branch="+branch, "--subject="+subject, "--tree=dir="+dir)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (o *OSTree) ostree(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--repo=" + o.Repo}, args...)
	return o.runner().Run(ctx, o.ostreeBin(), full...)
}

func (o *OSTree) runner() Runner {
	if o.Runner == nil {
		return ExecRunner{}
	}
	return o.Runner
}

func (o *OSTree) ostreeBin() string {
	if o.OSTreeBin == "" {
		return "ostree"
	}
	return o.OSTreeBin
}

func (o *OSTree) flatpakBin() string {
	if o.FlatpakBin == "" {
		return "flatpak"
	}
	return o.FlatpakBin
}

func isNotFound(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	out := strings.ToLower(cmdErr.Output)
	return strings.Contains(out, "not found") || strings.Contains(out, "no such")
}
