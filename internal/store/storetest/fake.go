// Package storetest provides an in-memory Store that mimics the way a
// mirror-mode pull deposits transient refs on disk.
package storetest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bianoble/repo-mirror/internal/store"
)

// Commit returns a deterministic, valid commit hash derived from seed.
func Commit(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// Fake is a Store backed by maps plus real transient files under Root.
type Fake struct {
	Root string

	// Upstream maps remote name -> ref -> commit available for pulling.
	Upstream map[string]map[string]string

	// Deposit returns the store-relative path a pull writes its commit to.
	// Returning "" deposits nothing on disk; the commit is then only
	// visible through RevParse of "remote:ref". Nil means
	// refs/mirrors/<remote>/<ref>.
	Deposit func(remote, ref string) string

	PullErr      map[string]error // keyed by ref
	CreateRefErr map[string]error // keyed by ref name
	CommitErr    map[string]error // keyed by branch
	MetadataErr  map[string]error // keyed by key
	SummaryErr   error

	// OnUpdateRepo implements UpdateRepo. Nil reports store.ErrUnavailable.
	OnUpdateRepo func(f *Fake, opts store.UpdateOptions) error

	mu          sync.Mutex
	refs        map[string]string
	transient   map[string]string
	trees       map[string]map[string]string
	remotes     map[string]store.Remote
	metadata    map[string]string
	summaryRefs []string
	summaries   int
	calls       []string
	initialized bool
}

// New returns a Fake rooted at root.
func New(root string) *Fake {
	return &Fake{
		Root:         root,
		Upstream:     map[string]map[string]string{},
		PullErr:      map[string]error{},
		CreateRefErr: map[string]error{},
		CommitErr:    map[string]error{},
		MetadataErr:  map[string]error{},
		refs:         map[string]string{},
		transient:    map[string]string{},
		trees:        map[string]map[string]string{},
		remotes:      map[string]store.Remote{},
		metadata:     map[string]string{},
	}
}

// Publish makes ref available from remote at commit.
func (f *Fake) Publish(remote, ref, commit string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Upstream[remote] == nil {
		f.Upstream[remote] = map[string]string{}
	}
	f.Upstream[remote][ref] = commit
}

func (f *Fake) Path() string { return f.Root }

func (f *Fake) Init(ctx context.Context, mode string) error {
	f.record("init " + mode)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	return os.MkdirAll(filepath.Join(f.Root, "objects"), 0755)
}

func (f *Fake) AddRemote(ctx context.Context, remote store.Remote) error {
	f.record("remote-add " + remote.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remotes[remote.Name] = remote
	return nil
}

func (f *Fake) Pull(ctx context.Context, remote, refspec string) error {
	f.record("pull " + remote + " " + refspec)
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.PullErr[refspec]; err != nil {
		return err
	}
	commit, ok := f.Upstream[remote][refspec]
	if !ok {
		return fmt.Errorf("remote %s has no ref %s", remote, refspec)
	}

	rel := path.Join("refs/mirrors", remote, refspec)
	if f.Deposit != nil {
		rel = f.Deposit(remote, refspec)
	}
	if rel == "" {
		f.transient[remote+":"+refspec] = commit
		return nil
	}
	full := filepath.Join(f.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(commit+"\n"), 0644)
}

func (f *Fake) ListRefs(ctx context.Context) ([]string, error) {
	f.record("refs")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedRefs(), nil
}

func (f *Fake) CreateRef(ctx context.Context, name, commit string) error {
	f.record("create-ref " + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CreateRefErr[name]; err != nil {
		return err
	}
	f.refs[name] = commit
	return nil
}

func (f *Fake) DeleteRef(ctx context.Context, refspec string) error {
	f.record("delete-ref " + refspec)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transient, refspec)
	return nil
}

func (f *Fake) RevParse(ctx context.Context, refspec string) (string, error) {
	f.record("rev-parse " + refspec)
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.transient[refspec]; ok {
		return c, nil
	}
	if c, ok := f.refs[refspec]; ok {
		return c, nil
	}
	return "", fmt.Errorf("refspec %s not found", refspec)
}

func (f *Fake) UpdateSummary(ctx context.Context) error {
	f.record("summary")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SummaryErr != nil {
		return f.SummaryErr
	}
	f.summaryRefs = f.sortedRefs()
	f.summaries++
	return nil
}

func (f *Fake) AddSummaryMetadata(ctx context.Context, key, value string) error {
	f.record("summary-metadata " + key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.MetadataErr[key]; err != nil {
		return err
	}
	f.metadata[key] = value
	return nil
}

func (f *Fake) UpdateRepo(ctx context.Context, opts store.UpdateOptions) error {
	f.record(fmt.Sprintf("update-repo catalog=%v", opts.UpdateCatalog))
	if f.OnUpdateRepo == nil {
		return fmt.Errorf("fake update-repo: %w", store.ErrUnavailable)
	}
	return f.OnUpdateRepo(f, opts)
}

// CommitTree snapshots every regular file under dir and points branch at a
// commit derived from the snapshot.
func (f *Fake) CommitTree(ctx context.Context, branch, subject, dir string) (string, error) {
	f.record("commit " + branch)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CommitErr[branch]; err != nil {
		return "", err
	}

	tree := map[string]string{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(tree))
	for n := range tree {
		names = append(names, n)
	}
	sort.Strings(names)
	var seed strings.Builder
	for _, n := range names {
		seed.WriteString(n + "\x00" + tree[n] + "\x00")
	}
	commit := Commit(seed.String())
	f.trees[commit] = tree
	f.refs[branch] = commit
	return commit, nil
}

// SetRef points name at commit without recording a call.
func (f *Fake) SetRef(name, commit string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[name] = commit
}

// Ref returns the commit of a local ref.
func (f *Fake) Ref(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.refs[name]
	return c, ok
}

// Refs returns all local ref names, sorted.
func (f *Fake) Refs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedRefs()
}

// Tree returns the files committed as commit.
func (f *Fake) Tree(commit string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trees[commit]
}

// Transient reports whether a transient ref-spec is still registered.
func (f *Fake) Transient(refspec string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transient[refspec]
	return ok
}

// Metadata returns the summary metadata written so far.
func (f *Fake) Metadata() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.metadata))
	for k, v := range f.metadata {
		out[k] = v
	}
	return out
}

// SummaryRefs returns the ref list captured by the last summary update and
// the number of updates performed.
func (f *Fake) SummaryRefs() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.summaryRefs...), f.summaries
}

// Remotes returns the registered remotes.
func (f *Fake) Remotes() map[string]store.Remote {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.Remote, len(f.remotes))
	for k, v := range f.remotes {
		out[k] = v
	}
	return out
}

// Calls returns every operation invoked, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *Fake) sortedRefs() []string {
	refs := make([]string, 0, len(f.refs))
	for r := range f.refs {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

var _ store.Store = (*Fake)(nil)
