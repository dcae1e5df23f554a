// Package store is the narrow command/query boundary to the content-addressed
// repository. The repository format itself is a black box: everything goes
// through the store's own tooling.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when an operation's backing tool is not
// installed or has been disabled. Callers treat it as "not used", not failed.
var ErrUnavailable = errors.New("operation unavailable")

// Remote is an upstream repository registered in the store.
type Remote struct {
	Name         string
	URL          string
	CollectionID string
	GPGVerify    bool
}

// UpdateOptions configures the integrated repository update.
type UpdateOptions struct {
	UpdateCatalog bool
}

// Store is the set of repository operations the mirror engine relies on.
// Every call is blocking; the repository path is fixed per Store value.
type Store interface {
	Path() string
	Init(ctx context.Context, mode string) error
	AddRemote(ctx context.Context, remote Remote) error
	Pull(ctx context.Context, remote, refspec string) error
	ListRefs(ctx context.Context) ([]string, error)
	CreateRef(ctx context.Context, name, commit string) error
	DeleteRef(ctx context.Context, refspec string) error
	RevParse(ctx context.Context, refspec string) (string, error)
	UpdateSummary(ctx context.Context) error
	AddSummaryMetadata(ctx context.Context, key, value string) error
	UpdateRepo(ctx context.Context, opts UpdateOptions) error
	CommitTree(ctx context.Context, branch, subject, dir string) (string, error)
}

// InitError reports a repository that could not be created or opened.
// It is fatal for a mirroring pass.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing repository %s: %s", e.Path, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// CommandError carries the diagnostic output of a failed store command.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %s", e.Command, strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// HasRef reports whether name is present in refs.
func HasRef(refs []string, name string) bool {
	for _, r := range refs {
		if r == name {
			return true
		}
	}
	return false
}
