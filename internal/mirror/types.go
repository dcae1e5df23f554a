// Package mirror pulls package refs from remotes, resolves the commits the
// pulls deposited, and promotes them to stable local refs.
package mirror

import (
	"errors"
	"fmt"

	"github.com/bianoble/repo-mirror/internal/ref"
)

// ErrCommitNotFound is returned when no resolution strategy locates the
// commit produced by a pull.
var ErrCommitNotFound = errors.New("commit not found")

// Outcome is the final state of one attempted PackageRef.
type Outcome string

const (
	Promoted         Outcome = "promoted"
	PullFailed       Outcome = "pull-failed"
	ResolutionFailed Outcome = "resolution-failed"
	PromotionFailed  Outcome = "promotion-failed"
)

// MirrorResult records what happened to one PackageRef in a pass.
type MirrorResult struct {
	Remote    string
	Component string
	Ref       ref.PackageRef
	Outcome   Outcome
	Commit    string
	Err       error
}

// RemoteError records a remote whose catalog could not be obtained.
type RemoteError struct {
	Remote string
	Err    error
}

func (e RemoteError) Error() string {
	return e.Remote + ": " + e.Err.Error()
}

func (e RemoteError) Unwrap() error {
	return e.Err
}

// Advisory is the result of a best-effort operation. Its error is logged and
// never turned into a failure.
type Advisory struct {
	Op     string
	Target string
	Err    error
}

func (a Advisory) String() string {
	if a.Err == nil {
		return fmt.Sprintf("%s %s: ok", a.Op, a.Target)
	}
	return fmt.Sprintf("%s %s: %s", a.Op, a.Target, a.Err)
}

// Counts tallies results by outcome.
type Counts struct {
	Promoted         int
	PullFailed       int
	ResolutionFailed int
	PromotionFailed  int
}

// Failed returns the number of results that did not reach Promoted.
func (c Counts) Failed() int {
	return c.PullFailed + c.ResolutionFailed + c.PromotionFailed
}

// Count tallies results by outcome.
func Count(results []MirrorResult) Counts {
	var c Counts
	for _, r := range results {
		switch r.Outcome {
		case Promoted:
			c.Promoted++
		case PullFailed:
			c.PullFailed++
		case ResolutionFailed:
			c.ResolutionFailed++
		case PromotionFailed:
			c.PromotionFailed++
		}
	}
	return c
}
