package mirror

import (
	"path"

	"github.com/bianoble/repo-mirror/internal/ref"
)

// MirrorsDir is the store-relative directory that mirror-mode pulls deposit
// transient refs under. Its layout varies between store versions and
// configurations.
const MirrorsDir = "refs/mirrors"

// CandidateLayout is one known convention for where a pull may leave the
// commit of a ref. Path returns a store-relative slash path, or "" if the
// layout does not apply.
type CandidateLayout struct {
	Name string
	Path func(remote, collectionID string, r ref.PackageRef) string
}

// DefaultLayouts lists the observed transient layouts, most specific first.
// Supporting a newly observed layout means adding an entry here.
var DefaultLayouts = []CandidateLayout{
	{
		Name: "collection",
		Path: func(remote, collectionID string, r ref.PackageRef) string {
			if collectionID == "" {
				return ""
			}
			return path.Join(MirrorsDir, collectionID, r.String())
		},
	},
	{
		Name: "remote",
		Path: func(remote, collectionID string, r ref.PackageRef) string {
			return path.Join("refs/remotes", remote, r.String())
		},
	},
	{
		Name: "mirror",
		Path: func(remote, collectionID string, r ref.PackageRef) string {
			return path.Join(MirrorsDir, remote, r.String())
		},
	},
}

// Refspecs returns the store ref-specs to query directly, in order: the
// remote-qualified spec, then the bare ref.
func Refspecs(remote string, r ref.PackageRef) []string {
	return []string{remote + ":" + r.String(), r.String()}
}

// candidatePaths evaluates layouts, dropping those that do not apply.
func candidatePaths(layouts []CandidateLayout, remote, collectionID string, r ref.PackageRef) []string {
	var paths []string
	for _, l := range layouts {
		if p := l.Path(remote, collectionID, r); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
