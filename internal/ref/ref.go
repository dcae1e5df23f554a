package ref

import (
	"fmt"
	"strings"
)

// Kind distinguishes deployable applications from the runtimes they run on.
type Kind string

const (
	KindApp     Kind = "app"
	KindRuntime Kind = "runtime"
)

// DefaultBranch is used when a component names no branch of its own.
const DefaultBranch = "stable"

// PackageRef is the canonical identity of a mirrorable unit.
// Its string form is kind/id/arch/branch.
type PackageRef struct {
	Kind   Kind
	ID     string
	Arch   string
	Branch string
}

// String returns the ref in kind/id/arch/branch form.
func (r PackageRef) String() string {
	return string(r.Kind) + "/" + r.ID + "/" + r.Arch + "/" + r.Branch
}

// IsZero reports whether r is the zero value.
func (r PackageRef) IsZero() bool {
	return r == PackageRef{}
}

// Parse parses a full ref such as "app/org.gnome.Maps/x86_64/stable".
func Parse(s string) (PackageRef, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 4 {
		return PackageRef{}, fmt.Errorf("invalid ref '%s' — expected kind/id/arch/branch", s)
	}
	for i, p := range parts {
		if p == "" {
			return PackageRef{}, fmt.Errorf("invalid ref '%s' — segment %d is empty", s, i)
		}
	}

	kind := Kind(parts[0])
	switch kind {
	case KindApp, KindRuntime:
	default:
		return PackageRef{}, fmt.Errorf("invalid ref '%s' — unknown kind '%s' (must be app or runtime)", s, parts[0])
	}

	return PackageRef{Kind: kind, ID: parts[1], Arch: parts[2], Branch: parts[3]}, nil
}

// ParsePartial parses an id/arch/branch triple, as found in a bundle's
// runtime or sdk attribute, into a ref of the given kind.
func ParsePartial(kind Kind, s string) (PackageRef, error) {
	return Parse(string(kind) + "/" + strings.TrimSpace(s))
}
