package mirror

import (
	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/ref"
)

// DeriveRefs returns the refs to mirror for a component: the ref its bundle
// ships (an app, or a runtime listed on its own), then the runtime the
// bundle names. The component id stands in for an app ref only when the
// bundle text is missing or malformed. SDKs are never derived.
func DeriveRefs(c catalog.Component, arch string) []ref.PackageRef {
	b, ok := c.Bundle()
	if !ok {
		return nil
	}

	var refs []ref.PackageRef
	if b.Kind == catalog.BundleFlatpak {
		shipped, err := ref.Parse(b.Ref)
		switch {
		case err == nil:
			// A runtime shipped as its own entry is mirrored as that runtime.
			refs = append(refs, shipped)
		case c.ID != "":
			refs = append(refs, ref.PackageRef{Kind: ref.KindApp, ID: c.ID, Arch: arch, Branch: ref.DefaultBranch})
		}
	}
	if b.Runtime != "" {
		if rt, err := ref.ParsePartial(ref.KindRuntime, b.Runtime); err == nil && !containsRef(refs, rt) {
			refs = append(refs, rt)
		}
	}
	return refs
}

func containsRef(refs []ref.PackageRef, r ref.PackageRef) bool {
	for _, have := range refs {
		if have == r {
			return true
		}
	}
	return false
}
