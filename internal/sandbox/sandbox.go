// Package sandbox confines the files the mirror writes itself (catalog
// staging, legacy catalog copies, the repo descriptor) to the repository
// root. Symlinks are resolved before the containment check.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve returns the absolute path of rel inside root. It fails when the
// path, after resolving symlinks of its existing prefix, lies outside root.
func Resolve(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving repository root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving repository root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, filepath.FromSlash(rel)))
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rel, err)
	}

	if resolved != realRoot && !strings.HasPrefix(resolved, realRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the repository '%s'", rel, resolved, realRoot)
	}
	return resolved, nil
}

// resolveExisting resolves symlinks for the longest existing prefix of p and
// appends the rest unchanged.
func resolveExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	dir := filepath.Dir(p)
	if dir == p {
		return p, nil
	}
	parent, err := resolveExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(p)), nil
}

// WriteFile atomically replaces rel under root with content, creating parent
// directories as needed.
func WriteFile(root, rel string, content []byte, perm os.FileMode) error {
	target, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".repo-mirror-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", target, err)
	}
	done = true
	return nil
}

// CopyFile atomically copies src to dst, both relative to root.
func CopyFile(root, src, dst string) error {
	from, err := Resolve(root, src)
	if err != nil {
		return err
	}
	info, err := os.Stat(from)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return WriteFile(root, dst, data, info.Mode().Perm())
}

// ResetDir removes rel and everything below it, then recreates it empty.
// The repository root itself can never be reset.
func ResetDir(root, rel string) (string, error) {
	dir, err := Resolve(root, rel)
	if err != nil {
		return "", err
	}
	realRoot, err := Resolve(root, ".")
	if err != nil {
		return "", err
	}
	if dir == realRoot {
		return "", fmt.Errorf("refusing to reset the repository root")
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing %s: %w", rel, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", rel, err)
	}
	return dir, nil
}

// MkdirAll creates rel under root.
func MkdirAll(root, rel string, perm os.FileMode) error {
	dir, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, perm)
}
