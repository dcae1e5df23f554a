package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Cache provides content-addressed blob storage with a small key index.
// Blobs are stored by their SHA256 hash and verified on retrieval; the index
// maps an arbitrary key (a catalog URL) to the hash last stored for it.
type Cache struct {
	dir string
}

// New creates a Cache at the given directory.
// The directory is created if it does not exist.
func New(dir string) (*Cache, error) {
	for _, sub := range []string{"objects", "index"} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", p, err)
		}
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir returns the default cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/repo-mirror.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "repo-mirror")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "repo-mirror-cache")
		}
		return filepath.Join("/tmp", "repo-mirror-cache")
	}
	return filepath.Join(home, ".cache", "repo-mirror")
}

// Get retrieves a blob by its SHA256 hash.
// A corrupt entry is removed and reported as a miss.
func (c *Cache) Get(hash string) ([]byte, bool, error) {
	path := c.objectPath(hash)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", hash, err)
	}

	if computeHash(data) != hash {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores content under its SHA256 hash. No-op if already present.
func (c *Cache) Put(hash string, content []byte) error {
	if actual := computeHash(content); actual != hash {
		return fmt.Errorf("cache put: content hash %s does not match declared hash %s", actual, hash)
	}

	path := c.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeAtomic(path, content)
}

// Store hashes content, stores it, and records the hash under key.
func (c *Cache) Store(key string, content []byte) (string, error) {
	hash := computeHash(content)
	if err := c.Put(hash, content); err != nil {
		return "", err
	}
	if err := writeAtomic(c.indexPath(key), []byte(hash+"\n")); err != nil {
		return "", fmt.Errorf("indexing cache entry for %s: %w", key, err)
	}
	return hash, nil
}

// Recall returns the content last stored under key.
func (c *Cache) Recall(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.indexPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache index for %s: %w", key, err)
	}
	return c.Get(strings.TrimSpace(string(data)))
}

// Has checks if a hash exists in the cache without reading content.
func (c *Cache) Has(hash string) bool {
	_, err := os.Stat(c.objectPath(hash))
	return err == nil
}

// Size returns the total size of the cache in bytes.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Path returns the cache directory path.
func (c *Cache) Path() string {
	return c.dir
}

func (c *Cache) objectPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(c.dir, "objects", hash)
	}
	return filepath.Join(c.dir, "objects", hash[:2], hash)
}

func (c *Cache) indexPath(key string) string {
	return filepath.Join(c.dir, "index", computeHash([]byte(key)))
}

// ComputeHash computes the SHA256 hash of content and returns the hex string.
func ComputeHash(content []byte) string {
	return computeHash(content)
}

func computeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// writeAtomic writes content via a temp file and rename in the same directory.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming cache temp file: %w", err)
	}

	success = true
	return nil
}
