package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bianoble/repo-mirror/internal/cache"
)

func TestFetchGzipCatalog(t *testing.T) {
	gz, err := Compress([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(gz)
	}))
	defer srv.Close()

	f := &Fetcher{}
	components, err := f.Fetch(context.Background(), srv.URL+"/appstream/x86_64/appstream.xml.gz")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(components) != 2 || components[0].ID != "org.gnome.Maps" {
		t.Errorf("components = %+v", components)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := &Fetcher{}
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error = %v", err)
	}
}

func TestFetchMaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	f := &Fetcher{MaxSize: 16}
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "exceeds max size") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestFetchFallsBackToCache(t *testing.T) {
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var broken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	f := &Fetcher{Cache: c}
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	broken.Store(true)
	components, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch with cache fallback: %v", err)
	}
	if len(components) != 2 {
		t.Errorf("components = %d, want 2", len(components))
	}

	// A URL never fetched successfully still fails.
	if _, err := f.Fetch(context.Background(), srv.URL+"/other"); err == nil {
		t.Error("expected error for uncached url")
	}
}

func TestFetchMalformedIsNotCached(t *testing.T) {
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<components><component>"))
	}))
	defer srv.Close()

	f := &Fetcher{Cache: c}
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected decode error")
	}
	if _, found, _ := c.Recall(srv.URL); found {
		t.Error("malformed catalog should not be cached")
	}
}
