package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bianoble/repo-mirror/internal/cache"
	"github.com/rs/zerolog"
)

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError represents a failure to obtain a remote's catalog.
type FetchError struct {
	URL  string
	Err  error
	Hint string
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching catalog %s: %s", e.URL, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads, decompresses and decodes remote catalogs. When a Cache
// is set, every good download is remembered and used if a later download
// fails.
type Fetcher struct {
	Client  HTTPClient
	Cache   *cache.Cache
	MaxSize int64         // max catalog size in bytes (0 = no limit)
	Timeout time.Duration // per-fetch timeout (0 = context only)
	Logger  zerolog.Logger
}

// Fetch returns the components listed in the catalog at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Component, error) {
	data, fetchErr := f.download(ctx, url)
	if fetchErr == nil {
		cat, err := Decode(data)
		if err == nil {
			if f.Cache != nil {
				if _, cacheErr := f.Cache.Store(url, data); cacheErr != nil {
					f.Logger.Warn().Err(cacheErr).Str("url", url).Msg("catalog not cached")
				}
			}
			return cat.Components, nil
		}
		fetchErr = &FetchError{URL: url, Err: err, Hint: "the remote served a malformed catalog"}
	}

	if f.Cache == nil {
		return nil, fetchErr
	}
	cached, found, err := f.Cache.Recall(url)
	if err != nil || !found {
		return nil, fetchErr
	}
	cat, err := Decode(cached)
	if err != nil {
		return nil, fetchErr
	}
	f.Logger.Warn().Err(fetchErr).Str("url", url).Msg("using cached catalog")
	return cat.Components, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	var client HTTPClient = http.DefaultClient
	if f.Client != nil {
		client = f.Client
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, Hint: "check network connectivity and the remote url"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode), Hint: "check catalog_url for this remote"}
	}

	var reader io.Reader = resp.Body
	if f.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, f.MaxSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading response: %w", err)}
	}
	if f.MaxSize > 0 && int64(len(content)) > f.MaxSize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("catalog exceeds max size %d bytes", f.MaxSize)}
	}
	return content, nil
}
