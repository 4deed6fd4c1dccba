package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxManifestSize = 2 * 1024 * 1024

// Fetcher retrieves manifests over HTTP with a read-through redis cache.
// A cache miss triggers a fetch and a subsequent population; concurrent
// misses for the same URL do duplicate work rather than block each other.
type Fetcher struct {
	logger *slog.Logger
	client *http.Client
	cache  *redis.Client
	ttl    time.Duration
}

// FetcherConfig configures fetch timeouts and cache behavior
type FetcherConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewFetcher creates a manifest fetcher. cache may be nil to disable caching.
func NewFetcher(logger *slog.Logger, cache *redis.Client, cfg *FetcherConfig) *Fetcher {
	timeout := 10 * time.Second
	ttl := 5 * time.Minute
	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.CacheTTL > 0 {
			ttl = cfg.CacheTTL
		}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	return &Fetcher{
		logger: logger,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		cache: cache,
		ttl:   ttl,
	}
}

// Fetch retrieves and validates the manifest at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Manifest, error) {
	cacheKey := "manifest:" + url

	if f.cache != nil {
		if data, err := f.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			if m, err := Parse(data); err == nil {
				return m, nil
			}
			// Unparseable cache entries are dropped and refetched.
			f.cache.Del(ctx, cacheKey)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "addon-herd/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching manifest: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("reading manifest body: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheKey, data, f.ttl).Err(); err != nil {
			f.logger.Warn("failed to cache manifest", "url", url, "error", err)
		}
	}

	return m, nil
}
