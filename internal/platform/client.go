package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hugh/addon-herd/internal/manifest"
)

var (
	// ErrUnauthorized means the user's auth key was rejected or expired.
	ErrUnauthorized = errors.New("platform rejected auth key")
	// ErrRejected means the platform refused a collection write.
	ErrRejected = errors.New("platform rejected collection write")
)

// AddonEntry is one installed addon in a user's remote collection.
type AddonEntry struct {
	TransportURL  string             `json:"transportUrl"`
	TransportName string             `json:"transportName,omitempty"`
	Manifest      *manifest.Manifest `json:"manifest,omitempty"`
}

// Client talks to the platform's addon collection API. The API is
// RPC-over-POST: one endpoint per call type, auth key in the body.
type Client struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

// Config configures the platform client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(logger *slog.Logger, cfg *Config) *Client {
	baseURL := "https://api.strem.io"
	timeout := 15 * time.Second
	if cfg != nil {
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
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

	return &Client{
		logger:  logger,
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type collectionGetRequest struct {
	Type    string `json:"type"`
	AuthKey string `json:"authKey"`
	Update  bool   `json:"update"`
}

type collectionGetResponse struct {
	Result *struct {
		Addons []AddonEntry `json:"addons"`
	} `json:"result"`
	Error *apiError `json:"error"`
}

type collectionSetRequest struct {
	Type    string       `json:"type"`
	AuthKey string       `json:"authKey"`
	Addons  []AddonEntry `json:"addons"`
}

type collectionSetResponse struct {
	Result *struct {
		Success bool `json:"success"`
	} `json:"result"`
	Error *apiError `json:"error"`
}

// GetCollection fetches the user's current addon collection.
func (c *Client) GetCollection(ctx context.Context, authKey string) ([]AddonEntry, error) {
	var resp collectionGetResponse
	err := c.post(ctx, "/api/addonCollectionGet", collectionGetRequest{
		Type:    "AddonCollectionGet",
		AuthKey: authKey,
		Update:  true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrUnauthorized)
	}
	return resp.Result.Addons, nil
}

// SetCollection replaces the user's whole addon collection. The platform
// applies the call all-or-nothing: on error the prior collection is intact.
func (c *Client) SetCollection(ctx context.Context, authKey string, addons []AddonEntry) error {
	if addons == nil {
		addons = []AddonEntry{}
	}
	var resp collectionSetResponse
	err := c.post(ctx, "/api/addonCollectionSet", collectionSetRequest{
		Type:    "AddonCollectionSet",
		AuthKey: authKey,
		Addons:  addons,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Error.Message)
	}
	if resp.Result == nil || !resp.Result.Success {
		return ErrRejected
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "addon-herd/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
