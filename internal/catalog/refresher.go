package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"provider_gateway/internal/models"
	"provider_gateway/internal/utils"
)

const (
	// DefaultSourceURL is the litellm model price/context document, keyed by
	// model name with a reserved "sample_spec" template entry.
	DefaultSourceURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

	// sentinelKey is a documentation template in the source file, not a model.
	sentinelKey = "sample_spec"

	defaultFetchTimeout = 30 * time.Second
)

// RefreshError reports a failed catalog refresh. The previous snapshot stays
// installed; only the refresh trigger path sees this error.
type RefreshError struct {
	Source string
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("catalog refresh from %s failed: %v", e.Source, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Refresher fetches the remote model document and swaps catalog snapshots.
type Refresher struct {
	catalog  *Catalog
	client   *http.Client
	url      string
	interval time.Duration
	logger   *utils.Logger
}

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	SourceURL    string
	Interval     time.Duration // <= 0 disables the background loop
	FetchTimeout time.Duration
}

// NewRefresher creates a refresher bound to a catalog.
func NewRefresher(c *Catalog, cfg RefresherConfig, logger *utils.Logger) *Refresher {
	url := cfg.SourceURL
	if url == "" {
		url = DefaultSourceURL
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &Refresher{
		catalog:  c,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		interval: cfg.Interval,
		logger:   logger,
	}
}

// Refresh fetches the source document and atomically installs a new
// snapshot. On any failure the current snapshot is left intact.
func (r *Refresher) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return &RefreshError{Source: r.url, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &RefreshError{Source: r.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RefreshError{Source: r.url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var doc map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return &RefreshError{Source: r.url, Err: fmt.Errorf("failed to decode document: %w", err)}
	}

	entries := make([]Entry, 0, len(doc))
	for name, details := range doc {
		if name == sentinelKey {
			continue
		}
		provider, _ := details["litellm_provider"].(string)
		entries = append(entries, Entry{
			Name:     name,
			Provider: models.CanonicalProviderID(provider),
			Details:  details,
		})
	}

	r.catalog.Replace(NewSnapshot(entries, time.Now()))
	if r.logger != nil {
		r.logger.Info("catalog refreshed", "models", len(entries))
	}

	return nil
}

// Run refreshes immediately and then on the configured interval until the
// context is cancelled. Refresh failures are logged and the stale snapshot
// keeps serving reads.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil && r.logger != nil {
		r.logger.Error("initial catalog refresh failed", "error", err)
	}

	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && r.logger != nil {
				r.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}
