// Package feed downloads, validates and caches the upstream world state.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"warframe_bot/internal/metrics"
	"warframe_bot/internal/model"
)

// DefaultURL is the public world-state endpoint for PC, localized to Russian.
const DefaultURL = "https://api.warframestat.us/pc?language=ru"

const (
	// Upstream rejects requests without a browser-like agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	accept    = "application/json,text/html;q=0.9,*/*;q=0.8"

	maxBodySize = 10 * 1024 * 1024

	breakerName     = "warframestat"
	breakerTrips    = 5
	breakerCooldown = 2 * time.Minute
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and decodes world-state snapshots.
type Fetcher struct {
	client  HTTPClient
	url     string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*model.Snapshot]
	log     *slog.Logger
}

// NewFetcher creates a Fetcher for url with the given HTTP client.
func NewFetcher(client HTTPClient, url string, log *slog.Logger) *Fetcher {
	f := &Fetcher{
		client:  client,
		url:     url,
		timeout: 20 * time.Second,
		log:     log,
	}
	f.breaker = gobreaker.NewCircuitBreaker[*model.Snapshot](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.Set(stateValue(to))
		},
	})
	return f
}

// SetTimeout overrides the default 20-second request timeout.
func (f *Fetcher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// Fetch downloads and validates one snapshot.
func (f *Fetcher) Fetch(ctx context.Context) (*model.Snapshot, error) {
	snap, err := f.breaker.Execute(func() (*model.Snapshot, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.FeedFetches.WithLabelValues("rejected").Inc()
		case errors.Is(err, ErrInvalid):
			metrics.FeedFetches.WithLabelValues("invalid").Inc()
		default:
			metrics.FeedFetches.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.FeedFetches.WithLabelValues("success").Inc()
	if snap.Skipped > 0 {
		f.log.Warn("skipped malformed world-state records", "count", snap.Skipped)
	}
	return snap, nil
}

func (f *Fetcher) fetch(ctx context.Context) (*model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	snap, err := Decode(body)
	if err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
