// Package rates supplies the USD to RUB conversion rate and the billing
// markup coefficient used to turn provider usage into a customer cost.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"modelbroker/internal/utils"
)

// Source yields the current USD to RUB rate. The second return value is
// true when the rate came from the fallback rather than the live feed, so
// callers can surface degraded pricing in their logs.
type Source interface {
	CurrentRate(ctx context.Context) (float64, bool)
}

// CBRSource fetches the official USD quote from the Central Bank of Russia
// daily JSON feed. Every settlement refetches; there is no caching, so a
// recovered feed takes effect immediately. Any failure (transport, status,
// malformed body, missing or non-positive quote) degrades to the configured
// fallback rate; a rate fetch must never fail a billing request.
type CBRSource struct {
	url      string
	fallback float64
	client   *http.Client
	logger   *utils.Logger
}

// CBRSourceConfig holds CBR source configuration
type CBRSourceConfig struct {
	URL      string
	Fallback float64
	Timeout  time.Duration
}

// NewCBRSource creates a new CBR rate source
func NewCBRSource(cfg CBRSourceConfig, logger *utils.Logger) *CBRSource {
	return &CBRSource{
		url:      cfg.URL,
		fallback: cfg.Fallback,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type cbrDaily struct {
	Valute map[string]struct {
		Value float64 `json:"Value"`
	} `json:"Valute"`
}

// CurrentRate returns the USD to RUB rate, or (fallback, true) when the
// feed is unusable
func (s *CBRSource) CurrentRate(ctx context.Context) (float64, bool) {
	rate, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("Rate feed unavailable, using fallback",
			"error", err, "fallback", s.fallback)
		return s.fallback, true
	}
	return rate, false
}

func (s *CBRSource) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate feed returned status %d", resp.StatusCode)
	}

	var daily cbrDaily
	if err := json.NewDecoder(resp.Body).Decode(&daily); err != nil {
		return 0, fmt.Errorf("failed to decode rate feed: %w", err)
	}

	usd, ok := daily.Valute["USD"]
	if !ok || usd.Value <= 0 {
		return 0, fmt.Errorf("rate feed missing usable USD quote")
	}

	return usd.Value, nil
}

// StaticSource returns a fixed rate and never reports fallback. Useful in
// tests and as a kill switch when the feed misbehaves.
type StaticSource struct {
	Rate float64
}

// CurrentRate returns the fixed rate
func (s StaticSource) CurrentRate(ctx context.Context) (float64, bool) {
	return s.Rate, false
}
