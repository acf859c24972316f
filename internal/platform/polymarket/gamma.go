package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which lists
// the events of a recurring market series.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient replaces the HTTP client.
func (g *GammaClient) WithHTTPClient(c *http.Client) *GammaClient {
	g.httpClient = c
	return g
}

// SeriesEvents returns the open events of a series.
func (g *GammaClient) SeriesEvents(ctx context.Context, seriesID string, limit int) ([]APIEvent, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: series events %s: %w", seriesID, err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}
	return events, nil
}

// SeriesMarkets returns the tradeable up/down markets of a series' open
// events. Closed markets and markets without two outcome tokens are
// skipped.
func (g *GammaClient) SeriesMarkets(ctx context.Context, seriesID string) ([]domain.Market, error) {
	events, err := g.SeriesEvents(ctx, seriesID, 50)
	if err != nil {
		return nil, err
	}
	var markets []domain.Market
	for i := range events {
		ev := &events[i]
		if ev.Closed {
			continue
		}
		for j := range ev.Markets {
			am := &ev.Markets[j]
			if am.Closed {
				continue
			}
			m, ok := am.ToDomainMarket(ev.ID)
			if !ok {
				continue
			}
			if m.EndTime.IsZero() {
				m.EndTime = parseTime(ev.EndDate)
			}
			if m.EndTime.IsZero() {
				continue
			}
			markets = append(markets, m)
		}
	}
	return markets, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
