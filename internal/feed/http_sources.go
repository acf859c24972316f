// Package feed provides the upstream BTC price sources and the samplers that
// feed the price history.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const userAgent = "Mozilla/5.0 (compatible; polybot/1.0)"

// Default endpoints of the public price APIs.
const (
	CryptoCompareURL = "https://min-api.cryptocompare.com/data/pricemultifull?fsyms=BTC&tsyms=USD"
	CoinCapURL       = "https://api.coincap.io/v2/assets/bitcoin"
	CoinGeckoURL     = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd&include_24hr_vol=true"
)

// httpSource is a price source backed by one public JSON endpoint.
type httpSource struct {
	name   string
	url    string
	client *http.Client
	parse  func([]byte) (price, volume float64, err error)
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Fetch(ctx context.Context) (domain.PricePoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("%s: create request: %w", s.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("%s: request: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("%s: read body: %w", s.name, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.PricePoint{}, fmt.Errorf("%s: %w", s.name, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.PricePoint{}, fmt.Errorf("%s: unexpected status %d: %s", s.name, resp.StatusCode, truncate(body, 200))
	}

	price, volume, err := s.parse(body)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("%s: parse: %w", s.name, err)
	}
	if !(price > 0) {
		return domain.PricePoint{}, fmt.Errorf("%s: non-positive price %v", s.name, price)
	}
	if volume < 0 {
		volume = 0
	}
	return domain.PricePoint{
		Time:   time.Now().UTC(),
		Price:  price,
		Volume: volume,
		Source: s.name,
	}, nil
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// NewCryptoCompare returns the CryptoCompare pricemultifull source. Volume is
// the 24h quote volume in USD.
func NewCryptoCompare(url string, client *http.Client) domain.PriceSource {
	if url == "" {
		url = CryptoCompareURL
	}
	return &httpSource{name: "cryptocompare", url: url, client: defaultClient(client), parse: parseCryptoCompare}
}

func parseCryptoCompare(body []byte) (float64, float64, error) {
	var resp struct {
		RAW map[string]map[string]struct {
			PRICE          float64 `json:"PRICE"`
			VOLUME24HOURTO float64 `json:"VOLUME24HOURTO"`
		} `json:"RAW"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, 0, err
	}
	btc, ok := resp.RAW["BTC"]["USD"]
	if !ok {
		return 0, 0, fmt.Errorf("missing RAW.BTC.USD")
	}
	return btc.PRICE, btc.VOLUME24HOURTO, nil
}

// NewCoinCap returns the CoinCap assets source.
func NewCoinCap(url string, client *http.Client) domain.PriceSource {
	if url == "" {
		url = CoinCapURL
	}
	return &httpSource{name: "coincap", url: url, client: defaultClient(client), parse: parseCoinCap}
}

func parseCoinCap(body []byte) (float64, float64, error) {
	var resp struct {
		Data struct {
			PriceUsd      string `json:"priceUsd"`
			VolumeUsd24Hr string `json:"volumeUsd24Hr"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, 0, err
	}
	price, err := strconv.ParseFloat(resp.Data.PriceUsd, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("priceUsd: %w", err)
	}
	volume, _ := strconv.ParseFloat(resp.Data.VolumeUsd24Hr, 64)
	return price, volume, nil
}

// NewCoinGecko returns the CoinGecko simple price source.
func NewCoinGecko(url string, client *http.Client) domain.PriceSource {
	if url == "" {
		url = CoinGeckoURL
	}
	return &httpSource{name: "coingecko", url: url, client: defaultClient(client), parse: parseCoinGecko}
}

func parseCoinGecko(body []byte) (float64, float64, error) {
	var resp map[string]struct {
		USD       float64 `json:"usd"`
		USD24hVol float64 `json:"usd_24h_vol"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, 0, err
	}
	btc, ok := resp["bitcoin"]
	if !ok {
		return 0, 0, fmt.Errorf("missing bitcoin")
	}
	return btc.USD, btc.USD24hVol, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
