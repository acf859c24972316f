// Package polymarket is the client for the Polymarket Gamma and CLOB REST
// APIs.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/crypto"
	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It quotes prices and places signed orders.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	creds      crypto.APICreds
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com". signer
// may be nil for a quote-only client. Empty creds can be filled later with
// DeriveAPIKey.
func NewClobClient(baseURL string, signer *crypto.Signer, creds crypto.APICreds) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
		creds:  creds,
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *ClobClient) WithHTTPClient(h *http.Client) *ClobClient {
	c.httpClient = h
	return c
}

// Price returns the best price for side ("BUY" or "SELL") of a token.
func (c *ClobClient) Price(ctx context.Context, tokenID, side string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side)

	body, err := c.do(ctx, http.MethodGet, "/price?"+params.Encode(), nil, false)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: price %s: %w", tokenID, err)
	}
	var resp struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}
	p, err := strconv.ParseFloat(resp.Price.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse price %q: %w", resp.Price, err)
	}
	return p, nil
}

// PostOrder submits a signed order and returns the exchange's result. A
// rejected order is returned with Success=false and a nil error.
func (c *ClobClient) PostOrder(ctx context.Context, p crypto.OrderPayload, signature string, orderType domain.OrderType) (domain.OrderResult, error) {
	if !c.creds.Valid() {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w: no api credentials", domain.ErrUnauthorized)
	}
	salt, err := strconv.ParseInt(p.Salt, 10, 64)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w: salt %q", domain.ErrInvalidOrder, p.Salt)
	}
	side := "BUY"
	if p.Side == 1 {
		side = "SELL"
	}
	req := APIOrderRequest{
		Order: APIOrder{
			Salt:          salt,
			Maker:         p.Maker,
			Signer:        p.Signer,
			Taker:         p.Taker,
			TokenID:       p.TokenID,
			MakerAmount:   p.MakerAmount,
			TakerAmount:   p.TakerAmount,
			Expiration:    p.Expiration,
			Nonce:         p.Nonce,
			FeeRateBps:    p.FeeRateBps,
			Side:          side,
			SignatureType: p.SignatureType,
			Signature:     signature,
		},
		Owner:     c.creds.Key,
		OrderType: string(orderType),
	}

	body, err := c.do(ctx, http.MethodPost, "/order", req, true)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}
	var apiResult APIOrderResult
	if err := json.Unmarshal(body, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	return apiResult.ToDomainOrderResult(), nil
}

// DeriveAPIKey runs the L1 auth flow: it signs a ClobAuth message and
// exchanges it for L2 credentials, which the client keeps.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (crypto.APICreds, error) {
	if c.signer == nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: derive api key: no signer")
	}
	timestamp := time.Now().Unix()
	sig, err := c.signer.SignAuthMessage(timestamp, 0)
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: sign auth message: %w", domain.ErrSigningFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var creds crypto.APICreds
	if err := json.Unmarshal(body, &creds); err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}
	if !creds.Valid() {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: derive api key: %w: incomplete credentials", domain.ErrUnauthorized)
	}
	c.creds = creds
	return creds, nil
}

// do builds, optionally authenticates, sends and reads a CLOB request.
func (c *ClobClient) do(ctx context.Context, method, path string, body any, auth bool) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.signer != nil {
		// The signature covers the path without its query string.
		signPath := path
		if u, err := url.Parse(path); err == nil {
			signPath = u.Path
		}
		for k, v := range c.creds.L2Headers(c.signer.Address().Hex(), method, signPath, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	if len(bodyStr) > 300 {
		bodyStr = bodyStr[:300]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
