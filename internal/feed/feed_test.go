package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCryptoCompare(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"RAW":{"BTC":{"USD":{"PRICE":67123.5,"VOLUME24HOURTO":1.5e9}}}}`)
	p, err := NewCryptoCompare(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 67123.5, p.Price)
	assert.Equal(t, 1.5e9, p.Volume)
	assert.Equal(t, "cryptocompare", p.Source)
	assert.False(t, p.Time.IsZero())
}

func TestCoinCap(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data":{"priceUsd":"67000.12","volumeUsd24Hr":"123456.7"}}`)
	p, err := NewCoinCap(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 67000.12, p.Price, 1e-9)
	assert.InDelta(t, 123456.7, p.Volume, 1e-9)
	assert.Equal(t, "coincap", p.Source)
}

func TestCoinGecko(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"bitcoin":{"usd":66999,"usd_24h_vol":42}}`)
	p, err := NewCoinGecko(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 66999.0, p.Price)
	assert.Equal(t, 42.0, p.Volume)
}

func TestHTTPSourceErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		srv := serve(t, http.StatusTooManyRequests, `{}`)
		_, err := NewCoinGecko(srv.URL, srv.Client()).Fetch(context.Background())
		assert.True(t, errors.Is(err, domain.ErrRateLimited))
	})
	t.Run("server error", func(t *testing.T) {
		srv := serve(t, http.StatusBadGateway, `upstream down`)
		_, err := NewCoinCap(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
	t.Run("missing field", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"RAW":{}}`)
		_, err := NewCryptoCompare(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
	})
	t.Run("zero price", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"bitcoin":{"usd":0}}`)
		_, err := NewCoinGecko(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
	})
	t.Run("malformed", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `not json`)
		_, err := NewCoinCap(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
	})
}

func TestBinanceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"67500.01","volume":"12345.6"}`))
	}))
	defer srv.Close()

	p, err := NewBinance("btcusdt").WithBaseURL(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 67500.01, p.Price, 1e-9)
	assert.InDelta(t, 12345.6, p.Volume, 1e-9)
	assert.Equal(t, "binance", p.Source)
}

func TestDownsample(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var klines []Kline
	for i := 0; i < 12; i++ {
		klines = append(klines, Kline{
			OpenTime: base.Add(time.Duration(i) * time.Second),
			Close:    100 + float64(i),
			Volume:   1,
		})
	}
	klines[11].Close = 0

	points := Downsample(klines, 5)
	require.Len(t, points, 2)
	assert.Equal(t, 104.0, points[0].Price)
	assert.Equal(t, 5.0, points[0].Volume)
	assert.Equal(t, base.Add(4*time.Second), points[0].Time)
	assert.Equal(t, 109.0, points[1].Price)
	assert.Equal(t, "binance_backfill", points[1].Source)
}

func TestBucketer(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBucketer(5*time.Second, "binance_ws")

	_, ok := b.Add(100, 1, base.Add(500*time.Millisecond))
	assert.False(t, ok)
	_, ok = b.Add(101, 2, base.Add(3*time.Second))
	assert.False(t, ok)

	p, ok := b.Add(102, 4, base.Add(6*time.Second))
	require.True(t, ok)
	assert.Equal(t, 101.0, p.Price)
	assert.Equal(t, 3.0, p.Volume)
	assert.Equal(t, base.Add(5*time.Second), p.Time)
	assert.Equal(t, "binance_ws", p.Source)

	// late trade from a finished bucket is dropped
	_, ok = b.Add(99, 1, base.Add(4*time.Second))
	assert.False(t, ok)

	_, ok = b.Add(0, 1, base.Add(20*time.Second))
	assert.False(t, ok)

	p, ok = b.Add(103, 1, base.Add(20*time.Second))
	require.True(t, ok)
	assert.Equal(t, 102.0, p.Price)
	assert.Equal(t, 4.0, p.Volume)
}

func TestSamplerRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s := NewSampler(time.Millisecond, func(context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("boom")
		}
		if calls == 5 {
			cancel()
		}
		return nil
	}, discardLogger())

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, 5)
}
