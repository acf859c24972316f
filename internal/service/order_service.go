package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/optimizeforall/polymarket-bot/internal/crypto"
	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// Signer abstracts EIP-712 order building and signing so the service layer
// never depends on concrete key management.
type Signer interface {
	BuildBuy(p crypto.BuyParams) (crypto.OrderPayload, error)
	SignOrder(payload crypto.OrderPayload) (string, error)
	Address() common.Address
}

// ClobPoster submits signed orders to the Polymarket CLOB API.
type ClobPoster interface {
	PostOrder(ctx context.Context, p crypto.OrderPayload, signature string, orderType domain.OrderType) (domain.OrderResult, error)
}

// PaperSink simulates fills against a local balance. Every order that fits
// the balance fills in full at its limit price.
type PaperSink struct {
	mu      sync.Mutex
	balance float64
	now     func() time.Time
	logger  *slog.Logger
}

// NewPaperSink creates a PaperSink holding initial USD.
func NewPaperSink(initial float64, logger *slog.Logger) *PaperSink {
	return &PaperSink{
		balance: initial,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "paper_sink")),
	}
}

// Mode returns PAPER.
func (s *PaperSink) Mode() domain.TradeMode { return domain.TradeModePaper }

// PlaceOrder debits the order amount and reports a fill.
func (s *PaperSink) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if err := validateOrder(order); err != nil {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: err.Error()}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if order.AmountUSD > s.balance {
		res := domain.OrderResult{
			Status:       domain.OrderStatusFailed,
			Message:      "insufficient paper balance",
			BalanceAfter: s.balance,
		}
		return res, fmt.Errorf("paper_sink: need %.2f have %.2f: %w",
			order.AmountUSD, s.balance, domain.ErrInsufficientFunds)
	}
	s.balance -= order.AmountUSD

	id := fmt.Sprintf("PAPER-%d-%s", s.now().Unix(), uuid.NewString()[:8])
	s.logger.InfoContext(ctx, "paper order filled",
		slog.String("order_id", id),
		slog.String("direction", string(order.Direction)),
		slog.Float64("amount_usd", order.AmountUSD),
		slog.Float64("price", order.LimitPrice),
		slog.Float64("balance", s.balance),
	)
	return domain.OrderResult{
		Success:      true,
		OrderID:      id,
		Status:       domain.OrderStatusSimulated,
		FilledAmount: order.AmountUSD,
		FilledPrice:  order.LimitPrice,
		Message:      "paper fill",
		BalanceAfter: s.balance,
	}, nil
}

// Credit adds a settlement payout and returns the new balance.
func (s *PaperSink) Credit(amount float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += amount
	return s.balance
}

// Balance returns the simulated balance.
func (s *PaperSink) Balance(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// LiveConfig controls live order submission.
type LiveConfig struct {
	Funder        string // proxy/safe address holding the USDC
	SignatureType int
	OrderType     domain.OrderType
	RateLimit     int
	RateWindow    time.Duration
}

// OrderService is the live order sink: it signs orders with the wallet key,
// submits them to the CLOB under the rate limiter, and refreshes the
// balance from the chain after a fill.
type OrderService struct {
	cfg     LiveConfig
	signer  Signer
	clob    ClobPoster
	limiter domain.RateLimiter   // optional
	balance domain.BalanceSource // optional
	bus     domain.SignalBus     // optional
	logger  *slog.Logger
}

// NewOrderService creates the live sink. limiter, balance and bus may be
// nil.
func NewOrderService(
	cfg LiveConfig,
	signer Signer,
	clob ClobPoster,
	limiter domain.RateLimiter,
	balance domain.BalanceSource,
	bus domain.SignalBus,
	logger *slog.Logger,
) *OrderService {
	if cfg.OrderType == "" {
		cfg.OrderType = domain.OrderTypeGTC
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}
	return &OrderService{
		cfg:     cfg,
		signer:  signer,
		clob:    clob,
		limiter: limiter,
		balance: balance,
		bus:     bus,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// Mode returns LIVE.
func (s *OrderService) Mode() domain.TradeMode { return domain.TradeModeLive }

// PlaceOrder signs and submits a buy of the order's outcome token.
func (s *OrderService) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if err := validateOrder(order); err != nil {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: err.Error()}, err
	}
	if order.TokenID == "" {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: "no token id"},
			fmt.Errorf("order_service: %w: token id required", domain.ErrInvalidOrder)
	}

	if s.limiter != nil {
		key := "orders:" + s.signer.Address().Hex()
		allowed, err := s.limiter.Allow(ctx, key, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			s.logger.WarnContext(ctx, "rate limiter unavailable, submitting anyway",
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return domain.OrderResult{
				Status:      domain.OrderStatusFailed,
				Message:     "rate limited",
				ShouldRetry: true,
			}, fmt.Errorf("order_service: %w", domain.ErrRateLimited)
		}
	}

	payload, err := s.signer.BuildBuy(crypto.BuyParams{
		TokenID:       order.TokenID,
		AmountUSD:     order.AmountUSD,
		Price:         order.LimitPrice,
		Funder:        s.cfg.Funder,
		SignatureType: s.cfg.SignatureType,
	})
	if err != nil {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: err.Error()},
			fmt.Errorf("order_service: build order: %w: %v", domain.ErrInvalidOrder, err)
	}
	signature, err := s.signer.SignOrder(payload)
	if err != nil {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: "signing failed"},
			fmt.Errorf("order_service: sign order: %w: %v", domain.ErrSigningFailed, err)
	}

	res, err := s.clob.PostOrder(ctx, payload, signature, s.cfg.OrderType)
	if err != nil {
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: err.Error()},
			fmt.Errorf("order_service: post order: %w", err)
	}
	if !res.Success {
		s.logger.WarnContext(ctx, "order rejected by exchange",
			slog.String("token_id", order.TokenID),
			slog.String("message", res.Message),
			slog.Bool("should_retry", res.ShouldRetry),
		)
		return res, nil
	}

	if s.balance != nil {
		if bal, err := s.balance.Balance(ctx); err != nil {
			s.logger.WarnContext(ctx, "balance refresh after fill failed", slog.String("error", err.Error()))
		} else {
			res.BalanceAfter = bal
		}
	}

	s.publish(ctx, order, res)
	s.logger.InfoContext(ctx, "order placed via CLOB",
		slog.String("order_id", res.OrderID),
		slog.String("token_id", order.TokenID),
		slog.String("direction", string(order.Direction)),
		slog.Float64("amount_usd", order.AmountUSD),
		slog.Float64("price", order.LimitPrice),
		slog.String("status", string(res.Status)),
	)
	return res, nil
}

func (s *OrderService) publish(ctx context.Context, order domain.Order, res domain.OrderResult) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":      "order_placed",
		"order_id":   res.OrderID,
		"market":     order.MarketID,
		"direction":  string(order.Direction),
		"amount_usd": order.AmountUSD,
		"price":      order.LimitPrice,
		"status":     string(res.Status),
	})
	if err := s.bus.Publish(ctx, "orders", evt); err != nil {
		s.logger.WarnContext(ctx, "publish order event failed",
			slog.String("order_id", res.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

func validateOrder(o domain.Order) error {
	if !(o.AmountUSD > 0) {
		return fmt.Errorf("order: %w: amount %v", domain.ErrInvalidOrder, o.AmountUSD)
	}
	if !(o.LimitPrice > 0 && o.LimitPrice < 1) {
		return fmt.Errorf("order: %w: price %v outside (0,1)", domain.ErrInvalidOrder, o.LimitPrice)
	}
	return nil
}

var (
	_ domain.OrderSink     = (*PaperSink)(nil)
	_ domain.BalanceSource = (*PaperSink)(nil)
	_ domain.OrderSink     = (*OrderService)(nil)
)
