package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// USDCBalance reads the wallet's USDC balance. When the RPC fails it falls
// back to the last good reading.
type USDCBalance struct {
	caller ethereum.ContractCaller
	token  common.Address
	owner  common.Address
	logger *slog.Logger

	mu     sync.Mutex
	last   float64
	lastAt time.Time
	known  bool
}

// NewUSDCBalance creates a balance source for owner's holdings of token.
func NewUSDCBalance(caller ethereum.ContractCaller, token, owner string, logger *slog.Logger) *USDCBalance {
	if token == "" {
		token = USDCAddress
	}
	return &USDCBalance{
		caller: caller,
		token:  common.HexToAddress(token),
		owner:  common.HexToAddress(owner),
		logger: logger.With(slog.String("component", "usdc_balance")),
	}
}

// Balance returns the current balance in USD.
func (b *USDCBalance) Balance(ctx context.Context) (float64, error) {
	vals, err := call(ctx, b.caller, b.token, erc20, "balanceOf", b.owner)
	if err == nil {
		raw, ok := vals[0].(*big.Int)
		if !ok {
			err = fmt.Errorf("unexpected balanceOf type %T", vals[0])
		} else {
			bal := scale(raw, usdcDecimals)
			b.mu.Lock()
			b.last, b.lastAt, b.known = bal, time.Now(), true
			b.mu.Unlock()
			return bal, nil
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.known {
		b.logger.WarnContext(ctx, "balance read failed, using cached value",
			slog.String("error", err.Error()),
			slog.Float64("cached", b.last),
			slog.Time("cached_at", b.lastAt),
		)
		return b.last, nil
	}
	return 0, fmt.Errorf("chain: balance: %w: %v", domain.ErrBalanceUnavailable, err)
}

var _ domain.BalanceSource = (*USDCBalance)(nil)
