package strategy

import (
	"context"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

var _ domain.HintOracle = NoHint{}

// NoHint always abstains. It is the oracle used when no external hint source
// is configured.
type NoHint struct{}

// Hint implements domain.HintOracle.
func (NoHint) Hint(context.Context, domain.IndicatorSnapshot, *domain.Market) (*domain.DirectionalHint, error) {
	return nil, nil
}
