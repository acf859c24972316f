package domain

import (
	"context"
	"time"
)

// PricePoint is a single sample of the underlying asset. It is immutable
// once recorded.
type PricePoint struct {
	Time   time.Time
	Price  float64
	Volume float64
	Source string
}

// PriceSource fetches the current price of the underlying asset from one
// upstream provider.
type PriceSource interface {
	Name() string
	Fetch(ctx context.Context) (PricePoint, error)
}
