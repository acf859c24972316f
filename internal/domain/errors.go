package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")

	ErrInsufficientData   = errors.New("insufficient data")
	ErrNoMarket           = errors.New("no tradeable market")
	ErrAllSourcesFailed   = errors.New("all price sources failed")
	ErrBalanceUnavailable = errors.New("balance unavailable")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)
