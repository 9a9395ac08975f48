package core

import "errors"

// Errors returned by the matching engine. Everything here is a caller
// error; internal invariant violations panic instead of returning.
var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidKind     = errors.New("invalid order kind")
	ErrInvalidTrader   = errors.New("invalid trader address")
	ErrUnknownBook     = errors.New("unknown book")
	ErrUnknownOrder    = errors.New("unknown order")
	ErrNotOwner        = errors.New("order owned by another trader")
	ErrAlreadyTerminal = errors.New("order already terminal")
	ErrNoLiquidity     = errors.New("no liquidity")
	ErrStaleNonce      = errors.New("nonce outside freshness window")
	ErrExpiryInPast    = errors.New("expiry not in the future")
	ErrExpiryTooFar    = errors.New("expiry beyond allowed horizon")
	ErrBookOffline     = errors.New("book offline")
)
