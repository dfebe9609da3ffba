package core

import "errors"

var (
	// Validation errors: rejected before any state mutation.
	ErrUnknownPair      = errors.New("unknown currency pair")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidSide      = errors.New("invalid order side")
	ErrInvalidType      = errors.New("unsupported order type")
	ErrMissingPrice     = errors.New("limit price required")
	ErrMissingStopPrice = errors.New("stop price required")

	// Resource errors.
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrEmptyBook           = errors.New("no liquidity on opposite side")

	// Conflict / not-found / authorization errors.
	ErrDuplicateOrder     = errors.New("order id already exists")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUnauthorizedCancel = errors.New("order belongs to another owner")
	ErrAlreadyTerminal    = errors.New("order already in terminal state")
)
