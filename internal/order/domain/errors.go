package domain

import "errors"

var (
	ErrOrderNotFound          = errors.New("order_not_found")
	ErrEmptyCart              = errors.New("empty_cart")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidPaymentMethod   = errors.New("invalid_payment_method")
	ErrIdempotencyKeyRequired = errors.New("idempotency_key_required")
	ErrPossibleDuplicate      = errors.New("possible_duplicate_submission")
	ErrInvalidTransition      = errors.New("invalid_order_transition")
	ErrAmountTooLow           = errors.New("amount_received_too_low")
	ErrConflict               = errors.New("order_conflict")
)
