package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrAddressNotFound    = errors.New("address not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidState       = errors.New("invalid state transition")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrBadSignature       = errors.New("callback signature mismatch")
	ErrMalformedPayload   = errors.New("malformed callback payload")
)
