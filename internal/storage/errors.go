package storage

import "errors"

var (
	// ErrUserNotFound is returned when an owner is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrModelNotFound is returned when a model is not found
	ErrModelNotFound = errors.New("model not found")

	// ErrGrantNotFound is returned when no grant matches a token
	ErrGrantNotFound = errors.New("grant not found")

	// ErrGrantExists is returned when an (owner, model) grant already exists
	ErrGrantExists = errors.New("grant already exists")

	// ErrRequestNotFound is returned when a ledger entry is not found
	ErrRequestNotFound = errors.New("request ledger entry not found")

	// ErrPromoNotFound is returned when a promo code is unknown or inactive
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrPromoAlreadyRedeemed is returned when an owner redeems a code twice
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")
)
