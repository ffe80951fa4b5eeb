// Package common defines shared constants and sentinel errors used across
// the storefront layers. Callers should use errors.Is to match these values;
// services wrap lower-level failures into one of them before returning.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// Auth errors. Login never says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	// Checkout errors.
	ErrEmptyCart = errors.New("cart is empty")

	// Collaborator failures.
	ErrTimeout     = errors.New("timeout")
	ErrUnavailable = errors.New("unavailable")
)
