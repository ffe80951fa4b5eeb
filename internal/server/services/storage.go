package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
)

// domainErrors pass through storage calls untouched; anything else coming
// back from the database is a collaborator failure.
var domainErrors = []error{
	common.ErrorNotFound,
	common.ErrConflict,
	common.ErrVersionConflict,
	common.ErrValidation,
	common.ErrEmptyCart,
	common.ErrInvalidToken,
	common.ErrInvalidCredentials,
	common.ErrForbidden,
	common.ErrorUnauthorized,
	common.ErrTimeout,
	common.ErrUnavailable,
}

// storageError classifies err for callers: domain sentinels are returned
// as is, deadline and cancellation become common.ErrTimeout and the rest
// common.ErrUnavailable.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %v: %w", op, err, common.ErrTimeout)
	}
	return fmt.Errorf("%s: %v: %w", op, err, common.ErrUnavailable)
}

// withTimeout runs fn with ctx bounded by timeout and classifies its error.
// A non-positive timeout leaves ctx as it is.
func withTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return storageError(op, fn(ctx))
}
