package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrForbidden          = errors.New("operation not permitted")

	// ErrVerificationFailed means the provider could not be asked about a
	// payment (network failure, timeout, malformed session ID). It is NOT
	// the provider reporting the payment as unpaid; callers must keep the
	// two apart or legitimate payments get stranded.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrWebhookUnresolved means an authentic provider event could not be
	// tied to any purchase record.
	ErrWebhookUnresolved = errors.New("webhook event matches no purchase")
)
