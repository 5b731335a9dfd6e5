// Package apperr defines the stable, machine-readable error taxonomy returned by ledger operations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into handling classes.
type Kind string

// Error kinds.
const (
	KindValidation       Kind = "validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindCapExceeded      Kind = "cap_exceeded"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// Error is a classified ledger error with a stable code.
type Error struct {
	Kind    Kind   // Handling class.
	Code    string // Stable machine-readable code.
	Message string // Human-readable message.
	Err     error  // Underlying cause, if any.
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a formatted message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.Err = cause
	return &out
}

// New builds an error of the given kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Ledger error sentinels.
var (
	ErrInvalidAmount       = New(KindValidation, "invalid_amount", "amount must be a positive integer")
	ErrInvalidInput        = New(KindValidation, "invalid_input", "invalid input")
	ErrUnauthenticated     = New(KindUnauthenticated, "unauthenticated", "caller is not authenticated")
	ErrPermissionDenied    = New(KindPermissionDenied, "permission_denied", "caller may not act on this account")
	ErrNotFound            = New(KindNotFound, "not_found", "not found")
	ErrWalletNotFound      = New(KindNotFound, "wallet_not_found", "wallet not found")
	ErrWalletInactive      = New(KindConflict, "wallet_inactive", "wallet is not active")
	ErrTransactionNotFound = New(KindNotFound, "transaction_not_found", "transaction not found")
	ErrRewardNotFound      = New(KindNotFound, "reward_not_found", "reward not found")
	ErrRewardInactive      = New(KindConflict, "reward_inactive", "reward is not active")
	ErrOutOfStock          = New(KindConflict, "out_of_stock", "reward is out of stock")
	ErrNoVoucherAvailable  = New(KindConflict, "no_voucher_available", "no voucher available for reward")
	ErrInsufficientBalance = New(KindConflict, "insufficient_balance", "insufficient coin balance")
	ErrCapExceeded         = New(KindCapExceeded, "cap_exceeded", "rolling cap exceeded")
	ErrFraudBlocked        = New(KindPermissionDenied, "fraud_blocked", "redemption blocked by risk policy")
	ErrDuplicateRedemption = New(KindConflict, "duplicate_redemption", "reward already redeemed within the last hour")
	ErrAlreadyReversed     = New(KindConflict, "already_reversed", "transaction already reversed")
	ErrNotReversible       = New(KindValidation, "not_reversible", "transaction cannot be reversed")
	ErrIdempotencyReused   = New(KindConflict, "idempotency_key_reused", "idempotency key reused with different parameters")
	ErrInternal            = New(KindInternal, "internal", "internal error")
)

// ErrInsufficientFunds is the wallet-level name for ErrInsufficientBalance.
var ErrInsufficientFunds = ErrInsufficientBalance

// Internal wraps a datastore or unexpected failure, preserving classified errors as-is.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return ErrInternal.Wrap(err)
}

// From extracts the classified error from err, treating unclassified errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}

// KindOf returns the kind for err.
func KindOf(err error) Kind {
	if e := From(err); e != nil {
		return e.Kind
	}
	return ""
}

// CodeOf returns the stable code for err.
func CodeOf(err error) string {
	if e := From(err); e != nil {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindCapExceeded:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
