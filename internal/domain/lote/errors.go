package lote

import (
	"errors"
	"fmt"
)

// Kind classifies why an acquisition failed. The set is closed.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindUnauthorized
	KindAlreadyOwned
	KindInsufficientBalance
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindAlreadyOwned:
		return "already_owned"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error codes returned to clients.
const (
	CodeLoteUndefined  = "loteId/undefined"
	CodeLoteInvalid    = "loteId/invalid"
	CodeHasOwner       = "lote/has-owner"
	CodeTooExpensive   = "lote/too-expensive"
	CodeUnauthorized   = "unauthorized"
	CodeLoteNotFound   = "lote/not-found"
	CodeLoteMalformed  = "lote/malformed"
	CodeActorNotFound  = "user/not-found"
	CodeActorMalformed = "user/malformed"
	CodeStoreFailure   = "store/failure"
	CodeTimeout        = "deadline-exceeded"
)

// AcquisitionError is the error returned by the acquisition service.
type AcquisitionError struct {
	Kind Kind
	Code string
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// NewAcquisitionError creates an AcquisitionError.
func NewAcquisitionError(kind Kind, code string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Code: code, Err: err}
}

var (
	ErrLoteUndefined = NewAcquisitionError(KindInvalidRequest, CodeLoteUndefined, nil)
	ErrLoteInvalid   = NewAcquisitionError(KindInvalidRequest, CodeLoteInvalid, nil)
	ErrHasOwner      = NewAcquisitionError(KindAlreadyOwned, CodeHasOwner, nil)
	ErrTooExpensive  = NewAcquisitionError(KindInsufficientBalance, CodeTooExpensive, nil)
	ErrUnauthorized  = NewAcquisitionError(KindUnauthorized, CodeUnauthorized, nil)
	ErrLoteNotFound  = NewAcquisitionError(KindInternal, CodeLoteNotFound, nil)
	ErrActorNotFound = NewAcquisitionError(KindInternal, CodeActorNotFound, nil)
)

// Is matches on kind and code so wrapped errors compare equal to the sentinels.
func (e *AcquisitionError) Is(target error) bool {
	var t *AcquisitionError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// KindOf returns the kind of an acquisition error, or KindInternal for any
// other error.
func KindOf(err error) Kind {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
