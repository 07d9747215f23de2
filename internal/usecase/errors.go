package usecase

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindQuotaExceeded
	KindNotFound
	KindUnauthorized
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error はusecaseが返すエラー。HTTPステータスへの変換はhandlerで行う。
type Error struct {
	Kind    ErrorKind
	Message string
	// QuotaExceeded のときだけ入る
	Remaining *int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause はログ用の元エラー（クライアントには返さない）
func (e *Error) Cause() error { return e.cause }

func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}

func IsKind(err error, kind ErrorKind) bool {
	ue, ok := AsError(err)
	return ok && ue.Kind == kind
}

func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewQuotaExceededError(remaining int) error {
	return &Error{Kind: KindQuotaExceeded, Message: "daily quota exceeded", Remaining: &remaining}
}

func NewNotFoundError() error {
	return &Error{Kind: KindNotFound, Message: "not found"}
}

func NewUnauthorizedError() error {
	return &Error{Kind: KindUnauthorized, Message: "unauthorized"}
}

// storageFailure は永続化の想定外エラー。再試行はしない。
func storageFailure(err error, op string) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return &Error{Kind: KindStorage, Message: "db error", cause: errors.Wrap(err, op)}
}
