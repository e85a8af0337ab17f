package domain

import "errors"

type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindValidation         ErrorKind = "VALIDATION"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindInternal           ErrorKind = "INTERNAL"
)

// Error is a business error with a stable code. Callers wrap it with
// fmt.Errorf("%w: ...") and classify it with errors.Is or KindOf.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Expected reports whether the error is a rejected request rather than a fault.
func (e *Error) Expected() bool {
	return e.Kind != KindInvariantViolation && e.Kind != KindInternal
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound         = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrBookNotFound         = newError(KindNotFound, "BOOK_NOT_FOUND", "book not found")
	ErrTransactionNotFound  = newError(KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")
	ErrNotificationNotFound = newError(KindNotFound, "NOTIFICATION_NOT_FOUND", "notification not found or access denied")

	ErrBookUnavailable = newError(KindConflict, "BOOK_UNAVAILABLE", "book is not available for rental")
	ErrDuplicateRental = newError(KindConflict, "DUPLICATE_RENTAL", "user already has this book")
	ErrAlreadyReturned = newError(KindConflict, "ALREADY_RETURNED", "book already returned")
	ErrDuplicateISBN   = newError(KindConflict, "DUPLICATE_ISBN", "a book with this ISBN already exists")
	ErrDuplicateUser   = newError(KindConflict, "DUPLICATE_USER", "username or email already registered")

	ErrInvalidDueDate = newError(KindValidation, "INVALID_DUE_DATE", "due date must be in the future")
	ErrNegativeCopies = newError(KindValidation, "NEGATIVE_COPIES", "copy counts cannot be negative")
	ErrNegativePrice  = newError(KindValidation, "NEGATIVE_PRICE", "price cannot be negative")
	ErrInvalidInput   = newError(KindValidation, "INVALID_ARGUMENT", "invalid argument")

	ErrInvariantViolation = newError(KindInvariantViolation, "INVARIANT_VIOLATION", "inventory invariant violated")

	ErrInvalidCredentials = newError(KindUnauthenticated, "INVALID_CREDENTIALS", "invalid credentials")
	ErrForbidden          = newError(KindForbidden, "FORBIDDEN", "operation not permitted")
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "INTERNAL".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return string(KindInternal)
}
