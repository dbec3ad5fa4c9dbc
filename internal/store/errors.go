package store

import (
	"fmt"
	"net/http"
)

// Error is a persistence error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by identity of message and code, so wrapped copies still match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Sentinel errors.
var (
	ErrNotFound = &Error{Code: http.StatusNotFound, Message: "resource not found"}

	// Entity-specific not-found errors also match ErrNotFound.
	ErrUserNotFound   = &Error{Code: http.StatusNotFound, Message: "user not found", Err: ErrNotFound}
	ErrAuthorNotFound = &Error{Code: http.StatusNotFound, Message: "author not found", Err: ErrNotFound}
	ErrBookNotFound   = &Error{Code: http.StatusNotFound, Message: "book not found", Err: ErrNotFound}
	ErrLoanNotFound   = &Error{Code: http.StatusNotFound, Message: "loan not found", Err: ErrNotFound}

	ErrAlreadyExists = &Error{Code: http.StatusConflict, Message: "resource already exists"}

	// ErrActiveLoanExists is returned by CreateLoan when the book already has an active loan.
	ErrActiveLoanExists = &Error{Code: http.StatusConflict, Message: "book already has an active loan"}

	// ErrLoanStateChanged is returned by UpdateLoan when the stored status no longer
	// matches the status the caller read.
	ErrLoanStateChanged = &Error{Code: http.StatusConflict, Message: "loan status changed concurrently"}

	// ErrReferenced is returned when deleting a row that other rows still point to.
	ErrReferenced = &Error{Code: http.StatusConflict, Message: "resource is still referenced"}
)
