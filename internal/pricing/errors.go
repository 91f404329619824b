package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-laundry/internal/catalog"
)

// Code is a stable machine-readable failure identifier.
type Code string

// Failure codes.
const (
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeInvalidVariant      Code = "INVALID_VARIANT"
	CodeUnknownUrgencyTier  Code = "UNKNOWN_URGENCY_TIER"
	CodeInvalidDiscount     Code = "INVALID_DISCOUNT"
	CodeCatalogItemNotFound Code = "CATALOG_ITEM_NOT_FOUND"
	CodeCatalogUnavailable  Code = "CATALOG_UNAVAILABLE"
)

// ItemError is the typed failure of a pricing call. errors.Is matches on Code,
// so the exported sentinels below can be used as comparison targets.
type ItemError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Sentinels for errors.Is.
var (
	ErrInvalidRequest      = &ItemError{Code: CodeInvalidRequest}
	ErrInvalidQuantity     = &ItemError{Code: CodeInvalidQuantity}
	ErrInvalidVariant      = &ItemError{Code: CodeInvalidVariant}
	ErrUnknownUrgencyTier  = &ItemError{Code: CodeUnknownUrgencyTier}
	ErrInvalidDiscount     = &ItemError{Code: CodeInvalidDiscount}
	ErrCatalogItemNotFound = &ItemError{Code: CodeCatalogItemNotFound}
	ErrCatalogUnavailable  = &ItemError{Code: CodeCatalogUnavailable}
)

func (e *ItemError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Is reports whether target is an ItemError with the same code.
func (e *ItemError) Is(target error) bool {
	t, ok := target.(*ItemError)
	return ok && t.Code == e.Code
}

// Validation reports whether the failure was caused by the caller's input.
func (e *ItemError) Validation() bool {
	switch e.Code {
	case CodeInvalidRequest, CodeInvalidQuantity, CodeInvalidVariant, CodeUnknownUrgencyTier, CodeInvalidDiscount:
		return true
	case CodeCatalogItemNotFound, CodeCatalogUnavailable:
		return false
	default:
		return false
	}
}

func newError(code Code, err error, format string, args ...any) *ItemError {
	return &ItemError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// lookupError classifies a catalog item lookup failure.
func lookupError(id string, err error) *ItemError {
	if errors.Is(err, catalog.ErrNotFound) {
		return newError(CodeCatalogItemNotFound, err, "catalog item %q not found", id)
	}
	return newError(CodeCatalogUnavailable, err, "catalog lookup for %q failed", id)
}

// asItemError normalises any failure into an ItemError for placeholders.
func asItemError(err error) *ItemError {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie
	}
	return newError(CodeCatalogUnavailable, err, "%v", err)
}
