package swapd

import "fmt"

// ErrorCode is a stable machine readable identifier of a failure class. API
// layers map codes to user facing messages without string matching.
type ErrorCode string

const (
	CodeCurrencyNotFound           ErrorCode = "currency.not.found"
	CodeNoLightningSupport         ErrorCode = "lightning.not.supported"
	CodeNoAvailableLightningClient ErrorCode = "lightning.no.client"
	CodeNoTimeoutDelta             ErrorCode = "timeout.delta.missing"
	CodePairNotFound               ErrorCode = "pair.not.found"
	CodeInvalidTimeoutBlockDelta   ErrorCode = "timeout.delta.invalid"
	CodeMinExpiryTooBig            ErrorCode = "timeout.min.expiry.too.big"
	CodeInvalidPreimageHash        ErrorCode = "invoice.invalid.preimage.hash"
	CodeInvoiceExpiredAlready      ErrorCode = "invoice.expired.already"
	CodeInvoiceExpiresTooEarly     ErrorCode = "invoice.expires.too.early"
	CodeInvalidMemo                ErrorCode = "invoice.memo.invalid"
	CodeUnroutableInvoice          ErrorCode = "invoice.not.routable"
	CodeInvalidNodeType            ErrorCode = "node.type.invalid"
)

// Error is a validation or configuration failure carrying a stable code
// alongside its message.
type Error struct {
	// Code identifies the failure class.
	Code ErrorCode

	message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.message
}

// Is matches any Error with the same code, so sentinel comparisons with
// errors.Is keep working for instances that carry call specific detail.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

// newError creates a detail carrying instance of a failure class.
func newError(code ErrorCode, format string, params ...interface{}) *Error {
	return &Error{
		Code:    code,
		message: fmt.Sprintf(format, params...),
	}
}

var (
	// ErrCurrencyNotFound is returned when a symbol has no configured
	// currency.
	ErrCurrencyNotFound = &Error{
		Code:    CodeCurrencyNotFound,
		message: "currency not found",
	}

	// ErrNoLightningSupport is returned when a swap leg requires a
	// Lightning client but the currency has none configured.
	ErrNoLightningSupport = &Error{
		Code:    CodeNoLightningSupport,
		message: "currency has no Lightning support",
	}

	// ErrNoAvailableLightningClient is returned when every configured
	// Lightning client of a currency is unreachable.
	ErrNoAvailableLightningClient = &Error{
		Code:    CodeNoAvailableLightningClient,
		message: "no available Lightning client",
	}

	// ErrNoTimeoutDelta is returned at startup for pairs without a
	// timeout policy.
	ErrNoTimeoutDelta = &Error{
		Code:    CodeNoTimeoutDelta,
		message: "no timeout delta configured",
	}

	// ErrPairNotFound is returned for lookups of unconfigured pairs.
	ErrPairNotFound = &Error{
		Code:    CodePairNotFound,
		message: "pair not found",
	}

	// ErrInvalidTimeoutBlockDelta is returned at startup when a
	// configured timeout does not convert to a positive whole number of
	// blocks.
	ErrInvalidTimeoutBlockDelta = &Error{
		Code:    CodeInvalidTimeoutBlockDelta,
		message: "invalid timeout block delta",
	}

	// ErrInvalidPreimageHash is returned when an invoice does not pay to
	// the preimage hash of its swap.
	ErrInvalidPreimageHash = &Error{
		Code:    CodeInvalidPreimageHash,
		message: "invoice preimage hash does not match swap",
	}

	// ErrInvoiceExpiredAlready is returned for invoices that expired
	// before they were submitted.
	ErrInvoiceExpiredAlready = &Error{
		Code:    CodeInvoiceExpiredAlready,
		message: "invoice expired already",
	}

	// ErrInvoiceExpiresTooEarly is returned when an invoice expires
	// before the on-chain timeout of its swap.
	ErrInvoiceExpiresTooEarly = &Error{
		Code:    CodeInvoiceExpiresTooEarly,
		message: "invoice expires before the on-chain timeout",
	}

	// ErrInvalidMemo is returned for hold invoice memos violating the
	// memo policy.
	ErrInvalidMemo = &Error{
		Code:    CodeInvalidMemo,
		message: "invalid invoice memo",
	}

	// ErrUnroutableInvoice is returned when an invoice has no routing
	// hints and the caller could not verify routability.
	ErrUnroutableInvoice = &Error{
		Code:    CodeUnroutableInvoice,
		message: "invoice cannot be routed",
	}
)

// MinExpiryTooBigError is returned when the CLTV an invoice requires exceeds
// the configured maximum chain timeout. It carries the three numbers needed
// to reconstruct a precise diagnostic.
type MinExpiryTooBigError struct {
	// MaxMinutes is the configured maximum, converted to minutes.
	MaxMinutes int64

	// RouteMinutes is the routed CLTV delta, converted to minutes.
	RouteMinutes int64

	// OffsetMinutes is the routing offset that was added.
	OffsetMinutes int64
}

// Error implements the error interface.
func (e *MinExpiryTooBigError) Error() string {
	return fmt.Sprintf("minimal swap expiry of %d minutes (routed %d, "+
		"offset %d) is greater than the maximum of %d minutes",
		e.RouteMinutes+e.OffsetMinutes, e.RouteMinutes,
		e.OffsetMinutes, e.MaxMinutes)
}

// Is matches any MinExpiryTooBigError.
func (e *MinExpiryTooBigError) Is(target error) bool {
	_, ok := target.(*MinExpiryTooBigError)
	return ok
}
