package swapd

import (
	"time"

	"github.com/lightswap/swapd/lightning"
)

// defaultInvoiceExpiry is used for invoices that do not encode an expiry and
// for symbols without an override.
const defaultInvoiceExpiry = time.Hour

// InvoiceExpiryHelper resolves the effective expiry of decoded invoices,
// honoring per symbol overrides.
type InvoiceExpiryHelper struct {
	expiries map[string]time.Duration
}

// NewInvoiceExpiryHelper creates a helper with per symbol expiry overrides.
// A nil map means every symbol uses the default.
func NewInvoiceExpiryHelper(
	expiries map[string]time.Duration) *InvoiceExpiryHelper {

	return &InvoiceExpiryHelper{
		expiries: expiries,
	}
}

// Expiry returns the fallback expiry for invoices of a symbol.
func (h *InvoiceExpiryHelper) Expiry(symbol string) time.Duration {
	if expiry, ok := h.expiries[symbol]; ok {
		return expiry
	}

	return defaultInvoiceExpiry
}

// ExpiresAt returns the absolute expiry of a decoded invoice, falling back
// to the symbol default when the invoice does not encode one.
func (h *InvoiceExpiryHelper) ExpiresAt(symbol string,
	invoice *lightning.DecodedInvoice) time.Time {

	return invoice.ExpiresAt(h.Expiry(symbol))
}
