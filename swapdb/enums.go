package swapdb

import "fmt"

// OrderSide is the side of the pair a swap request was made on.
type OrderSide uint8

const (
	// OrderSideBuy buys the base currency.
	OrderSideBuy OrderSide = iota

	// OrderSideSell sells the base currency.
	OrderSideSell
)

// String returns the string value of the order side.
func (o OrderSide) String() string {
	switch o {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// SwapType is the direction of a swap.
type SwapType uint8

const (
	// SwapTypeSubmarine swaps on-chain funds for a Lightning payment.
	SwapTypeSubmarine SwapType = iota

	// SwapTypeReverse swaps a Lightning payment for on-chain funds.
	SwapTypeReverse

	// SwapTypeChain swaps between two on-chain ledgers.
	SwapTypeChain
)

// String returns the string value of the swap type.
func (t SwapType) String() string {
	switch t {
	case SwapTypeSubmarine:
		return "submarine"
	case SwapTypeReverse:
		return "reverse"
	case SwapTypeChain:
		return "chain"
	default:
		return "unknown"
	}
}

// Status of a swap. The values are the wire strings the status stream exposes
// to API consumers.
type Status string

const (
	StatusSwapCreated Status = "swap.created"
	StatusSwapExpired Status = "swap.expired"

	StatusChannelCreated Status = "channel.created"

	StatusInvoiceSet         Status = "invoice.set"
	StatusInvoicePaid        Status = "invoice.paid"
	StatusInvoicePending     Status = "invoice.pending"
	StatusInvoiceSettled     Status = "invoice.settled"
	StatusInvoiceFailedToPay Status = "invoice.failedToPay"
	StatusInvoiceExpired     Status = "invoice.expired"

	StatusTransactionFailed           Status = "transaction.failed"
	StatusTransactionMempool          Status = "transaction.mempool"
	StatusTransactionConfirmed        Status = "transaction.confirmed"
	StatusTransactionClaimPending     Status = "transaction.claim.pending"
	StatusTransactionClaimed          Status = "transaction.claimed"
	StatusTransactionRefunded         Status = "transaction.refunded"
	StatusTransactionLockupFailed     Status = "transaction.lockupFailed"
	StatusTransactionZeroConfRejected Status = "transaction.zeroconf.rejected"

	StatusMinerFeePaid Status = "minerfee.paid"
)

// swapFinalStatuses are the statuses in which a submarine swap needs no
// further monitoring.
var swapFinalStatuses = map[Status]struct{}{
	StatusTransactionClaimed:      {},
	StatusTransactionRefunded:     {},
	StatusTransactionLockupFailed: {},
	StatusInvoiceFailedToPay:      {},
	StatusSwapExpired:             {},
}

// reverseSwapFinalStatuses are the statuses in which a reverse swap needs no
// further monitoring.
var reverseSwapFinalStatuses = map[Status]struct{}{
	StatusInvoiceSettled:      {},
	StatusInvoiceExpired:      {},
	StatusTransactionFailed:   {},
	StatusTransactionRefunded: {},
	StatusSwapExpired:         {},
}

// IsFinal reports whether a swap of the given type has reached a terminal
// status.
func (s Status) IsFinal(swapType SwapType) bool {
	switch swapType {
	case SwapTypeReverse:
		_, ok := reverseSwapFinalStatuses[s]
		return ok

	default:
		_, ok := swapFinalStatuses[s]
		return ok
	}
}

// PendingSwapStatuses returns all non-terminal statuses a swap of the given
// type can be in. Used to reload in-flight swaps on restart.
func PendingSwapStatuses(swapType SwapType) []Status {
	all := []Status{
		StatusSwapCreated, StatusChannelCreated, StatusInvoiceSet,
		StatusInvoicePaid, StatusInvoicePending, StatusInvoiceSettled,
		StatusInvoiceFailedToPay, StatusInvoiceExpired,
		StatusTransactionFailed, StatusTransactionMempool,
		StatusTransactionConfirmed, StatusTransactionClaimPending,
		StatusTransactionClaimed, StatusTransactionRefunded,
		StatusTransactionLockupFailed,
		StatusTransactionZeroConfRejected, StatusMinerFeePaid,
	}

	var pending []Status
	for _, status := range all {
		if !status.IsFinal(swapType) {
			pending = append(pending, status)
		}
	}

	return pending
}

// ChannelType is the mode of a channel creation attached to a swap.
type ChannelType string

const (
	// ChannelAuto opens a channel only when the invoice cannot be routed
	// otherwise.
	ChannelAuto ChannelType = "auto"

	// ChannelCreate always opens a channel.
	ChannelCreate ChannelType = "create"
)

// GetPairID assembles the id of a trading pair.
func GetPairID(base, quote string) string {
	return base + "/" + quote
}

// SplitPairID splits a pair id into its base and quote symbols.
func SplitPairID(pair string) (string, string, error) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '/' {
			return pair[:i], pair[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("malformed pair id: %s", pair)
}

// ChainCurrency returns the symbol of the on-chain leg of a swap.
func ChainCurrency(base, quote string, side OrderSide, isReverse bool) string {
	if isReverse {
		if side == OrderSideBuy {
			return base
		}
		return quote
	}

	if side == OrderSideBuy {
		return quote
	}
	return base
}

// LightningCurrency returns the symbol of the Lightning leg of a swap.
func LightningCurrency(base, quote string, side OrderSide,
	isReverse bool) string {

	if isReverse {
		if side == OrderSideBuy {
			return quote
		}
		return base
	}

	if side == OrderSideBuy {
		return base
	}
	return quote
}
