package swapdb

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
)

var (
	// ErrSwapNotFound is returned when no row matches a filter.
	ErrSwapNotFound = errors.New("swap not found")

	// ErrSwapExists is returned when a row with the same id already
	// exists.
	ErrSwapExists = errors.New("swap already exists")
)

// SwapFilter selects submarine swap rows. Zero valued fields are ignored; set
// fields are combined with AND.
type SwapFilter struct {
	// ID matches the swap id.
	ID string

	// PreimageHash matches the hex encoded preimage hash.
	PreimageHash string

	// Invoice matches the swap invoice.
	Invoice string

	// Statuses matches any of the given statuses.
	Statuses []Status
}

// ReverseSwapFilter selects reverse swap rows.
type ReverseSwapFilter struct {
	// ID matches the swap id.
	ID string

	// PreimageHash matches the hex encoded preimage hash.
	PreimageHash string

	// Statuses matches any of the given statuses.
	Statuses []Status
}

// Store is the persistence interface the swap core requires. Rows are owned
// by the store; the core creates them and rewrites specific fields on
// lifecycle events.
type Store interface {
	// AddSwap persists a newly created submarine swap.
	AddSwap(swap *Swap) error

	// GetSwap returns the first swap matching the filter, or
	// ErrSwapNotFound.
	GetSwap(filter SwapFilter) (*Swap, error)

	// GetSwaps returns all swaps matching the filter.
	GetSwaps(filter SwapFilter) ([]*Swap, error)

	// SetInvoice records the invoice of a swap and moves it to
	// StatusInvoiceSet.
	SetInvoice(swap *Swap, invoice string, invoiceAmount, expectedAmount,
		fee btcutil.Amount, acceptZeroConf bool) error

	// UpdateSwapStatus rewrites the status of a swap.
	UpdateSwapStatus(id string, status Status, failureReason string) error

	// AddReverseSwap persists a newly created reverse swap.
	AddReverseSwap(swap *ReverseSwap) error

	// GetReverseSwap returns the first reverse swap matching the filter,
	// or ErrSwapNotFound.
	GetReverseSwap(filter ReverseSwapFilter) (*ReverseSwap, error)

	// GetReverseSwaps returns all reverse swaps matching the filter.
	GetReverseSwaps(filter ReverseSwapFilter) ([]*ReverseSwap, error)

	// AddChannelCreation persists a channel creation side record.
	AddChannelCreation(channelCreation *ChannelCreation) error

	// GetChannelCreation returns the channel creation record of a swap,
	// or ErrSwapNotFound.
	GetChannelCreation(swapID string) (*ChannelCreation, error)

	// SetNodePublicKey records the destination node of the swap invoice
	// on the channel creation record.
	SetNodePublicKey(channelCreation *ChannelCreation,
		nodePublicKey string) error

	// Close releases the store resources.
	Close() error
}

// matches returns whether the swap passes the filter.
func (f *SwapFilter) matches(swap *Swap) bool {
	if f.ID != "" && swap.ID != f.ID {
		return false
	}
	if f.PreimageHash != "" && swap.PreimageHash != f.PreimageHash {
		return false
	}
	if f.Invoice != "" && swap.Invoice != f.Invoice {
		return false
	}

	return matchesStatus(swap.Status, f.Statuses)
}

// matches returns whether the reverse swap passes the filter.
func (f *ReverseSwapFilter) matches(swap *ReverseSwap) bool {
	if f.ID != "" && swap.ID != f.ID {
		return false
	}
	if f.PreimageHash != "" && swap.PreimageHash != f.PreimageHash {
		return false
	}

	return matchesStatus(swap.Status, f.Statuses)
}

func matchesStatus(status Status, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}

	for _, s := range statuses {
		if status == s {
			return true
		}
	}

	return false
}
