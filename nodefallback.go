package swapd

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightswap/swapd/lightning"
)

const (
	// addInvoiceTimeout bounds a single hold invoice creation attempt
	// before the next node candidate is tried.
	addInvoiceTimeout = 10 * time.Second

	// maxMemoLength is the maximum length of a hold invoice memo.
	maxMemoLength = 500
)

// HoldInvoiceRequest carries the optional parameters of a reverse swap hold
// invoice.
type HoldInvoiceRequest struct {
	// CltvExpiry is the final CLTV delta of the invoice.
	CltvExpiry uint32

	// Expiry is the validity window of the invoice. Zero uses the backend
	// default.
	Expiry time.Duration

	// Memo is the invoice description.
	Memo string

	// DescriptionHash is set instead of Memo for hashed descriptions.
	DescriptionHash []byte

	// RoutingHints are externally supplied hint lists to embed.
	RoutingHints [][]lightning.HopHint
}

// ReverseSwapInvoice is a hold invoice successfully created on one of the
// node candidates.
type ReverseSwapInvoice struct {
	// PaymentRequest is the encoded invoice.
	PaymentRequest string

	// RoutingHints are the hint lists embedded in the invoice.
	RoutingHints [][]lightning.HopHint

	// Node is the node type that issued the invoice.
	Node lightning.NodeType

	// Client is the client the invoice was created on.
	Client lightning.LightningClient
}

// NodeFallback creates reverse swap hold invoices, trying every node
// candidate in order with a bounded timeout per attempt. Only timeouts fall
// through to the next candidate, other failures propagate immediately.
type NodeFallback struct {
	nodeSwitch   *NodeSwitch
	routingHints RoutingHintsProvider

	// invoiceTimeout is the per candidate creation timeout.
	invoiceTimeout time.Duration
}

// NewNodeFallback creates a fallback. The hints provider may be nil when no
// routing node support is needed.
func NewNodeFallback(nodeSwitch *NodeSwitch,
	routingHints RoutingHintsProvider) *NodeFallback {

	return &NodeFallback{
		nodeSwitch:     nodeSwitch,
		routingHints:   routingHints,
		invoiceTimeout: addInvoiceTimeout,
	}
}

// GetReverseSwapInvoice creates the hold invoice of a reverse swap on the
// first node candidate that answers in time.
func (f *NodeFallback) GetReverseSwapInvoice(ctx context.Context, id string,
	referralID string, routingNode string, currency *Currency,
	amount btcutil.Amount, preimageHash lntypes.Hash,
	req *HoldInvoiceRequest) (*ReverseSwapInvoice, error) {

	if req == nil {
		req = &HoldInvoiceRequest{}
	}

	if err := CheckInvoiceMemo(req.Memo); err != nil {
		return nil, err
	}

	candidates := f.nodeSwitch.GetReverseSwapCandidates(
		currency, amount, referralID,
	)

	for _, candidate := range candidates {
		hints, err := f.resolveHints(
			ctx, currency, routingNode, candidate.Node, req,
		)
		if err != nil {
			return nil, err
		}

		candidate := candidate
		paymentRequest, err := lightning.RaceCall(
			ctx, func(ctx context.Context) (string, error) {
				return candidate.Client.AddHoldInvoice(
					ctx, amount, preimageHash,
					req.CltvExpiry, req.Expiry, req.Memo,
					req.DescriptionHash, hints,
				)
			}, f.invoiceTimeout,
		)
		if err != nil {
			if errors.Is(err, lightning.ErrCallTimeout) {
				log.Warnf("%s invoice creation for Reverse "+
					"Swap %s timed out after %v; trying "+
					"next node",
					candidate.Client.ServiceName(), id,
					f.invoiceTimeout)
				continue
			}

			return nil, err
		}

		log.Debugf("Using node %s for Reverse Swap %s",
			candidate.Client.ServiceName(), id)

		return &ReverseSwapInvoice{
			PaymentRequest: paymentRequest,
			RoutingHints:   hints,
			Node:           candidate.Node,
			Client:         candidate.Client,
		}, nil
	}

	return nil, ErrNoAvailableLightningClient
}

// resolveHints fetches the routing hints towards the routing node for the
// candidate and concatenates them with any externally supplied ones.
func (f *NodeFallback) resolveHints(ctx context.Context, currency *Currency,
	routingNode string, node lightning.NodeType,
	req *HoldInvoiceRequest) ([][]lightning.HopHint, error) {

	var hints [][]lightning.HopHint
	if routingNode != "" && f.routingHints != nil {
		nodeHints, err := f.routingHints.GetRoutingHints(
			ctx, currency.Symbol, routingNode, node,
		)
		if err != nil {
			return nil, err
		}

		hints = append(hints, nodeHints...)
	}

	hints = append(hints, req.RoutingHints...)

	return hints, nil
}

// CheckInvoiceMemo validates a hold invoice memo. Memos are limited to 500
// printable ASCII characters.
func CheckInvoiceMemo(memo string) error {
	if len(memo) > maxMemoLength {
		return newError(CodeInvalidMemo,
			"memo exceeds maximum length of %d", maxMemoLength)
	}

	for i := 0; i < len(memo); i++ {
		if memo[i] < 0x20 || memo[i] > 0x7e {
			return newError(CodeInvalidMemo,
				"memo contains invalid character at index %d",
				i)
		}
	}

	return nil
}
