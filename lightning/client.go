package lightning

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/routing/route"
)

var (
	// ErrNoRoute is returned by QueryRoutes implementations when no route
	// to the destination could be found for the requested amount.
	ErrNoRoute = errors.New("no route found")

	// ErrCallTimeout is returned by RaceCall when the wrapped call did not
	// complete within the allowed time.
	ErrCallTimeout = errors.New("lightning client call timed out")
)

// PaymentMaxParts is the maximum number of shards a multi part payment is
// split into. Route queries for MPP invoices are scaled down by this factor.
const PaymentMaxParts = 3

// NodeType enumerates the Lightning backend implementations a currency can
// run. A currency may run zero, one or both concurrently.
type NodeType uint8

const (
	// NodeTypeLND is an lnd backed node.
	NodeTypeLND NodeType = iota

	// NodeTypeCLN is a Core Lightning backed node.
	NodeTypeCLN
)

// String returns the human readable name of the node type.
func (n NodeType) String() string {
	switch n {
	case NodeTypeLND:
		return "LND"

	case NodeTypeCLN:
		return "CLN"

	default:
		return "unknown"
	}
}

// InvoiceType is the wire encoding of a decoded invoice.
type InvoiceType uint8

const (
	// InvoiceTypeBolt11 is a BOLT11 payment request.
	InvoiceTypeBolt11 InvoiceType = iota

	// InvoiceTypeBolt12 is a BOLT12 invoice.
	InvoiceTypeBolt12
)

// Feature is an invoice feature bit relevant to the swap core.
type Feature uint8

const (
	// FeatureMPP signals that the payee accepts multi part payments.
	FeatureMPP Feature = iota
)

// HopHint is a single hop of a routing hint embedded in an invoice so that a
// payer can reach a destination lacking public channels.
type HopHint struct {
	// NodeID is the hex encoded public key of the hop node.
	NodeID string

	// ChanID is the short channel id of the channel to route through.
	ChanID uint64

	// FeeBaseMsat is the base fee of the channel in millisatoshi.
	FeeBaseMsat uint32

	// FeeProportionalMillionths is the proportional fee of the channel.
	FeeProportionalMillionths uint32

	// CltvExpiryDelta is the CLTV delta of the channel.
	CltvExpiryDelta uint16
}

// Route is a route returned by a route query.
type Route struct {
	// Cltv is the total time lock of the route. LND style clients report
	// absolute block heights, CLN style clients relative deltas.
	Cltv int32

	// FeeMsat is the total routing fee of the route in millisatoshi.
	FeeMsat int64
}

// DecodedInvoice is the decoded representation of a payment request. Parsing
// is done by the backends; the swap core only consumes the value object.
type DecodedInvoice struct {
	// Type is the wire encoding of the invoice.
	Type InvoiceType

	// PaymentHash is the hash the invoice is locked to, if any.
	PaymentHash *lntypes.Hash

	// AmountMsat is the invoice amount in millisatoshi.
	AmountMsat int64

	// Payee is the destination node of the invoice.
	Payee *route.Vertex

	// MinFinalCltv is the final CLTV delta required by the payee.
	MinFinalCltv uint32

	// CreatedAt is the creation timestamp of the invoice.
	CreatedAt time.Time

	// Expiry is the validity window of the invoice. Zero means the
	// invoice does not specify one.
	Expiry time.Duration

	// RoutingHints are the route hint lists embedded in the invoice.
	RoutingHints [][]HopHint

	// Features is the set of feature bits the invoice signals.
	Features map[Feature]struct{}
}

// AmountSat returns the invoice amount rounded down to whole satoshis.
func (d *DecodedInvoice) AmountSat() btcutil.Amount {
	return btcutil.Amount(d.AmountMsat / 1000)
}

// HasFeature returns whether the invoice signals the given feature bit.
func (d *DecodedInvoice) HasFeature(feature Feature) bool {
	_, ok := d.Features[feature]
	return ok
}

// ExpiresAt returns the absolute expiry time of the invoice. Invoices that do
// not specify an expiry use the given default window.
func (d *DecodedInvoice) ExpiresAt(defaultExpiry time.Duration) time.Time {
	expiry := d.Expiry
	if expiry == 0 {
		expiry = defaultExpiry
	}

	return d.CreatedAt.Add(expiry)
}

// InvoiceClient is the subset of a Lightning backend concerned with hold
// invoices.
type InvoiceClient interface {
	// AddHoldInvoice creates a new hold invoice locked to the given
	// preimage hash and returns its payment request.
	AddHoldInvoice(ctx context.Context, value btcutil.Amount,
		preimageHash lntypes.Hash, cltvExpiry uint32,
		expiry time.Duration, memo string, descriptionHash []byte,
		routingHints [][]HopHint) (string, error)

	// SettleHoldInvoice settles the hold invoice belonging to the given
	// preimage.
	SettleHoldInvoice(ctx context.Context,
		preimage lntypes.Preimage) error

	// CancelHoldInvoice cancels the hold invoice locked to the given
	// preimage hash.
	CancelHoldInvoice(ctx context.Context, preimageHash lntypes.Hash) error

	// SubscribeSingleInvoice starts tracking state transitions of the
	// invoice locked to the given preimage hash.
	SubscribeSingleInvoice(ctx context.Context,
		preimageHash lntypes.Hash) error
}

// LightningClient is the interface the swap core requires from a Lightning
// backend. Wire level concerns (connection management, encode/decode,
// streaming) live in the implementations.
type LightningClient interface {
	InvoiceClient

	// ServiceName returns a human readable identifier of the backend.
	ServiceName() string

	// IsConnected returns whether the backend is currently reachable.
	IsConnected() bool

	// DecodeInvoice decodes a payment request.
	DecodeInvoice(ctx context.Context,
		invoice string) (*DecodedInvoice, error)

	// QueryRoutes queries routes to the destination, failing with
	// ErrNoRoute when none is found.
	QueryRoutes(ctx context.Context, destination route.Vertex,
		amt btcutil.Amount, cltvLimit uint32, finalCltvDelta uint32,
		routingHints [][]HopHint) ([]*Route, error)
}
