package swapd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/fortytw2/leaktest"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightswap/swapd/lightning"
	"github.com/stretchr/testify/require"
)

// TestCheckInvoiceMemo asserts the memo policy boundaries: up to 500
// printable ASCII characters, nothing else.
func TestCheckInvoiceMemo(t *testing.T) {
	tests := []struct {
		name  string
		memo  string
		valid bool
	}{{
		name:  "empty",
		memo:  "",
		valid: true,
	}, {
		name:  "printable",
		memo:  "Send to BTC address",
		valid: true,
	}, {
		name:  "max length",
		memo:  strings.Repeat("a", 500),
		valid: true,
	}, {
		name:  "too long",
		memo:  strings.Repeat("a", 501),
		valid: false,
	}, {
		name:  "newline",
		memo:  "first\nsecond",
		valid: false,
	}, {
		name:  "non ascii",
		memo:  "pay mé",
		valid: false,
	}, {
		name:  "control character",
		memo:  "null\x00byte",
		valid: false,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := CheckInvoiceMemo(test.memo)
			if test.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidMemo)
			}
		})
	}
}

// TestFallbackOnTimeout asserts that a candidate whose invoice creation
// never resolves is abandoned after the timeout and the next candidate is
// tried.
func TestFallbackOnTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	lnd := newMockLightningClient("LND")
	lnd.addHoldInvoice = func(ctx context.Context, _ btcutil.Amount,
		_ lntypes.Hash, _ uint32, _ time.Duration, _ string, _ []byte,
		_ [][]lightning.HopHint) (string, error) {

		<-ctx.Done()
		return "", ctx.Err()
	}

	cln := newMockLightningClient("CLN")
	cln.addHoldInvoice = func(_ context.Context, _ btcutil.Amount,
		_ lntypes.Hash, _ uint32, _ time.Duration, _ string, _ []byte,
		_ [][]lightning.HopHint) (string, error) {

		return "lncln1", nil
	}

	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	fallback := NewNodeFallback(nodeSwitch, nil)
	fallback.invoiceTimeout = 50 * time.Millisecond

	// Large amount so LND is the primary candidate.
	invoice, err := fallback.GetReverseSwapInvoice(
		context.Background(), "rswap", "", "", currency, 2_000_000,
		testHash(t, 1), nil,
	)
	require.NoError(t, err)
	require.Equal(t, "lncln1", invoice.PaymentRequest)
	require.Equal(t, lightning.NodeTypeCLN, invoice.Node)
	require.Same(t, cln, invoice.Client)
}

// TestFallbackPropagatesErrors asserts that non timeout failures are not
// masked by trying the next candidate.
func TestFallbackPropagatesErrors(t *testing.T) {
	defer leaktest.Check(t)()

	errRejected := errors.New("invoice with hash already exists")

	lnd := newMockLightningClient("LND")
	lnd.addHoldInvoice = func(_ context.Context, _ btcutil.Amount,
		_ lntypes.Hash, _ uint32, _ time.Duration, _ string, _ []byte,
		_ [][]lightning.HopHint) (string, error) {

		return "", errRejected
	}

	cln := newMockLightningClient("CLN")

	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	fallback := NewNodeFallback(nodeSwitch, nil)

	_, err = fallback.GetReverseSwapInvoice(
		context.Background(), "rswap", "", "", currency, 2_000_000,
		testHash(t, 2), nil,
	)
	require.ErrorIs(t, err, errRejected)
	require.Zero(t, cln.addHoldInvoiceCalls)
}

// TestFallbackExhausted asserts the error when every candidate times out.
func TestFallbackExhausted(t *testing.T) {
	defer leaktest.Check(t)()

	hang := func(ctx context.Context, _ btcutil.Amount, _ lntypes.Hash,
		_ uint32, _ time.Duration, _ string, _ []byte,
		_ [][]lightning.HopHint) (string, error) {

		<-ctx.Done()
		return "", ctx.Err()
	}

	lnd := newMockLightningClient("LND")
	lnd.addHoldInvoice = hang
	cln := newMockLightningClient("CLN")
	cln.addHoldInvoice = hang

	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	fallback := NewNodeFallback(nodeSwitch, nil)
	fallback.invoiceTimeout = 20 * time.Millisecond

	_, err = fallback.GetReverseSwapInvoice(
		context.Background(), "rswap", "", "", currency, 1_000,
		testHash(t, 3), nil,
	)
	require.ErrorIs(t, err, ErrNoAvailableLightningClient)
	require.Equal(t, 1, lnd.addHoldInvoiceCalls)
	require.Equal(t, 1, cln.addHoldInvoiceCalls)
}

// TestFallbackInvalidMemo asserts that the memo is validated before any
// network call.
func TestFallbackInvalidMemo(t *testing.T) {
	cln := newMockLightningClient("CLN")
	currency := &Currency{Symbol: "BTC", ClnClient: cln}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	fallback := NewNodeFallback(nodeSwitch, nil)

	_, err = fallback.GetReverseSwapInvoice(
		context.Background(), "rswap", "", "", currency, 1_000,
		testHash(t, 4), &HoldInvoiceRequest{Memo: "bad\nmemo"},
	)
	require.ErrorIs(t, err, ErrInvalidMemo)
	require.Zero(t, cln.addHoldInvoiceCalls)
}

// TestFallbackRoutingHints asserts that node specific hints are fetched for
// the candidate and concatenated with externally supplied ones.
func TestFallbackRoutingHints(t *testing.T) {
	providerHints := [][]lightning.HopHint{
		{{NodeID: "02provider", ChanID: 1}},
	}
	externalHints := [][]lightning.HopHint{
		{{NodeID: "02external", ChanID: 2}},
	}

	var received [][]lightning.HopHint
	cln := newMockLightningClient("CLN")
	cln.addHoldInvoice = func(_ context.Context, _ btcutil.Amount,
		_ lntypes.Hash, _ uint32, _ time.Duration, _ string, _ []byte,
		routingHints [][]lightning.HopHint) (string, error) {

		received = routingHints
		return "lncln1", nil
	}

	currency := &Currency{Symbol: "BTC", ClnClient: cln}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	hintsProvider := &mockHintsProvider{hints: providerHints}
	fallback := NewNodeFallback(nodeSwitch, hintsProvider)

	invoice, err := fallback.GetReverseSwapInvoice(
		context.Background(), "rswap", "", "021337", currency, 1_000,
		testHash(t, 5), &HoldInvoiceRequest{
			RoutingHints: externalHints,
		},
	)
	require.NoError(t, err)

	expected := append(
		append([][]lightning.HopHint{}, providerHints...),
		externalHints...,
	)
	require.Equal(t, expected, received)
	require.Equal(t, expected, invoice.RoutingHints)
	require.Equal(
		t, []lightning.NodeType{lightning.NodeTypeCLN},
		hintsProvider.calls,
	)
}
