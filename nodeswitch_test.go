package swapd

import (
	"strings"
	"testing"

	"github.com/lightswap/swapd/lightning"
	"github.com/stretchr/testify/require"
)

// TestFallback asserts the degradation order of the static fallback: a
// disconnected preferred client is demoted to any connected one, and no
// connected client at all is an error.
func TestFallback(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")

	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	client, err := Fallback(currency, cln)
	require.NoError(t, err)
	require.Same(t, cln, client)

	lnd.connected = false
	client, err = Fallback(currency, lnd)
	require.NoError(t, err)
	require.Same(t, cln, client)

	cln.connected = false
	_, err = Fallback(currency, lnd)
	require.ErrorIs(t, err, ErrNoAvailableLightningClient)

	_, err = Fallback(&Currency{Symbol: "BTC"}, nil)
	require.ErrorIs(t, err, ErrNoAvailableLightningClient)
}

// TestGetSwapNodeThreshold asserts the amount threshold switch: amounts
// above the threshold prefer LND, at or below CLN.
func TestGetSwapNodeThreshold(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")
	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	payee := testVertex(t)

	atThreshold := bolt11Invoice(
		payee, testHash(t, 1), 1_000_000_000,
	)
	client, err := nodeSwitch.GetSwapNode(
		currency, atThreshold, SwapNodeOpts{},
	)
	require.NoError(t, err)
	require.Same(t, cln, client)

	aboveThreshold := bolt11Invoice(
		payee, testHash(t, 2), 1_000_001_000,
	)
	client, err = nodeSwitch.GetSwapNode(
		currency, aboveThreshold, SwapNodeOpts{},
	)
	require.NoError(t, err)
	require.Same(t, lnd, client)

	// Runtime threshold updates apply to subsequent calls.
	nodeSwitch.SetSwapAmountThreshold(500_000)
	client, err = nodeSwitch.GetSwapNode(
		currency, atThreshold, SwapNodeOpts{},
	)
	require.NoError(t, err)
	require.Same(t, lnd, client)
}

// TestGetSwapNodeOverrides covers referral overrides, the global swap node
// and the per destination node preference.
func TestGetSwapNodeOverrides(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")
	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	payee := testVertex(t)
	small := bolt11Invoice(payee, testHash(t, 3), 1_000)

	nodeSwitch, err := NewNodeSwitch(&NodeSwitchConfig{
		ReferralIDs: map[string]string{
			"wallet": "lnd",
			"broken": "eclair",
		},
	}, nil)
	require.NoError(t, err)

	client, err := nodeSwitch.GetSwapNode(
		currency, small, SwapNodeOpts{Referral: "wallet"},
	)
	require.NoError(t, err)
	require.Same(t, lnd, client)

	// Invalid referral node types are skipped at construction.
	client, err = nodeSwitch.GetSwapNode(
		currency, small, SwapNodeOpts{Referral: "broken"},
	)
	require.NoError(t, err)
	require.Same(t, cln, client)

	// Global default node.
	nodeSwitch, err = NewNodeSwitch(&NodeSwitchConfig{
		SwapNode: "LND",
	}, nil)
	require.NoError(t, err)

	client, err = nodeSwitch.GetSwapNode(currency, small, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, lnd, client)

	_, err = NewNodeSwitch(&NodeSwitchConfig{SwapNode: "eclair"}, nil)
	require.Error(t, err)

	// Destination preference beats the global default, matching case
	// insensitively on the payee and routing hint nodes.
	nodeSwitch, err = NewNodeSwitch(&NodeSwitchConfig{
		SwapNode: "LND",
		PreferredForNode: map[string]string{
			strings.ToUpper(payee.String()): "cln",
		},
	}, nil)
	require.NoError(t, err)

	client, err = nodeSwitch.GetSwapNode(currency, small, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, cln, client)

	hinted := bolt11Invoice(testVertex(t), testHash(t, 4), 1_000)
	hinted.RoutingHints = [][]lightning.HopHint{
		{{NodeID: strings.ToUpper(payee.String())}},
	}
	nodeSwitch, err = NewNodeSwitch(&NodeSwitchConfig{
		PreferredForNode: map[string]string{
			payee.String(): "lnd",
		},
	}, nil)
	require.NoError(t, err)

	client, err = nodeSwitch.GetSwapNode(currency, hinted, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, lnd, client)
}

// TestGetSwapNodeBolt12 asserts that non BOLT11 invoices are pinned to CLN.
func TestGetSwapNodeBolt12(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")
	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(&NodeSwitchConfig{
		SwapNode: "LND",
	}, nil)
	require.NoError(t, err)

	offer := bolt11Invoice(testVertex(t), testHash(t, 5), 1_000)
	offer.Type = lightning.InvoiceTypeBolt12

	client, err := nodeSwitch.GetSwapNode(currency, offer, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, cln, client)
}

// TestGetSwapNodeClnRetries asserts that invoices CLN already failed to pay
// repeatedly are handed to LND.
func TestGetSwapNodeClnRetries(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")
	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	hash := testHash(t, 6)
	tracker := &mockTracker{
		attempts: map[string]*PaymentAttempt{
			hash.String(): {Retries: 1},
		},
	}

	nodeSwitch, err := NewNodeSwitch(nil, tracker)
	require.NoError(t, err)

	small := bolt11Invoice(testVertex(t), hash, 1_000)
	client, err := nodeSwitch.GetSwapNode(currency, small, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, lnd, client)

	// Fresh preimage hashes stay on CLN.
	fresh := bolt11Invoice(testVertex(t), testHash(t, 7), 1_000)
	client, err = nodeSwitch.GetSwapNode(currency, fresh, SwapNodeOpts{})
	require.NoError(t, err)
	require.Same(t, cln, client)
}

// TestGetNodeForReverseSwap asserts threshold selection and the node type
// tag returned for persistence.
func TestGetNodeForReverseSwap(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")
	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	node, client, err := nodeSwitch.GetNodeForReverseSwap(
		"r1", currency, 2_000_000, "",
	)
	require.NoError(t, err)
	require.Equal(t, lightning.NodeTypeLND, node)
	require.Same(t, lnd, client)

	node, client, err = nodeSwitch.GetNodeForReverseSwap(
		"r2", currency, 1_000, "",
	)
	require.NoError(t, err)
	require.Equal(t, lightning.NodeTypeCLN, node)
	require.Same(t, cln, client)

	// The tag follows the connected client after degradation.
	cln.connected = false
	node, client, err = nodeSwitch.GetNodeForReverseSwap(
		"r3", currency, 1_000, "",
	)
	require.NoError(t, err)
	require.Equal(t, lightning.NodeTypeLND, node)
	require.Same(t, lnd, client)
}

// TestGetReverseSwapCandidates asserts the candidate ordering the fallback
// iterates: primary pick first, remaining node types after, unconfigured
// ones skipped.
func TestGetReverseSwapCandidates(t *testing.T) {
	lnd := newMockLightningClient("LND")
	cln := newMockLightningClient("CLN")

	nodeSwitch, err := NewNodeSwitch(nil, nil)
	require.NoError(t, err)

	currency := &Currency{
		Symbol:    "BTC",
		LndClient: lnd,
		ClnClient: cln,
	}

	candidates := nodeSwitch.GetReverseSwapCandidates(
		currency, 1_000, "",
	)
	require.Len(t, candidates, 2)
	require.Equal(t, lightning.NodeTypeCLN, candidates[0].Node)
	require.Equal(t, lightning.NodeTypeLND, candidates[1].Node)

	candidates = nodeSwitch.GetReverseSwapCandidates(
		currency, 2_000_000, "",
	)
	require.Equal(t, lightning.NodeTypeLND, candidates[0].Node)
	require.Equal(t, lightning.NodeTypeCLN, candidates[1].Node)

	lndOnly := &Currency{Symbol: "BTC", LndClient: lnd}
	candidates = nodeSwitch.GetReverseSwapCandidates(lndOnly, 1_000, "")
	require.Len(t, candidates, 1)
	require.Equal(t, lightning.NodeTypeLND, candidates[0].Node)
}

func TestHasClient(t *testing.T) {
	lnd := newMockLightningClient("LND")

	require.False(t, HasClient(&Currency{Symbol: "BTC"}))
	require.True(t, HasClient(&Currency{Symbol: "BTC", LndClient: lnd}))
	require.True(t, HasClient(
		&Currency{Symbol: "BTC", LndClient: lnd},
		lightning.NodeTypeLND,
	))
	require.False(t, HasClient(
		&Currency{Symbol: "BTC", LndClient: lnd},
		lightning.NodeTypeCLN,
	))
}
