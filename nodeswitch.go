package swapd

import (
	"strings"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swapdb"
)

const (
	// defaultAmountThreshold splits swaps between the node types when no
	// threshold is configured. Amounts above it prefer LND, amounts at or
	// below it prefer CLN.
	defaultAmountThreshold btcutil.Amount = 1_000_000

	// defaultMaxClnRetries is the number of failed CLN payment attempts
	// after which a swap is handed to LND instead.
	defaultMaxClnRetries = 1
)

// NodeSwitchConfig configures node selection. Node types are given by name
// ("LND" or "CLN", case insensitive).
type NodeSwitchConfig struct {
	// SwapNode optionally forces a default node type for submarine swaps.
	SwapNode string

	// SwapAmountThreshold overrides the amount threshold for submarine
	// swaps. Zero means the default.
	SwapAmountThreshold btcutil.Amount

	// ReverseSwapAmountThreshold overrides the amount threshold for
	// reverse swaps. Zero means the default.
	ReverseSwapAmountThreshold btcutil.Amount

	// ReferralIDs forces a node type for swaps of a referral id.
	ReferralIDs map[string]string

	// PreferredForNode maps destination node ids to the node type that
	// should pay them. Matching is case insensitive.
	PreferredForNode map[string]string

	// MaxClnRetries overrides the CLN retry budget. Zero means the
	// default, negative disables the correction.
	MaxClnRetries int
}

// Candidate pairs a node type with its client for fallback iteration.
type Candidate struct {
	Node   lightning.NodeType
	Client lightning.LightningClient
}

// SwapNodeOpts carries the optional context of a submarine swap node
// selection.
type SwapNodeOpts struct {
	// ID is the swap id, used for logging only.
	ID string

	// Referral is the referral id of the swap.
	Referral string
}

// NodeSwitch deterministically selects which Lightning client handles a
// given swap, degrading gracefully when the chosen one is unreachable.
type NodeSwitch struct {
	swapNode *lightning.NodeType

	swapThreshold    atomic.Int64
	reverseThreshold atomic.Int64

	referralIDs      map[string]lightning.NodeType
	preferredForNode map[string]lightning.NodeType

	tracker       PaymentTracker
	maxClnRetries int
}

// NewNodeSwitch creates a node switch. The tracker may be nil, disabling the
// CLN retry correction.
func NewNodeSwitch(cfg *NodeSwitchConfig,
	tracker PaymentTracker) (*NodeSwitch, error) {

	if cfg == nil {
		cfg = &NodeSwitchConfig{}
	}

	ns := &NodeSwitch{
		referralIDs:      make(map[string]lightning.NodeType),
		preferredForNode: make(map[string]lightning.NodeType),
		tracker:          tracker,
		maxClnRetries:    cfg.MaxClnRetries,
	}
	if ns.maxClnRetries == 0 {
		ns.maxClnRetries = defaultMaxClnRetries
	}

	if cfg.SwapNode != "" {
		node, err := ParseNodeType(cfg.SwapNode)
		if err != nil {
			return nil, err
		}
		ns.swapNode = &node
	}

	ns.swapThreshold.Store(int64(defaultAmountThreshold))
	if cfg.SwapAmountThreshold != 0 {
		ns.swapThreshold.Store(int64(cfg.SwapAmountThreshold))
	}

	ns.reverseThreshold.Store(int64(defaultAmountThreshold))
	if cfg.ReverseSwapAmountThreshold != 0 {
		ns.reverseThreshold.Store(
			int64(cfg.ReverseSwapAmountThreshold),
		)
	}

	for referralID, name := range cfg.ReferralIDs {
		node, err := ParseNodeType(name)
		if err != nil {
			log.Warnf("Invalid node type for referral id %s: %q",
				referralID, name)
			continue
		}

		ns.referralIDs[referralID] = node
	}

	for nodeID, name := range cfg.PreferredForNode {
		node, err := ParseNodeType(name)
		if err != nil {
			log.Warnf("Invalid node type for node %s: %q", nodeID,
				name)
			continue
		}

		ns.preferredForNode[strings.ToLower(nodeID)] = node
	}

	return ns, nil
}

// SetSwapAmountThreshold replaces the submarine swap amount threshold.
// Updates take effect for subsequent calls only.
func (ns *NodeSwitch) SetSwapAmountThreshold(threshold btcutil.Amount) {
	ns.swapThreshold.Store(int64(threshold))
}

// SetReverseSwapAmountThreshold replaces the reverse swap amount threshold.
// Updates take effect for subsequent calls only.
func (ns *NodeSwitch) SetReverseSwapAmountThreshold(
	threshold btcutil.Amount) {

	ns.reverseThreshold.Store(int64(threshold))
}

// GetSwapNode returns the client that should pay the invoice of a submarine
// swap.
func (ns *NodeSwitch) GetSwapNode(currency *Currency,
	decoded *lightning.DecodedInvoice,
	opts SwapNodeOpts) (lightning.LightningClient, error) {

	client, err := Fallback(
		currency, currency.Client(ns.swapNodeType(
			currency, decoded, opts.Referral,
		)),
	)
	if err != nil {
		return nil, err
	}

	// CLN keeps retrying payments it already failed repeatedly. Hand
	// those invoices to LND instead.
	if ns.maxClnRetries > 0 && ns.tracker != nil &&
		client == currency.ClnClient && decoded.PaymentHash != nil {

		attempt, err := ns.tracker.FindByPreimageHashAndNode(
			decoded.PaymentHash.String(), lightning.NodeTypeCLN,
		)
		switch {
		case err != nil:
			log.Warnf("Could not fetch payment attempts: %v", err)

		case attempt != nil && attempt.Retries >= ns.maxClnRetries:
			log.Debugf("Max CLN retries reached for %s; "+
				"preferring LND", decoded.PaymentHash)

			client, err = Fallback(currency, currency.LndClient)
			if err != nil {
				return nil, err
			}
		}
	}

	if opts.ID != "" {
		log.Debugf("Using node %s for Swap %s", client.ServiceName(),
			opts.ID)
	}

	return client, nil
}

// GetNodeForReverseSwap returns the client that should issue the hold
// invoice of a reverse swap, together with its node type tag for
// persistence.
func (ns *NodeSwitch) GetNodeForReverseSwap(id string, currency *Currency,
	holdInvoiceAmount btcutil.Amount,
	referralID string) (lightning.NodeType, lightning.LightningClient,
	error) {

	preferred := ns.switchByAmount(
		holdInvoiceAmount,
		btcutil.Amount(ns.reverseThreshold.Load()), referralID,
	)

	client, err := Fallback(currency, currency.Client(preferred))
	if err != nil {
		return 0, nil, err
	}

	node := currency.NodeTypeOf(client)
	log.Debugf("Using node %s for Reverse Swap %s", client.ServiceName(),
		id)

	return node, client, nil
}

// GetReverseSwapCandidates returns the ordered list of nodes to try for a
// reverse swap, the primary pick first, each paired with its client. Node
// types the currency does not run are skipped.
func (ns *NodeSwitch) GetReverseSwapCandidates(currency *Currency,
	amount btcutil.Amount, referralID string) []Candidate {

	primary := ns.switchByAmount(
		amount, btcutil.Amount(ns.reverseThreshold.Load()), referralID,
	)

	order := []lightning.NodeType{
		primary, lightning.NodeTypeLND, lightning.NodeTypeCLN,
	}

	seen := make(map[lightning.NodeType]struct{}, len(order))
	candidates := make([]Candidate, 0, len(order))

	for _, node := range order {
		if _, ok := seen[node]; ok {
			continue
		}
		seen[node] = struct{}{}

		client := currency.Client(node)
		if client == nil {
			continue
		}

		candidates = append(candidates, Candidate{
			Node:   node,
			Client: client,
		})
	}

	return candidates
}

// GetReverseSwapNode returns the client of the node that issued the invoice
// of an existing reverse swap, falling back to any connected one.
func GetReverseSwapNode(currency *Currency,
	reverseSwap *swapdb.ReverseSwap) (lightning.LightningClient, error) {

	return Fallback(currency, currency.Client(reverseSwap.Node))
}

// Fallback builds the candidate list [preferred, LND, CLN], de-duplicates,
// filters to connected clients and returns the first. Every selection path
// runs through here, so a disconnected preferred client degrades to some
// connected one instead of failing.
func Fallback(currency *Currency,
	preferred lightning.LightningClient) (lightning.LightningClient,
	error) {

	candidates := []lightning.LightningClient{
		preferred, currency.LndClient, currency.ClnClient,
	}

	var picked []lightning.LightningClient
	for _, client := range candidates {
		if client == nil || !client.IsConnected() {
			continue
		}

		duplicate := false
		for _, existing := range picked {
			if existing == client {
				duplicate = true
				break
			}
		}
		if !duplicate {
			picked = append(picked, client)
		}
	}

	if len(picked) == 0 {
		return nil, ErrNoAvailableLightningClient
	}

	return picked[0], nil
}

// HasClient reports whether the currency has any, or a specific type of,
// Lightning client configured, regardless of connectivity.
func HasClient(currency *Currency, nodes ...lightning.NodeType) bool {
	if len(nodes) == 0 {
		return currency.LndClient != nil || currency.ClnClient != nil
	}

	for _, node := range nodes {
		if currency.Client(node) == nil {
			return false
		}
	}

	return true
}

// swapNodeType resolves the preferred node type for paying an invoice.
func (ns *NodeSwitch) swapNodeType(currency *Currency,
	decoded *lightning.DecodedInvoice,
	referralID string) lightning.NodeType {

	// Only CLN can pay non BOLT11 invoices.
	if decoded.Type != lightning.InvoiceTypeBolt11 {
		return lightning.NodeTypeCLN
	}

	if node, ok := ns.nodePreference(decoded); ok {
		return node
	}

	if ns.swapNode != nil {
		return *ns.swapNode
	}

	return ns.switchByAmount(
		decoded.AmountSat(),
		btcutil.Amount(ns.swapThreshold.Load()), referralID,
	)
}

// nodePreference matches the destination and routing hint nodes of an
// invoice against the configured per node preferences.
func (ns *NodeSwitch) nodePreference(
	decoded *lightning.DecodedInvoice) (lightning.NodeType, bool) {

	if len(ns.preferredForNode) == 0 {
		return 0, false
	}

	if decoded.Payee != nil {
		node, ok := ns.preferredForNode[strings.ToLower(
			decoded.Payee.String(),
		)]
		if ok {
			return node, true
		}
	}

	for _, hints := range decoded.RoutingHints {
		for _, hop := range hints {
			node, ok := ns.preferredForNode[strings.ToLower(
				hop.NodeID,
			)]
			if ok {
				return node, true
			}
		}
	}

	return 0, false
}

// switchByAmount picks a node type by amount threshold, with referral
// overrides taking precedence.
func (ns *NodeSwitch) switchByAmount(amount, threshold btcutil.Amount,
	referralID string) lightning.NodeType {

	if referralID != "" {
		if node, ok := ns.referralIDs[referralID]; ok {
			return node
		}
	}

	if amount > threshold {
		return lightning.NodeTypeLND
	}

	return lightning.NodeTypeCLN
}
