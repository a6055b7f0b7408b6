package swapd

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swap"
	"github.com/lightswap/swapd/swapdb"
)

// CurrencyType groups currencies by the kind of chain they settle on.
type CurrencyType uint8

const (
	// CurrencyBitcoin is a plain UTXO chain.
	CurrencyBitcoin CurrencyType = iota

	// CurrencyLiquid is a blinded UTXO chain.
	CurrencyLiquid

	// CurrencyEther is the native asset of an EVM chain.
	CurrencyEther

	// CurrencyERC20 is a token contract on an EVM chain.
	CurrencyERC20
)

// IsEvm reports whether the currency settles on an EVM chain.
func (t CurrencyType) IsEvm() bool {
	return t == CurrencyEther || t == CurrencyERC20
}

// BlockchainInfo is the subset of chain state swap creation needs.
type BlockchainInfo struct {
	// Blocks is the current block height.
	Blocks uint32
}

// ChainClient provides chain state and transaction filters for a UTXO
// currency.
type ChainClient interface {
	// GetBlockchainInfo returns the current state of the chain.
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)

	// AddOutputFilter starts watching the chain for outputs paying to
	// the script.
	AddOutputFilter(outputScript []byte)

	// AddInputFilter starts watching the chain for inputs spending the
	// transaction.
	AddInputFilter(transactionID string)
}

// EvmManager provides chain state and swap contract addresses for an EVM
// currency.
type EvmManager interface {
	// GetBlockNumber returns the current block number.
	GetBlockNumber(ctx context.Context) (uint64, error)

	// SwapContractAddress returns the address of the swap contract for
	// the script version.
	SwapContractAddress(version swap.Version, isERC20 bool) (string, error)
}

// Currency ties the clients of a single asset together. UTXO currencies
// carry a chain client and optionally Lightning nodes, EVM currencies carry
// an EVM manager instead.
type Currency struct {
	Symbol string
	Type   CurrencyType

	ChainClient ChainClient
	Evm         EvmManager

	LndClient lightning.LightningClient
	ClnClient lightning.LightningClient
}

// Client returns the Lightning client of the given node type, or nil when
// none is configured.
func (c *Currency) Client(node lightning.NodeType) lightning.LightningClient {
	switch node {
	case lightning.NodeTypeLND:
		return c.LndClient

	case lightning.NodeTypeCLN:
		return c.ClnClient

	default:
		return nil
	}
}

// NodeTypeOf returns the node type of a configured client of the currency.
func (c *Currency) NodeTypeOf(
	client lightning.LightningClient) lightning.NodeType {

	if client != nil && client == c.ClnClient {
		return lightning.NodeTypeCLN
	}

	return lightning.NodeTypeLND
}

// Keys is a freshly derived wallet key with its derivation index.
type Keys struct {
	PublicKey *btcec.PublicKey
	Index     uint32
}

// Wallet derives keys and encodes addresses for a single currency.
type Wallet interface {
	// GetNewKeys derives a fresh public key.
	GetNewKeys() (*Keys, error)

	// EncodeAddress encodes an output script as an address.
	EncodeAddress(outputScript []byte) (string, error)

	// DeriveBlindingKeyFromScript derives the blinding key of an output
	// script. Only implemented by blinded chains.
	DeriveBlindingKeyFromScript(outputScript []byte) (*btcec.PrivateKey,
		error)
}

// WalletManager resolves the wallet of a currency.
type WalletManager interface {
	// Wallet returns the wallet for a symbol.
	Wallet(symbol string) (Wallet, error)
}

// RoutingHintsProvider fetches routing hints towards a routing node for
// inclusion in hold invoices.
type RoutingHintsProvider interface {
	// GetRoutingHints returns hints for channels between the node of the
	// given type and the routing node.
	GetRoutingHints(ctx context.Context, symbol string, routingNode string,
		node lightning.NodeType) ([][]lightning.HopHint, error)
}

// PaymentAttempt records how often a node tried to pay an invoice.
type PaymentAttempt struct {
	// Retries is the number of failed attempts so far.
	Retries int
}

// PaymentTracker exposes payment attempt history for node selection.
type PaymentTracker interface {
	// FindByPreimageHashAndNode returns the attempt record of a node for
	// a preimage hash, or nil when the node never tried.
	FindByPreimageHashAndNode(preimageHash string,
		node lightning.NodeType) (*PaymentAttempt, error)
}

// Nursery watches lockups and claims and settles swaps whose lockup was
// seen already when the invoice arrives late.
type Nursery interface {
	// Init starts the watcher for the given currencies.
	Init(currencies map[string]*Currency) error

	// AttemptSettleSwap tries to settle a swap for which all
	// prerequisites may already be met. Failures are non-fatal for the
	// caller.
	AttemptSettleSwap(ctx context.Context, currency *Currency,
		swap *swapdb.Swap) error
}

// ParseNodeType parses a case insensitive node type name.
func ParseNodeType(name string) (lightning.NodeType, error) {
	switch strings.ToUpper(name) {
	case "LND":
		return lightning.NodeTypeLND, nil

	case "CLN":
		return lightning.NodeTypeCLN, nil

	default:
		return 0, newError(CodeInvalidNodeType,
			"invalid node type: %s", name)
	}
}
