package swapdb

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swap"
)

// Swap is the persisted state of a submarine swap. Hashes, keys and scripts
// are stored hex encoded so that rows stay human readable in exports.
type Swap struct {
	// ID is the public identifier of the swap.
	ID string `json:"id"`

	// Version is the script generation of the lockup output.
	Version swap.Version `json:"version"`

	// Pair is the trading pair id.
	Pair string `json:"pair"`

	// OrderSide is the side of the pair the swap was requested on.
	OrderSide OrderSide `json:"orderSide"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// FailureReason is set when the swap failed.
	FailureReason string `json:"failureReason,omitempty"`

	// PreimageHash is the hex encoded hash securing the swap.
	PreimageHash string `json:"preimageHash"`

	// Preimage is learned when the invoice is paid.
	Preimage string `json:"preimage,omitempty"`

	// Invoice is the invoice the swap pays, set after creation.
	Invoice string `json:"invoice,omitempty"`

	// InvoiceAmount is the amount of the invoice in satoshis.
	InvoiceAmount btcutil.Amount `json:"invoiceAmount,omitempty"`

	// KeyIndex is the wallet derivation index of our key.
	KeyIndex uint32 `json:"keyIndex,omitempty"`

	// RefundPublicKey is the hex encoded refund key of the user.
	RefundPublicKey string `json:"refundPublicKey,omitempty"`

	// RedeemScript is the hex encoded legacy redeem script.
	RedeemScript string `json:"redeemScript,omitempty"`

	// SerializedTree is the serialized Taproot swap tree.
	SerializedTree string `json:"swapTree,omitempty"`

	// TimeoutBlockHeight is the absolute refund height on the chain leg.
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`

	// LockupAddress is the encoded lockup address.
	LockupAddress string `json:"lockupAddress"`

	// LockupScript is the hex encoded lockup output script, kept so chain
	// filters can be re-registered after a restart.
	LockupScript string `json:"lockupScript,omitempty"`

	// LockupTransactionID is set once the user lockup is seen.
	LockupTransactionID string `json:"lockupTransactionId,omitempty"`

	// LockupTransactionVout is the lockup output index.
	LockupTransactionVout uint32 `json:"lockupTransactionVout,omitempty"`

	// ExpectedAmount is the on-chain amount the user has to lock up.
	ExpectedAmount btcutil.Amount `json:"expectedAmount,omitempty"`

	// OnchainAmount is the actually locked up amount.
	OnchainAmount btcutil.Amount `json:"onchainAmount,omitempty"`

	// AcceptZeroConf signals that an unconfirmed lockup may be accepted.
	AcceptZeroConf bool `json:"acceptZeroConf,omitempty"`

	// Fee is the service fee in satoshis.
	Fee btcutil.Amount `json:"fee,omitempty"`

	// Referral is the referral id the swap was created with.
	Referral string `json:"referral,omitempty"`

	// CreatedAt is the creation time of the row.
	CreatedAt time.Time `json:"createdAt"`
}

// ChainSymbol returns the symbol of the on-chain leg.
func (s *Swap) ChainSymbol() (string, error) {
	base, quote, err := SplitPairID(s.Pair)
	if err != nil {
		return "", err
	}

	return ChainCurrency(base, quote, s.OrderSide, false), nil
}

// LightningSymbol returns the symbol of the Lightning leg.
func (s *Swap) LightningSymbol() (string, error) {
	base, quote, err := SplitPairID(s.Pair)
	if err != nil {
		return "", err
	}

	return LightningCurrency(base, quote, s.OrderSide, false), nil
}

// ReverseSwap is the persisted state of a reverse swap.
type ReverseSwap struct {
	// ID is the public identifier of the swap.
	ID string `json:"id"`

	// Version is the script generation of the lockup output.
	Version swap.Version `json:"version"`

	// Pair is the trading pair id.
	Pair string `json:"pair"`

	// OrderSide is the side of the pair the swap was requested on.
	OrderSide OrderSide `json:"orderSide"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// FailureReason is set when the swap failed.
	FailureReason string `json:"failureReason,omitempty"`

	// Node is the Lightning backend that issued the hold invoice.
	Node lightning.NodeType `json:"node"`

	// PreimageHash is the hex encoded hash securing the swap.
	PreimageHash string `json:"preimageHash"`

	// Preimage is revealed when the user claims.
	Preimage string `json:"preimage,omitempty"`

	// Invoice is the hold invoice of the swap.
	Invoice string `json:"invoice"`

	// InvoiceAmount is the amount of the hold invoice in satoshis.
	InvoiceAmount btcutil.Amount `json:"invoiceAmount"`

	// MinerFeeInvoice is the optional prepay miner fee invoice.
	MinerFeeInvoice string `json:"minerFeeInvoice,omitempty"`

	// MinerFeeInvoicePreimage is the preimage of the prepay invoice.
	MinerFeeInvoicePreimage string `json:"minerFeeInvoicePreimage,omitempty"`

	// MinerFeeOnchainAmount is the lockup amount the prepay covers.
	MinerFeeOnchainAmount btcutil.Amount `json:"minerFeeOnchainAmount,omitempty"`

	// KeyIndex is the wallet derivation index of our key.
	KeyIndex uint32 `json:"keyIndex,omitempty"`

	// ClaimPublicKey is the hex encoded claim key of the user.
	ClaimPublicKey string `json:"claimPublicKey,omitempty"`

	// ClaimAddress is the claim address for EVM chains.
	ClaimAddress string `json:"claimAddress,omitempty"`

	// RedeemScript is the hex encoded legacy redeem script.
	RedeemScript string `json:"redeemScript,omitempty"`

	// SerializedTree is the serialized Taproot swap tree.
	SerializedTree string `json:"swapTree,omitempty"`

	// TimeoutBlockHeight is the absolute refund height on the chain leg.
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`

	// LockupAddress is the encoded lockup address.
	LockupAddress string `json:"lockupAddress"`

	// LockupScript is the hex encoded lockup output script, kept so chain
	// filters can be re-registered after a restart.
	LockupScript string `json:"lockupScript,omitempty"`

	// LockupTransactionID is set once we broadcast the lockup.
	LockupTransactionID string `json:"lockupTransactionId,omitempty"`

	// LockupTransactionVout is the lockup output index.
	LockupTransactionVout uint32 `json:"lockupTransactionVout,omitempty"`

	// OnchainAmount is the amount locked up on chain.
	OnchainAmount btcutil.Amount `json:"onchainAmount"`

	// Fee is the service fee in satoshis.
	Fee btcutil.Amount `json:"fee"`

	// Referral is the referral id the swap was created with.
	Referral string `json:"referral,omitempty"`

	// CreatedAt is the creation time of the row.
	CreatedAt time.Time `json:"createdAt"`
}

// ChainSymbol returns the symbol of the on-chain leg.
func (r *ReverseSwap) ChainSymbol() (string, error) {
	base, quote, err := SplitPairID(r.Pair)
	if err != nil {
		return "", err
	}

	return ChainCurrency(base, quote, r.OrderSide, true), nil
}

// LightningSymbol returns the symbol of the Lightning leg.
func (r *ReverseSwap) LightningSymbol() (string, error) {
	base, quote, err := SplitPairID(r.Pair)
	if err != nil {
		return "", err
	}

	return LightningCurrency(base, quote, r.OrderSide, true), nil
}

// ChannelCreation is an optional side record attached 1:1 to a submarine
// swap that requests a channel to be opened to the payee.
type ChannelCreation struct {
	// SwapID is the id of the swap the record belongs to.
	SwapID string `json:"swapId"`

	// Type is the creation mode.
	Type ChannelType `json:"type"`

	// Private requests an unannounced channel.
	Private bool `json:"private"`

	// InboundLiquidity is the desired inbound liquidity in percent.
	InboundLiquidity uint8 `json:"inboundLiquidity"`

	// NodePublicKey is the destination node of the swap invoice, recorded
	// when the invoice is set.
	NodePublicKey string `json:"nodePublicKey,omitempty"`
}
