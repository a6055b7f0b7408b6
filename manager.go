package swapd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swap"
	"github.com/lightswap/swapd/swapdb"
)

// ManagerConfig holds the collaborators of a Manager.
type ManagerConfig struct {
	// Store persists swap rows.
	Store swapdb.Store

	// Wallets resolves per currency wallets.
	Wallets WalletManager

	// Nursery watches lockups and settles swaps.
	Nursery Nursery

	// NodeSwitch selects Lightning clients.
	NodeSwitch *NodeSwitch

	// RoutingHints provides hints for reverse swap invoices. Optional.
	RoutingHints RoutingHintsProvider

	// InvoiceExpiries overrides the default invoice expiry per symbol.
	InvoiceExpiries map[string]time.Duration

	// Clock is the time source. Defaults to the wall clock.
	Clock clock.Clock
}

// Manager is the entry point that turns validated swap requests into
// on-chain lockup parameters, persisted rows and, for reverse swaps, a
// payable invoice.
type Manager struct {
	cfg *ManagerConfig

	currencies    map[string]*Currency
	nodeFallback  *NodeFallback
	invoiceExpiry *InvoiceExpiryHelper
	clock         clock.Clock

	// swapMu serializes the read-modify-emit-settle sequence of
	// SetSwapInvoice process-wide.
	swapMu sync.Mutex
}

// NewManager creates a manager. Init must be called before any swap is
// created.
func NewManager(cfg *ManagerConfig) *Manager {
	c := cfg.Clock
	if c == nil {
		c = clock.NewDefaultClock()
	}

	return &Manager{
		cfg:           cfg,
		nodeFallback:  NewNodeFallback(cfg.NodeSwitch, cfg.RoutingHints),
		invoiceExpiry: NewInvoiceExpiryHelper(cfg.InvoiceExpiries),
		clock:         c,
	}
}

// Init indexes the currencies, starts the nursery and re-registers the chain
// filters and invoice subscriptions of all in-flight swaps so that
// monitoring resumes after a restart.
func (m *Manager) Init(ctx context.Context,
	currencies map[string]*Currency) error {

	m.currencies = currencies

	if m.cfg.Nursery != nil {
		if err := m.cfg.Nursery.Init(currencies); err != nil {
			return fmt.Errorf("unable to init nursery: %w", err)
		}
	}

	pendingSwaps, err := m.cfg.Store.GetSwaps(swapdb.SwapFilter{
		Statuses: swapdb.PendingSwapStatuses(swapdb.SwapTypeSubmarine),
	})
	if err != nil {
		return err
	}

	pendingReverse, err := m.cfg.Store.GetReverseSwaps(
		swapdb.ReverseSwapFilter{
			Statuses: swapdb.PendingSwapStatuses(
				swapdb.SwapTypeReverse,
			),
		},
	)
	if err != nil {
		return err
	}

	log.Infof("Recreating filters for %d Swaps and %d Reverse Swaps",
		len(pendingSwaps), len(pendingReverse))

	m.recreateSwapFilters(pendingSwaps)
	m.recreateReverseSwapFilters(ctx, pendingReverse)

	return nil
}

// ChannelCreationRequest asks for a channel to be opened to the payee of a
// submarine swap.
type ChannelCreationRequest struct {
	Type             swapdb.ChannelType
	Private          bool
	InboundLiquidity uint8
}

// CreateSwapArgs are the parameters of CreateSwap.
type CreateSwapArgs struct {
	PairID    string
	OrderSide swapdb.OrderSide
	Version   swap.Version

	// PreimageHash locks the on-chain leg.
	PreimageHash lntypes.Hash

	// RefundPublicKey is the refund key of the user. Nil for EVM chains.
	RefundPublicKey *btcec.PublicKey

	// TimeoutBlockDelta is the lockup timeout in chain leg blocks.
	TimeoutBlockDelta uint32

	Referral string

	// Channel optionally requests a channel creation.
	Channel *ChannelCreationRequest
}

// CreatedSwap is the public view of a newly created submarine swap.
type CreatedSwap struct {
	ID                 string
	TimeoutBlockHeight uint32
	Address            string

	// RedeemScript is set for legacy swaps.
	RedeemScript []byte

	// Tree is set for Taproot swaps.
	Tree *swap.Tree

	// ClaimPublicKey is our key in the lockup conditions.
	ClaimPublicKey *btcec.PublicKey

	// BlindingKey is set for confidential chains.
	BlindingKey *btcec.PrivateKey
}

// CreateSwap creates a submarine swap: a fresh key pair, the lockup script
// of the chain leg and the persisted row. The invoice is set separately via
// SetSwapInvoice.
func (m *Manager) CreateSwap(ctx context.Context,
	args *CreateSwapArgs) (*CreatedSwap, error) {

	base, quote, err := swapdb.SplitPairID(args.PairID)
	if err != nil {
		return nil, err
	}

	lightningCurrency, err := m.currency(swapdb.LightningCurrency(
		base, quote, args.OrderSide, false,
	))
	if err != nil {
		return nil, err
	}
	if !HasClient(lightningCurrency) {
		return nil, newError(CodeNoLightningSupport,
			"%s has no Lightning support",
			lightningCurrency.Symbol)
	}

	chainCurrency, err := m.currency(swapdb.ChainCurrency(
		base, quote, args.OrderSide, false,
	))
	if err != nil {
		return nil, err
	}

	id, err := generateID()
	if err != nil {
		return nil, err
	}

	swapLog(id).Infof("Creating new %s Swap from %s to Lightning",
		args.Version, chainCurrency.Symbol)

	height, err := currentHeight(ctx, chainCurrency)
	if err != nil {
		return nil, err
	}
	timeoutBlockHeight := height + args.TimeoutBlockDelta

	row := &swapdb.Swap{
		ID:                 id,
		Version:            args.Version,
		Pair:               args.PairID,
		OrderSide:          args.OrderSide,
		Status:             swapdb.StatusSwapCreated,
		PreimageHash:       args.PreimageHash.String(),
		TimeoutBlockHeight: timeoutBlockHeight,
		Referral:           args.Referral,
		CreatedAt:          m.clock.Now(),
	}

	created := &CreatedSwap{
		ID:                 id,
		TimeoutBlockHeight: timeoutBlockHeight,
	}

	if chainCurrency.Type.IsEvm() {
		address, err := chainCurrency.Evm.SwapContractAddress(
			args.Version,
			chainCurrency.Type == CurrencyERC20,
		)
		if err != nil {
			return nil, err
		}

		row.LockupAddress = address
		created.Address = address
	} else {
		wallet, err := m.cfg.Wallets.Wallet(chainCurrency.Symbol)
		if err != nil {
			return nil, err
		}

		keys, err := wallet.GetNewKeys()
		if err != nil {
			return nil, err
		}

		outputType := swap.OutputNP2WSH
		if args.Version == swap.VersionTaproot {
			outputType = swap.OutputP2TR
		}

		htlc, err := swap.NewSubmarineHtlc(
			args.Version, args.PreimageHash, keys.PublicKey,
			args.RefundPublicKey, timeoutBlockHeight, outputType,
		)
		if err != nil {
			return nil, err
		}

		address, err := wallet.EncodeAddress(htlc.PkScript)
		if err != nil {
			return nil, err
		}

		if chainCurrency.Type == CurrencyLiquid {
			created.BlindingKey, err =
				wallet.DeriveBlindingKeyFromScript(
					htlc.PkScript,
				)
			if err != nil {
				return nil, err
			}
		}

		row.KeyIndex = keys.Index
		row.LockupAddress = address
		row.LockupScript = hex.EncodeToString(htlc.PkScript)
		if args.RefundPublicKey != nil {
			row.RefundPublicKey = hex.EncodeToString(
				args.RefundPublicKey.SerializeCompressed(),
			)
		}

		created.Address = address
		created.ClaimPublicKey = keys.PublicKey

		if htlc.RedeemScript != nil {
			row.RedeemScript = hex.EncodeToString(
				htlc.RedeemScript,
			)
			created.RedeemScript = htlc.RedeemScript
		}
		if htlc.Tree != nil {
			serialized, err := htlc.Tree.Serialize()
			if err != nil {
				return nil, err
			}

			row.SerializedTree = string(serialized)
			created.Tree = htlc.Tree
		}

		if chainCurrency.ChainClient != nil {
			chainCurrency.ChainClient.AddOutputFilter(
				htlc.PkScript,
			)
		}
	}

	if err := m.cfg.Store.AddSwap(row); err != nil {
		return nil, err
	}

	if args.Channel != nil {
		err := m.cfg.Store.AddChannelCreation(&swapdb.ChannelCreation{
			SwapID:           id,
			Type:             args.Channel.Type,
			Private:          args.Channel.Private,
			InboundLiquidity: args.Channel.InboundLiquidity,
		})
		if err != nil {
			return nil, err
		}
	}

	return created, nil
}

// SetSwapInvoice validates and records the invoice of a submarine swap. The
// emit callback fires, under the swap lock, after the invoice is persisted
// and before settlement is attempted, so subscribers observe the invoice
// even when settling fails.
func (m *Manager) SetSwapInvoice(ctx context.Context, sw *swapdb.Swap,
	invoice string, invoiceAmount, expectedAmount, fee btcutil.Amount,
	acceptZeroConf, canBeRouted bool, emit func(id string)) error {

	lightningSymbol, err := sw.LightningSymbol()
	if err != nil {
		return err
	}

	lightningCurrency, err := m.currency(lightningSymbol)
	if err != nil {
		return err
	}

	decodeClient, err := Fallback(lightningCurrency, nil)
	if err != nil {
		return err
	}

	decoded, err := decodeClient.DecodeInvoice(ctx, invoice)
	if err != nil {
		return fmt.Errorf("unable to decode invoice: %w", err)
	}

	if decoded.PaymentHash == nil ||
		decoded.PaymentHash.String() != sw.PreimageHash {

		return newError(CodeInvalidPreimageHash,
			"invoice preimage hash does not match swap hash %s",
			sw.PreimageHash)
	}

	expiresAt := m.invoiceExpiry.ExpiresAt(lightningSymbol, decoded)
	if !expiresAt.After(m.clock.Now()) {
		return newError(CodeInvoiceExpiredAlready,
			"invoice expired already at %v", expiresAt)
	}

	channelCreation, err := m.cfg.Store.GetChannelCreation(sw.ID)
	switch {
	case errors.Is(err, swapdb.ErrSwapNotFound):
		channelCreation = nil

	case err != nil:
		return err
	}

	if channelCreation != nil {
		err := m.checkChannelCreation(
			ctx, sw, channelCreation, decoded, expiresAt,
			canBeRouted,
		)
		if err != nil {
			return err
		}
	} else if len(decoded.RoutingHints) == 0 && !canBeRouted {
		return newError(CodeUnroutableInvoice,
			"invoice of Swap %s has no routing hints and cannot "+
				"be routed", sw.ID)
	}

	// At most one invoice-set and settlement sequence runs at a time
	// process-wide. The row is re-read inside the lock because the
	// nursery may have progressed the swap in the meantime.
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	stored, err := m.cfg.Store.GetSwap(swapdb.SwapFilter{ID: sw.ID})
	if err != nil {
		return err
	}
	previousStatus := stored.Status

	err = m.cfg.Store.SetInvoice(
		stored, invoice, invoiceAmount, expectedAmount, fee,
		acceptZeroConf,
	)
	if err != nil {
		return err
	}

	updated, err := m.cfg.Store.GetSwap(swapdb.SwapFilter{ID: sw.ID})
	if err != nil {
		return err
	}
	*sw = *updated

	if emit != nil {
		emit(updated.ID)
	}

	// Settle right away when the lockup was seen before the invoice
	// arrived. Failures must not fail the invoice-set itself.
	if updated.LockupTransactionID != "" &&
		previousStatus != swapdb.StatusTransactionZeroConfRejected &&
		m.cfg.Nursery != nil {

		err := m.settleSwap(ctx, updated)
		if err != nil {
			swapLog(updated.ID).Warnf("Could not settle Swap: %v",
				err)
		}
	}

	return nil
}

// settleSwap hands a swap whose lockup is already known to the nursery.
func (m *Manager) settleSwap(ctx context.Context, sw *swapdb.Swap) error {
	chainSymbol, err := sw.ChainSymbol()
	if err != nil {
		return err
	}

	chainCurrency, err := m.currency(chainSymbol)
	if err != nil {
		return err
	}

	return m.cfg.Nursery.AttemptSettleSwap(ctx, chainCurrency, sw)
}

// checkChannelCreation verifies that the invoice of a swap with a channel
// creation request expires after the on-chain timeout, dropping the request
// in auto mode and failing in manual mode otherwise, and records the
// destination node on the record.
func (m *Manager) checkChannelCreation(ctx context.Context, sw *swapdb.Swap,
	channelCreation *swapdb.ChannelCreation,
	decoded *lightning.DecodedInvoice, expiresAt time.Time,
	canBeRouted bool) error {

	chainSymbol, err := sw.ChainSymbol()
	if err != nil {
		return err
	}

	chainCurrency, err := m.currency(chainSymbol)
	if err != nil {
		return err
	}

	height, err := currentHeight(ctx, chainCurrency)
	if err != nil {
		return err
	}

	blocksUntilExpiry := int32(sw.TimeoutBlockHeight) - int32(height)
	timeoutDeadline := m.clock.Now().Add(time.Duration(
		float64(blocksUntilExpiry)*
			BlockTimeMinutes(chainSymbol)) * time.Minute)

	if expiresAt.Before(timeoutDeadline) {
		if channelCreation.Type != swapdb.ChannelAuto {
			return newError(CodeInvoiceExpiresTooEarly,
				"invoice expires at %v, before the on-chain "+
					"deadline %v", expiresAt,
				timeoutDeadline)
		}

		swapLog(sw.ID).Infof("Dropping channel creation: invoice " +
			"expires before the on-chain deadline")

		if !canBeRouted {
			return newError(CodeUnroutableInvoice,
				"invoice of Swap %s cannot be routed without "+
					"a channel creation", sw.ID)
		}
	}

	if decoded.Payee != nil {
		err := m.cfg.Store.SetNodePublicKey(
			channelCreation, decoded.Payee.String(),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// CreateReverseSwapArgs are the parameters of CreateReverseSwap.
type CreateReverseSwapArgs struct {
	PairID    string
	OrderSide swapdb.OrderSide
	Version   swap.Version

	// PreimageHash locks the hold invoice and the on-chain leg.
	PreimageHash lntypes.Hash

	// ClaimPublicKey is the claim key of the user. Nil for EVM chains.
	ClaimPublicKey *btcec.PublicKey

	// ClaimAddress is the claim address of the user on EVM chains.
	ClaimAddress string

	// InvoiceAmount is the amount of the hold invoice.
	InvoiceAmount btcutil.Amount

	// OnchainAmount is the amount locked up on chain.
	OnchainAmount btcutil.Amount

	// OnchainTimeoutBlockDelta is the lockup timeout in chain leg blocks.
	OnchainTimeoutBlockDelta uint32

	// LightningTimeoutBlockDelta is the CLTV expiry of the hold invoice.
	LightningTimeoutBlockDelta uint32

	// PrepayMinerFeeInvoiceAmount requests a second hold invoice prepaying
	// miner fees when non zero.
	PrepayMinerFeeInvoiceAmount btcutil.Amount

	// PrepayMinerFeeOnchainAmount is the lockup amount the prepay covers.
	PrepayMinerFeeOnchainAmount btcutil.Amount

	// InvoiceExpiry overrides the backend expiry of the hold invoices.
	InvoiceExpiry time.Duration

	Memo            string
	DescriptionHash []byte

	// RoutingNode requests hints towards this node in the invoice.
	RoutingNode string

	// RoutingHints are externally supplied hint lists.
	RoutingHints [][]lightning.HopHint

	Referral string
}

// CreatedReverseSwap is the public view of a newly created reverse swap.
type CreatedReverseSwap struct {
	ID                 string
	Invoice            string
	MinerFeeInvoice    string
	TimeoutBlockHeight uint32
	LockupAddress      string

	// RedeemScript is set for legacy swaps.
	RedeemScript []byte

	// Tree is set for Taproot swaps.
	Tree *swap.Tree

	// RefundPublicKey is our key in the lockup conditions.
	RefundPublicKey *btcec.PublicKey

	// BlindingKey is set for confidential chains.
	BlindingKey *btcec.PrivateKey

	// Node is the node type that issued the invoice.
	Node lightning.NodeType
}

// CreateReverseSwap creates a reverse swap: the hold invoice on the first
// responsive node candidate, an optional prepay invoice, the lockup script
// of the chain leg and the persisted row.
func (m *Manager) CreateReverseSwap(ctx context.Context,
	args *CreateReverseSwapArgs) (*CreatedReverseSwap, error) {

	base, quote, err := swapdb.SplitPairID(args.PairID)
	if err != nil {
		return nil, err
	}

	lightningCurrency, err := m.currency(swapdb.LightningCurrency(
		base, quote, args.OrderSide, true,
	))
	if err != nil {
		return nil, err
	}
	if !HasClient(lightningCurrency) {
		return nil, newError(CodeNoLightningSupport,
			"%s has no Lightning support",
			lightningCurrency.Symbol)
	}

	chainCurrency, err := m.currency(swapdb.ChainCurrency(
		base, quote, args.OrderSide, true,
	))
	if err != nil {
		return nil, err
	}

	id, err := generateID()
	if err != nil {
		return nil, err
	}

	swapLog(id).Infof("Creating new %s Reverse Swap from Lightning to %s",
		args.Version, chainCurrency.Symbol)

	invoice, err := m.nodeFallback.GetReverseSwapInvoice(
		ctx, id, args.Referral, args.RoutingNode, lightningCurrency,
		args.InvoiceAmount, args.PreimageHash, &HoldInvoiceRequest{
			CltvExpiry:      args.LightningTimeoutBlockDelta,
			Expiry:          args.InvoiceExpiry,
			Memo:            args.Memo,
			DescriptionHash: args.DescriptionHash,
			RoutingHints:    args.RoutingHints,
		},
	)
	if err != nil {
		return nil, err
	}

	err = invoice.Client.SubscribeSingleInvoice(ctx, args.PreimageHash)
	if err != nil {
		return nil, err
	}

	row := &swapdb.ReverseSwap{
		ID:            id,
		Version:       args.Version,
		Pair:          args.PairID,
		OrderSide:     args.OrderSide,
		Status:        swapdb.StatusSwapCreated,
		Node:          invoice.Node,
		PreimageHash:  args.PreimageHash.String(),
		Invoice:       invoice.PaymentRequest,
		InvoiceAmount: args.InvoiceAmount,
		OnchainAmount: args.OnchainAmount,
		Referral:      args.Referral,
		CreatedAt:     m.clock.Now(),
	}

	created := &CreatedReverseSwap{
		ID:      id,
		Invoice: invoice.PaymentRequest,
		Node:    invoice.Node,
	}

	if args.PrepayMinerFeeInvoiceAmount > 0 {
		minerFeeInvoice, preimage, err := m.createPrepayInvoice(
			ctx, invoice.Client, chainCurrency.Symbol, args,
		)
		if err != nil {
			return nil, err
		}

		row.MinerFeeInvoice = minerFeeInvoice
		row.MinerFeeInvoicePreimage = preimage.String()
		row.MinerFeeOnchainAmount = args.PrepayMinerFeeOnchainAmount
		created.MinerFeeInvoice = minerFeeInvoice
	}

	height, err := currentHeight(ctx, chainCurrency)
	if err != nil {
		return nil, err
	}
	timeoutBlockHeight := height + args.OnchainTimeoutBlockDelta
	row.TimeoutBlockHeight = timeoutBlockHeight
	created.TimeoutBlockHeight = timeoutBlockHeight

	if chainCurrency.Type.IsEvm() {
		address, err := chainCurrency.Evm.SwapContractAddress(
			args.Version,
			chainCurrency.Type == CurrencyERC20,
		)
		if err != nil {
			return nil, err
		}

		row.LockupAddress = address
		row.ClaimAddress = args.ClaimAddress
		created.LockupAddress = address
	} else {
		wallet, err := m.cfg.Wallets.Wallet(chainCurrency.Symbol)
		if err != nil {
			return nil, err
		}

		keys, err := wallet.GetNewKeys()
		if err != nil {
			return nil, err
		}

		outputType := swap.OutputP2WSH
		if args.Version == swap.VersionTaproot {
			outputType = swap.OutputP2TR
		}

		htlc, err := swap.NewReverseHtlc(
			args.Version, args.PreimageHash, args.ClaimPublicKey,
			keys.PublicKey, timeoutBlockHeight, outputType,
		)
		if err != nil {
			return nil, err
		}

		address, err := wallet.EncodeAddress(htlc.PkScript)
		if err != nil {
			return nil, err
		}

		if chainCurrency.Type == CurrencyLiquid {
			created.BlindingKey, err =
				wallet.DeriveBlindingKeyFromScript(
					htlc.PkScript,
				)
			if err != nil {
				return nil, err
			}
		}

		row.KeyIndex = keys.Index
		row.LockupAddress = address
		row.LockupScript = hex.EncodeToString(htlc.PkScript)
		if args.ClaimPublicKey != nil {
			row.ClaimPublicKey = hex.EncodeToString(
				args.ClaimPublicKey.SerializeCompressed(),
			)
		}

		created.LockupAddress = address
		created.RefundPublicKey = keys.PublicKey

		if htlc.RedeemScript != nil {
			row.RedeemScript = hex.EncodeToString(
				htlc.RedeemScript,
			)
			created.RedeemScript = htlc.RedeemScript
		}
		if htlc.Tree != nil {
			serialized, err := htlc.Tree.Serialize()
			if err != nil {
				return nil, err
			}

			row.SerializedTree = string(serialized)
			created.Tree = htlc.Tree
		}
	}

	if err := m.cfg.Store.AddReverseSwap(row); err != nil {
		return nil, err
	}

	return created, nil
}

// createPrepayInvoice creates the prepay miner fee hold invoice with a fresh
// random preimage and subscribes to it.
func (m *Manager) createPrepayInvoice(ctx context.Context,
	client lightning.LightningClient, chainSymbol string,
	args *CreateReverseSwapArgs) (string, lntypes.Preimage, error) {

	var raw [lntypes.PreimageSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", lntypes.Preimage{}, err
	}

	preimage, err := lntypes.MakePreimage(raw[:])
	if err != nil {
		return "", lntypes.Preimage{}, err
	}
	preimageHash := preimage.Hash()

	invoice, err := client.AddHoldInvoice(
		ctx, args.PrepayMinerFeeInvoiceAmount, preimageHash, 0,
		args.InvoiceExpiry,
		fmt.Sprintf("Miner fee for sending to %s address", chainSymbol),
		nil, nil,
	)
	if err != nil {
		return "", lntypes.Preimage{}, err
	}

	if err := client.SubscribeSingleInvoice(ctx, preimageHash); err != nil {
		return "", lntypes.Preimage{}, err
	}

	return invoice, preimage, nil
}

// recreateSwapFilters re-registers the chain filters of in-flight submarine
// swaps.
func (m *Manager) recreateSwapFilters(swaps []*swapdb.Swap) {
	for _, sw := range swaps {
		chainSymbol, err := sw.ChainSymbol()
		if err != nil {
			swapLog(sw.ID).Warnf("Could not recreate filters: %v",
				err)
			continue
		}

		currency, err := m.currency(chainSymbol)
		if err != nil || currency.ChainClient == nil {
			continue
		}

		if sw.LockupScript != "" {
			script, err := hex.DecodeString(sw.LockupScript)
			if err == nil {
				currency.ChainClient.AddOutputFilter(script)
			}
		}

		if sw.LockupTransactionID != "" {
			currency.ChainClient.AddInputFilter(
				sw.LockupTransactionID,
			)
		}
	}
}

// recreateReverseSwapFilters re-registers the invoice subscriptions and
// chain filters of in-flight reverse swaps.
func (m *Manager) recreateReverseSwapFilters(ctx context.Context,
	swaps []*swapdb.ReverseSwap) {

	for _, sw := range swaps {
		switch sw.Status {
		case swapdb.StatusSwapCreated, swapdb.StatusMinerFeePaid:
			m.resubscribeReverseSwap(ctx, sw)

		case swapdb.StatusTransactionMempool,
			swapdb.StatusTransactionConfirmed:

			chainSymbol, err := sw.ChainSymbol()
			if err != nil {
				continue
			}

			currency, err := m.currency(chainSymbol)
			if err != nil || currency.ChainClient == nil {
				continue
			}

			if sw.LockupTransactionID != "" {
				currency.ChainClient.AddInputFilter(
					sw.LockupTransactionID,
				)
			}
		}
	}
}

// resubscribeReverseSwap restores the invoice subscriptions of a reverse
// swap waiting for its payment.
func (m *Manager) resubscribeReverseSwap(ctx context.Context,
	sw *swapdb.ReverseSwap) {

	logger := swapLog(sw.ID)

	lightningSymbol, err := sw.LightningSymbol()
	if err != nil {
		logger.Warnf("Could not resubscribe Reverse Swap: %v", err)
		return
	}

	currency, err := m.currency(lightningSymbol)
	if err != nil {
		logger.Warnf("Could not resubscribe Reverse Swap: %v", err)
		return
	}

	client, err := GetReverseSwapNode(currency, sw)
	if err != nil {
		logger.Warnf("Could not resubscribe Reverse Swap: %v", err)
		return
	}

	preimageHash, err := lntypes.MakeHashFromStr(sw.PreimageHash)
	if err != nil {
		logger.Warnf("Could not resubscribe Reverse Swap: %v", err)
		return
	}

	if err := client.SubscribeSingleInvoice(ctx, preimageHash); err != nil {
		logger.Warnf("Could not resubscribe Reverse Swap: %v", err)
	}

	if sw.MinerFeeInvoice != "" &&
		sw.Status != swapdb.StatusMinerFeePaid &&
		sw.MinerFeeInvoicePreimage != "" {

		preimage, err := lntypes.MakePreimageFromStr(
			sw.MinerFeeInvoicePreimage,
		)
		if err != nil {
			logger.Warnf("Could not resubscribe prepay "+
				"invoice: %v", err)
			return
		}

		err = client.SubscribeSingleInvoice(ctx, preimage.Hash())
		if err != nil {
			logger.Warnf("Could not resubscribe prepay "+
				"invoice: %v", err)
		}
	}
}

// swapLog returns a logger that prefixes all messages with the swap id.
func swapLog(id string) *swap.PrefixLog {
	return &swap.PrefixLog{
		Logger: log,
		ID:     id,
	}
}

// currency resolves a configured currency by symbol.
func (m *Manager) currency(symbol string) (*Currency, error) {
	currency, ok := m.currencies[symbol]
	if !ok {
		return nil, newError(CodeCurrencyNotFound,
			"could not find currency: %s", symbol)
	}

	return currency, nil
}
