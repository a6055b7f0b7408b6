package swapd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swap"
	"github.com/lightswap/swapd/swapdb"
	"golang.org/x/sync/errgroup"
)

const (
	// NoRoutes is the sentinel CheckRoutability returns when no route to
	// the destination could be found.
	NoRoutes int32 = -1

	// cltvLimitSafetyMargin is subtracted from the remaining CLTV budget
	// of a swap to leave room for the confirmation of a claim.
	cltvLimitSafetyMargin = 20

	// minRouteHintBlocks is the floor applied to CLTV deltas of invoices
	// we cannot query routes for, our own reverse swap invoices and
	// BOLT12 offers.
	minRouteHintBlocks int32 = 144
)

// blockTimesMinutes maps currency symbols to their block times in minutes.
var blockTimesMinutes = map[string]float64{
	"BTC":   10,
	"LTC":   2.5,
	"ETH":   0.2,
	"L-BTC": 1,
}

// BlockTimeMinutes returns the block time of a symbol in minutes. Unknown
// symbols are assumed to be tokens on the EVM chain.
func BlockTimeMinutes(symbol string) float64 {
	if blockTime, ok := blockTimesMinutes[symbol]; ok {
		return blockTime
	}

	return blockTimesMinutes["ETH"]
}

// ConvertBlocks converts a block count of one chain into the equivalent
// count on another chain, rounding up so converted timeouts never get
// shorter.
func ConvertBlocks(fromSymbol, toSymbol string, blocks int32) int32 {
	minutes := float64(blocks) * BlockTimeMinutes(fromSymbol)
	return int32(math.Ceil(minutes / BlockTimeMinutes(toSymbol)))
}

// TimeoutDeltaMinutes is the timeout policy of a pair in minutes, as
// configured.
type TimeoutDeltaMinutes struct {
	Chain       float64
	Reverse     float64
	SwapMinimal float64
	SwapMaximal float64
	SwapTaproot float64
}

// SingleTimeoutDelta fans one legacy timeout value into every field of the
// policy.
func SingleTimeoutDelta(minutes float64) *TimeoutDeltaMinutes {
	return &TimeoutDeltaMinutes{
		Chain:       minutes,
		Reverse:     minutes,
		SwapMinimal: minutes,
		SwapMaximal: minutes,
		SwapTaproot: minutes,
	}
}

// PairConfig is the startup configuration of a trading pair.
type PairConfig struct {
	Base  string
	Quote string

	// TimeoutDelta is the timeout policy of the pair. Required.
	TimeoutDelta *TimeoutDeltaMinutes
}

// PairTimeoutBlocksDelta is the timeout policy of one leg of a pair,
// converted to block counts of that leg's chain.
type PairTimeoutBlocksDelta struct {
	Chain       uint32
	Reverse     uint32
	SwapMinimal uint32
	SwapMaximal uint32
	SwapTaproot uint32
}

// pairTimeouts holds the converted policy of both legs of a pair.
type pairTimeouts struct {
	base  PairTimeoutBlocksDelta
	quote PairTimeoutBlocksDelta
}

// TimeoutDeltaProvider is the single source of truth for how many blocks a
// swap leg must remain unspendable, per pair, per swap type and per leg
// currency. For submarine swaps with a known invoice it tightens the static
// policy using live route queries.
type TimeoutDeltaProvider struct {
	currencies map[string]*Currency
	nodeSwitch *NodeSwitch
	store      swapdb.Store
	offsets    *RoutingOffsets

	mu            sync.RWMutex
	timeoutDeltas map[string]pairTimeouts
}

// NewTimeoutDeltaProvider creates a provider. Init must be called before the
// provider is used.
func NewTimeoutDeltaProvider(currencies map[string]*Currency,
	nodeSwitch *NodeSwitch, store swapdb.Store,
	offsets *RoutingOffsets) *TimeoutDeltaProvider {

	if offsets == nil {
		offsets = NewRoutingOffsets(nil, nil)
	}

	return &TimeoutDeltaProvider{
		currencies:    currencies,
		nodeSwitch:    nodeSwitch,
		store:         store,
		offsets:       offsets,
		timeoutDeltas: make(map[string]pairTimeouts),
	}
}

// Init validates and converts the timeout policy of every configured pair.
// Pairs without a policy and policies that do not convert to a positive
// whole number of blocks are configuration errors.
func (t *TimeoutDeltaProvider) Init(pairs []PairConfig) error {
	for _, pair := range pairs {
		pairID := swapdb.GetPairID(pair.Base, pair.Quote)

		if pair.TimeoutDelta == nil {
			return newError(CodeNoTimeoutDelta,
				"no timeout delta for pair: %s", pairID)
		}

		timeouts, err := minutesToBlocks(
			pair.Base, pair.Quote, pair.TimeoutDelta,
		)
		if err != nil {
			return err
		}

		log.Debugf("Setting timeout block delta of %s to minutes: %v",
			pairID, *pair.TimeoutDelta)

		t.mu.Lock()
		t.timeoutDeltas[pairID] = timeouts
		t.mu.Unlock()
	}

	return nil
}

// SetTimeouts replaces the timeout policy of an already configured pair at
// runtime. The update applies to subsequent calls only.
func (t *TimeoutDeltaProvider) SetTimeouts(pairID string,
	deltas *TimeoutDeltaMinutes) error {

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.timeoutDeltas[pairID]; !ok {
		return newError(CodePairNotFound,
			"could not find pair: %s", pairID)
	}

	base, quote, err := swapdb.SplitPairID(pairID)
	if err != nil {
		return err
	}

	timeouts, err := minutesToBlocks(base, quote, deltas)
	if err != nil {
		return err
	}

	t.timeoutDeltas[pairID] = timeouts

	return nil
}

// GetCltvLimit returns the remaining CLTV budget of a submarine swap,
// converted into the Lightning leg's block units, minus a safety margin.
func (t *TimeoutDeltaProvider) GetCltvLimit(ctx context.Context,
	swap *swapdb.Swap) (int32, error) {

	base, quote, err := swapdb.SplitPairID(swap.Pair)
	if err != nil {
		return 0, err
	}

	chainSymbol := swapdb.ChainCurrency(base, quote, swap.OrderSide, false)
	chainCurrency, ok := t.currencies[chainSymbol]
	if !ok {
		return 0, newError(CodeCurrencyNotFound,
			"could not find currency: %s", chainSymbol)
	}

	height, err := currentHeight(ctx, chainCurrency)
	if err != nil {
		return 0, err
	}

	blocksLeft := ConvertBlocks(
		chainSymbol,
		swapdb.LightningCurrency(base, quote, swap.OrderSide, false),
		int32(swap.TimeoutBlockHeight)-int32(height),
	)

	return blocksLeft - cltvLimitSafetyMargin, nil
}

// GetTimeout returns the timeout block delta a new swap of the given kind
// should use on its chain leg. The boolean reports whether the delta is
// final; a false result signals that routability of the invoice could not be
// verified and the configured maximum was used instead.
func (t *TimeoutDeltaProvider) GetTimeout(ctx context.Context, pairID string,
	side swapdb.OrderSide, swapType swapdb.SwapType, version swap.Version,
	invoice string, referralID string) (uint32, bool, error) {

	t.mu.RLock()
	timeouts, ok := t.timeoutDeltas[pairID]
	t.mu.RUnlock()

	if !ok {
		return 0, false, newError(CodePairNotFound,
			"could not find pair: %s", pairID)
	}

	base, quote, err := swapdb.SplitPairID(pairID)
	if err != nil {
		return 0, false, err
	}

	half := func(symbol string) PairTimeoutBlocksDelta {
		if symbol == base {
			return timeouts.base
		}

		return timeouts.quote
	}

	switch swapType {
	case swapdb.SwapTypeChain:
		chain := swapdb.ChainCurrency(base, quote, side, true)
		return half(chain).Chain, false, nil

	case swapdb.SwapTypeReverse:
		chain := swapdb.ChainCurrency(base, quote, side, true)
		return half(chain).Reverse, false, nil
	}

	chain := swapdb.ChainCurrency(base, quote, side, false)
	lightningSymbol := swapdb.LightningCurrency(base, quote, side, false)

	if invoice == "" {
		if version == swap.VersionTaproot {
			return half(chain).SwapTaproot, true, nil
		}

		return half(chain).SwapMinimal, true, nil
	}

	return t.getTimeoutInvoice(
		ctx, pairID, chain, lightningSymbol, half(chain),
		half(lightningSymbol), version, invoice, referralID,
	)
}

// getTimeoutInvoice computes the tightest safe chain side timeout for a
// submarine swap paying the given invoice.
func (t *TimeoutDeltaProvider) getTimeoutInvoice(ctx context.Context,
	pairID, chainSymbol, lightningSymbol string,
	chainTimeout, lightningTimeout PairTimeoutBlocksDelta,
	version swap.Version, invoice, referralID string) (uint32, bool,
	error) {

	currency, ok := t.currencies[lightningSymbol]
	if !ok {
		return 0, false, newError(CodeCurrencyNotFound,
			"could not find currency: %s", lightningSymbol)
	}

	decodeClient, err := Fallback(currency, nil)
	if err != nil {
		return 0, false, err
	}

	decoded, err := decodeClient.DecodeInvoice(ctx, invoice)
	if err != nil {
		return 0, false, fmt.Errorf("unable to decode invoice: %w", err)
	}

	client, err := t.nodeSwitch.GetSwapNode(
		currency, decoded, SwapNodeOpts{Referral: referralID},
	)
	if err != nil {
		return 0, false, err
	}

	routeDelta := t.CheckRoutability(
		ctx, currency, client, decoded, lightningTimeout.SwapMaximal,
	)
	if routeDelta == NoRoutes {
		return chainTimeout.SwapMaximal, false, nil
	}

	// Taproot swaps always use their fixed delta, route based tightening
	// only applies to the legacy script path.
	if version == swap.VersionTaproot {
		return chainTimeout.SwapTaproot, true, nil
	}

	log.Debugf("CLTV needed to route: %d %s blocks", routeDelta,
		lightningSymbol)

	routeMinutes := int64(math.Ceil(
		float64(routeDelta) * BlockTimeMinutes(lightningSymbol),
	))

	destinations := make([]string, 0, len(decoded.RoutingHints)+1)
	if decoded.Payee != nil {
		destinations = append(destinations, decoded.Payee.String())
	}
	for _, hints := range decoded.RoutingHints {
		if len(hints) > 0 {
			destinations = append(destinations, hints[0].NodeID)
		}
	}

	offset := t.offsets.GetOffset(pairID, destinations)
	finalExpiry := routeMinutes + offset

	minTimeout := uint32(math.Ceil(
		float64(finalExpiry) / BlockTimeMinutes(chainSymbol),
	))

	if minTimeout > chainTimeout.SwapMaximal {
		return 0, false, &MinExpiryTooBigError{
			MaxMinutes: int64(math.Ceil(
				float64(chainTimeout.SwapMaximal) *
					BlockTimeMinutes(chainSymbol),
			)),
			RouteMinutes:  routeMinutes,
			OffsetMinutes: offset,
		}
	}

	cltv := chainTimeout.SwapMinimal
	if minTimeout > cltv {
		cltv = minTimeout
	}

	log.Debugf("Using timeout of: %d %s blocks", cltv, chainSymbol)

	return cltv, true, nil
}

// CheckRoutability returns the largest CLTV delta, relative to the current
// chain height, among the routes the client can find to the destination of
// the invoice, or NoRoutes when none could be found. Route query failures
// degrade to the sentinel, the method never returns an error.
func (t *TimeoutDeltaProvider) CheckRoutability(ctx context.Context,
	currency *Currency, client lightning.LightningClient,
	decoded *lightning.DecodedInvoice, cltvLimit uint32) int32 {

	// Invoices of our own pending reverse swaps cannot be routed to from
	// our own nodes. Trust the CLTV we decoded when issuing them.
	if decoded.PaymentHash != nil && t.store != nil {
		_, err := t.store.GetReverseSwap(swapdb.ReverseSwapFilter{
			PreimageHash: decoded.PaymentHash.String(),
			Statuses: swapdb.PendingSwapStatuses(
				swapdb.SwapTypeReverse,
			),
		})
		switch {
		case err == nil:
			return flooredCltv(decoded)

		case !errors.Is(err, swapdb.ErrSwapNotFound):
			log.Warnf("Could not check for own reverse swap: %v",
				err)
		}
	}

	// BOLT12 invoices do not expose enough to query routes for.
	if decoded.Type == lightning.InvoiceTypeBolt12 {
		return flooredCltv(decoded)
	}

	if decoded.Payee == nil {
		return NoRoutes
	}

	amountToQuery := decoded.AmountSat()
	if decoded.HasFeature(lightning.FeatureMPP) {
		parts := amountToQuery / lightning.PaymentMaxParts
		if amountToQuery%lightning.PaymentMaxParts != 0 {
			parts++
		}
		amountToQuery = parts
	}
	if amountToQuery < 1 {
		amountToQuery = 1
	}

	// One query without hints plus one per hint list, run concurrently.
	// A query that errors is excluded from the result set.
	hintSets := make([][][]lightning.HopHint, 0,
		len(decoded.RoutingHints)+1)
	hintSets = append(hintSets, nil)
	for _, hints := range decoded.RoutingHints {
		hintSets = append(
			hintSets, [][]lightning.HopHint{hints},
		)
	}

	var (
		mu      sync.Mutex
		highest = NoRoutes
	)

	eg, ectx := errgroup.WithContext(ctx)

	// Route time locks reported by lnd are absolute block heights, so the
	// current height of the Lightning leg is needed to make them
	// relative. Failing to fetch it makes the results unusable.
	isLnd := client == currency.LndClient

	var height uint32
	if isLnd {
		eg.Go(func() error {
			var err error
			height, err = currentHeight(ectx, currency)
			return err
		})
	}

	for _, hints := range hintSets {
		hints := hints
		eg.Go(func() error {
			routes, err := client.QueryRoutes(
				ectx, *decoded.Payee, amountToQuery,
				cltvLimit, decoded.MinFinalCltv, hints,
			)
			if err != nil {
				log.Debugf("Could not query routes: %v", err)
				return nil
			}

			mu.Lock()
			for _, route := range routes {
				if route.Cltv > highest {
					highest = route.Cltv
				}
			}
			mu.Unlock()

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		log.Debugf("Could not query routes: %v", err)
		return NoRoutes
	}

	if highest == NoRoutes {
		return NoRoutes
	}

	if isLnd {
		return highest - int32(height)
	}

	return highest
}

// flooredCltv returns the final CLTV of the invoice, floored so that swaps
// relying on it keep a usable budget.
func flooredCltv(decoded *lightning.DecodedInvoice) int32 {
	cltv := int32(decoded.MinFinalCltv)
	if cltv < minRouteHintBlocks {
		return minRouteHintBlocks
	}

	return cltv
}

// currentHeight returns the block height of the chain a currency settles on.
func currentHeight(ctx context.Context, currency *Currency) (uint32, error) {
	switch {
	case currency.ChainClient != nil:
		info, err := currency.ChainClient.GetBlockchainInfo(ctx)
		if err != nil {
			return 0, err
		}

		return info.Blocks, nil

	case currency.Evm != nil:
		height, err := currency.Evm.GetBlockNumber(ctx)
		if err != nil {
			return 0, err
		}

		return uint32(height), nil

	default:
		return 0, fmt.Errorf("no chain backend for currency %s",
			currency.Symbol)
	}
}

// minutesToBlocks converts a minute policy into per leg block counts,
// rejecting values that are not a positive whole number of blocks.
func minutesToBlocks(base, quote string,
	deltas *TimeoutDeltaMinutes) (pairTimeouts, error) {

	calculateBlocks := func(symbol string, minutes float64) (uint32,
		error) {

		blocks := minutes / BlockTimeMinutes(symbol)

		if blocks < 1 || math.Abs(blocks-math.Round(blocks)) > 1e-9 {
			return 0, newError(CodeInvalidTimeoutBlockDelta,
				"invalid timeout block delta of %v minutes "+
					"for %s", minutes, symbol)
		}

		return uint32(math.Round(blocks)), nil
	}

	convert := func(symbol string) (PairTimeoutBlocksDelta, error) {
		var (
			converted PairTimeoutBlocksDelta
			err       error
		)

		fields := []struct {
			minutes float64
			target  *uint32
		}{
			{deltas.Chain, &converted.Chain},
			{deltas.Reverse, &converted.Reverse},
			{deltas.SwapMinimal, &converted.SwapMinimal},
			{deltas.SwapMaximal, &converted.SwapMaximal},
			{deltas.SwapTaproot, &converted.SwapTaproot},
		}
		for _, field := range fields {
			*field.target, err = calculateBlocks(
				symbol, field.minutes,
			)
			if err != nil {
				return converted, err
			}
		}

		return converted, nil
	}

	var (
		timeouts pairTimeouts
		err      error
	)

	timeouts.base, err = convert(base)
	if err != nil {
		return timeouts, err
	}

	timeouts.quote, err = convert(quote)
	if err != nil {
		return timeouts, err
	}

	return timeouts, nil
}
