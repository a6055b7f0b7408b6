package swapd

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/routing/route"
	"github.com/lightswap/swapd/lightning"
	"github.com/lightswap/swapd/swap"
	"github.com/lightswap/swapd/swapdb"
	"github.com/stretchr/testify/require"
)

// mockLightningClient implements lightning.LightningClient with overridable
// hooks and call recording.
type mockLightningClient struct {
	sync.Mutex

	name      string
	connected bool

	decoded map[string]*lightning.DecodedInvoice

	addHoldInvoice func(ctx context.Context, value btcutil.Amount,
		preimageHash lntypes.Hash, cltvExpiry uint32,
		expiry time.Duration, memo string, descriptionHash []byte,
		routingHints [][]lightning.HopHint) (string, error)

	queryRoutes func(ctx context.Context, destination route.Vertex,
		amt btcutil.Amount, cltvLimit uint32, finalCltvDelta uint32,
		routingHints [][]lightning.HopHint) ([]*lightning.Route, error)

	addHoldInvoiceCalls int
	queryRoutesAmounts  []btcutil.Amount
	subscribedHashes    []lntypes.Hash
}

func newMockLightningClient(name string) *mockLightningClient {
	return &mockLightningClient{
		name:      name,
		connected: true,
		decoded:   make(map[string]*lightning.DecodedInvoice),
	}
}

func (m *mockLightningClient) ServiceName() string {
	return m.name
}

func (m *mockLightningClient) IsConnected() bool {
	return m.connected
}

func (m *mockLightningClient) DecodeInvoice(_ context.Context,
	invoice string) (*lightning.DecodedInvoice, error) {

	m.Lock()
	defer m.Unlock()

	decoded, ok := m.decoded[invoice]
	if !ok {
		return nil, errNotImplemented
	}

	return decoded, nil
}

func (m *mockLightningClient) QueryRoutes(ctx context.Context,
	destination route.Vertex, amt btcutil.Amount, cltvLimit uint32,
	finalCltvDelta uint32,
	routingHints [][]lightning.HopHint) ([]*lightning.Route, error) {

	m.Lock()
	m.queryRoutesAmounts = append(m.queryRoutesAmounts, amt)
	m.Unlock()

	if m.queryRoutes == nil {
		return nil, lightning.ErrNoRoute
	}

	return m.queryRoutes(
		ctx, destination, amt, cltvLimit, finalCltvDelta, routingHints,
	)
}

func (m *mockLightningClient) AddHoldInvoice(ctx context.Context,
	value btcutil.Amount, preimageHash lntypes.Hash, cltvExpiry uint32,
	expiry time.Duration, memo string, descriptionHash []byte,
	routingHints [][]lightning.HopHint) (string, error) {

	m.Lock()
	m.addHoldInvoiceCalls++
	m.Unlock()

	if m.addHoldInvoice == nil {
		return "lnmock1" + preimageHash.String()[:8], nil
	}

	return m.addHoldInvoice(
		ctx, value, preimageHash, cltvExpiry, expiry, memo,
		descriptionHash, routingHints,
	)
}

func (m *mockLightningClient) SettleHoldInvoice(_ context.Context,
	_ lntypes.Preimage) error {

	return nil
}

func (m *mockLightningClient) CancelHoldInvoice(_ context.Context,
	_ lntypes.Hash) error {

	return nil
}

func (m *mockLightningClient) SubscribeSingleInvoice(_ context.Context,
	preimageHash lntypes.Hash) error {

	m.Lock()
	defer m.Unlock()

	m.subscribedHashes = append(m.subscribedHashes, preimageHash)

	return nil
}

var errNotImplemented = &Error{
	Code:    "test.not.implemented",
	message: "not implemented",
}

// mockChainClient implements ChainClient.
type mockChainClient struct {
	sync.Mutex

	height uint32

	outputFilters [][]byte
	inputFilters  []string
}

func (m *mockChainClient) GetBlockchainInfo(
	_ context.Context) (*BlockchainInfo, error) {

	m.Lock()
	defer m.Unlock()

	return &BlockchainInfo{Blocks: m.height}, nil
}

func (m *mockChainClient) AddOutputFilter(outputScript []byte) {
	m.Lock()
	defer m.Unlock()

	m.outputFilters = append(m.outputFilters, outputScript)
}

func (m *mockChainClient) AddInputFilter(transactionID string) {
	m.Lock()
	defer m.Unlock()

	m.inputFilters = append(m.inputFilters, transactionID)
}

// mockEvmManager implements EvmManager.
type mockEvmManager struct {
	height    uint64
	contracts map[bool]string
}

func (m *mockEvmManager) GetBlockNumber(_ context.Context) (uint64, error) {
	return m.height, nil
}

func (m *mockEvmManager) SwapContractAddress(_ swap.Version,
	isERC20 bool) (string, error) {

	return m.contracts[isERC20], nil
}

// mockWallet implements Wallet with deterministic keys.
type mockWallet struct {
	sync.Mutex

	index uint32
}

func (m *mockWallet) GetNewKeys() (*Keys, error) {
	m.Lock()
	defer m.Unlock()

	m.index++

	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	return &Keys{
		PublicKey: privKey.PubKey(),
		Index:     m.index,
	}, nil
}

func (m *mockWallet) EncodeAddress(outputScript []byte) (string, error) {
	return "addr-" + hex.EncodeToString(outputScript[:4]), nil
}

func (m *mockWallet) DeriveBlindingKeyFromScript(
	_ []byte) (*btcec.PrivateKey, error) {

	return btcec.NewPrivateKey()
}

// mockWalletManager implements WalletManager with one wallet per symbol.
type mockWalletManager struct {
	wallets map[string]*mockWallet
}

func newMockWalletManager(symbols ...string) *mockWalletManager {
	wallets := make(map[string]*mockWallet, len(symbols))
	for _, symbol := range symbols {
		wallets[symbol] = &mockWallet{}
	}

	return &mockWalletManager{wallets: wallets}
}

func (m *mockWalletManager) Wallet(symbol string) (Wallet, error) {
	wallet, ok := m.wallets[symbol]
	if !ok {
		return nil, ErrCurrencyNotFound
	}

	return wallet, nil
}

// mockNursery implements Nursery and records settle attempts.
type mockNursery struct {
	sync.Mutex

	initCalled bool
	settleErr  error
	settled    []string

	onSettle func(swapID string)
}

func (m *mockNursery) Init(_ map[string]*Currency) error {
	m.Lock()
	defer m.Unlock()

	m.initCalled = true

	return nil
}

func (m *mockNursery) AttemptSettleSwap(_ context.Context, _ *Currency,
	sw *swapdb.Swap) error {

	m.Lock()
	m.settled = append(m.settled, sw.ID)
	onSettle := m.onSettle
	m.Unlock()

	if onSettle != nil {
		onSettle(sw.ID)
	}

	return m.settleErr
}

// mockTracker implements PaymentTracker.
type mockTracker struct {
	attempts map[string]*PaymentAttempt
}

func (m *mockTracker) FindByPreimageHashAndNode(preimageHash string,
	node lightning.NodeType) (*PaymentAttempt, error) {

	if node != lightning.NodeTypeCLN {
		return nil, nil
	}

	return m.attempts[preimageHash], nil
}

// mockHintsProvider implements RoutingHintsProvider.
type mockHintsProvider struct {
	sync.Mutex

	hints [][]lightning.HopHint
	calls []lightning.NodeType
}

func (m *mockHintsProvider) GetRoutingHints(_ context.Context, _ string,
	_ string, node lightning.NodeType) ([][]lightning.HopHint, error) {

	m.Lock()
	defer m.Unlock()

	m.calls = append(m.calls, node)

	return m.hints, nil
}

func newTestStore(t *testing.T) swapdb.Store {
	t.Helper()

	store, err := swapdb.NewBoltSwapStore(
		filepath.Join(t.TempDir(), "swaps.db"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func testVertex(t *testing.T) *route.Vertex {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	vertex, err := route.NewVertexFromBytes(
		privKey.PubKey().SerializeCompressed(),
	)
	require.NoError(t, err)

	return &vertex
}

func testHash(t *testing.T, b byte) lntypes.Hash {
	t.Helper()

	var raw [lntypes.HashSize]byte
	for i := range raw {
		raw[i] = b
	}

	hash, err := lntypes.MakeHash(raw[:])
	require.NoError(t, err)

	return hash
}

func testPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return privKey.PubKey()
}

func bolt11Invoice(payee *route.Vertex, hash lntypes.Hash,
	amountMsat int64) *lightning.DecodedInvoice {

	return &lightning.DecodedInvoice{
		Type:         lightning.InvoiceTypeBolt11,
		PaymentHash:  &hash,
		AmountMsat:   amountMsat,
		Payee:        payee,
		MinFinalCltv: 80,
		CreatedAt:    time.Now(),
		Features:     map[lightning.Feature]struct{}{},
	}
}
