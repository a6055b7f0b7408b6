// Package evm provides the EVM chain backend of the swap core: block height
// queries and resolution of the shared swap contract addresses used instead
// of script outputs on Ether and ERC20 currencies.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lightswap/swapd/swap"
)

// Config holds the static parameters of an EVM chain.
type Config struct {
	// RPCURL is the endpoint of the chain node.
	RPCURL string

	// NetworkName is a human readable chain identifier, used in logs.
	NetworkName string

	// EtherSwapAddress is the deployed swap contract handling Ether.
	EtherSwapAddress common.Address

	// ERC20SwapAddress is the deployed swap contract handling ERC20
	// tokens.
	ERC20SwapAddress common.Address
}

// Manager wraps a connection to one EVM chain.
type Manager struct {
	cfg    *Config
	client *ethclient.Client
}

// NewManager dials the configured chain node.
func NewManager(ctx context.Context, cfg *Config) (*Manager, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.NetworkName, err)
	}

	log.Infof("Connected to %s via %s", cfg.NetworkName, cfg.RPCURL)

	return &Manager{
		cfg:    cfg,
		client: client,
	}, nil
}

// GetBlockNumber returns the current block height of the chain.
func (m *Manager) GetBlockNumber(ctx context.Context) (uint64, error) {
	return m.client.BlockNumber(ctx)
}

// SwapContractAddress resolves the lockup contract for the given swap
// version and token kind. There is no per-swap script output on EVM chains;
// all swaps share the deployed contract.
func (m *Manager) SwapContractAddress(_ swap.Version,
	isERC20 bool) (string, error) {

	// The contracts predate Taproot and are shared by both script
	// versions.
	var address common.Address
	if isERC20 {
		address = m.cfg.ERC20SwapAddress
	} else {
		address = m.cfg.EtherSwapAddress
	}

	if address == (common.Address{}) {
		return "", fmt.Errorf("no swap contract deployed on %s",
			m.cfg.NetworkName)
	}

	return address.Hex(), nil
}

// NetworkName returns the human readable chain identifier.
func (m *Manager) NetworkName() string {
	return m.cfg.NetworkName
}

// Close tears down the node connection.
func (m *Manager) Close() {
	m.client.Close()
}
