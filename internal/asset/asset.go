// Package asset models on-chain assets and exact amounts.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is only used at boundaries (API, CLI, display).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies an asset by chain and contract address.
// Native coins have the zero address.
type ID struct {
	ChainID uint64
	Address common.Address
}

// IsNative reports whether the ID denotes the chain's native coin.
func (id ID) IsNative() bool {
	return id.Address == (common.Address{})
}

func (id ID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.ChainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.ChainID, id.Address.Hex())
}

// Asset is the metadata of a coin or token. The symbol is display only.
type Asset struct {
	id       ID
	symbol   string
	name     string
	decimals uint8
}

// NewNative creates a native coin asset.
func NewNative(chainID uint64, symbol, name string, decimals uint8) *Asset {
	return newAsset(ID{ChainID: chainID}, symbol, name, decimals)
}

// NewToken creates an ERC-20 token asset.
func NewToken(chainID uint64, addr common.Address, symbol, name string, decimals uint8) *Asset {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero")
	}
	return newAsset(ID{ChainID: chainID, Address: addr}, symbol, name, decimals)
}

func newAsset(id ID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

func (a *Asset) ID() ID { return a.id }
func (a *Asset) Symbol() string { return a.symbol }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) IsNative() bool { return a.id.IsNative() }
func (a *Asset) String() string { return a.symbol }
func (a *Asset) Address() common.Address { return a.id.Address }

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Equals compares two assets by ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}
