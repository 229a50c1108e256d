package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
)

// Lido staked ETH on Ethereum Mainnet.
var AddrStETHEthereum = common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84")

// Well-known Assets (pre-created instances)
var (
	ETH   = NewNative(ChainIDEthereum, "ETH", "Ethereum", 18)
	STETH = NewToken(ChainIDEthereum, AddrStETHEthereum, "stETH", "Lido Staked Ether", 18)
)

// StETHAt returns the stETH asset for a configured token address.
func StETHAt(chainID uint64, addr common.Address) *Asset {
	if chainID == ChainIDEthereum && addr == AddrStETHEthereum {
		return STETH
	}
	return NewToken(chainID, addr, "stETH", "Lido Staked Ether", 18)
}

// NativeOn returns the ETH asset for the given chain.
func NativeOn(chainID uint64) *Asset {
	if chainID == ChainIDEthereum {
		return ETH
	}
	return NewNative(chainID, "ETH", "Ether", 18)
}
