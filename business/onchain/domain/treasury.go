package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/nouns-dao/nouns-onchain/internal/asset"
)

// Treasury is the DAO executor's holdings. ETH and stETH are counted at 1:1
// parity, the convention nouns.wtf uses.
type Treasury struct {
	ETH   asset.Amount
	StETH asset.Amount
	total *big.Int
}

// NewTreasury sums the two balances. Both assets must share decimals.
func NewTreasury(eth, steth asset.Amount) (Treasury, error) {
	total, err := asset.SumAtParity(eth, steth)
	if err != nil {
		return Treasury{}, err
	}
	return Treasury{ETH: eth, StETH: steth, total: total}, nil
}

// Total returns the raw sum in wei.
func (t Treasury) Total() *big.Int {
	if t.total == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.total)
}

// String returns the raw sum as a base-10 integer string.
func (t Treasury) String() string {
	return t.Total().String()
}

// TotalETH returns the sum in whole ether for display.
func (t Treasury) TotalETH() decimal.Decimal {
	return decimal.NewFromBigInt(t.Total(), -18)
}
