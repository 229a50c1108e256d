package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilAsset       = errors.New("asset: nil asset")
	ErrNilRaw         = errors.New("asset: nil raw value")
	ErrNegativeAmount = errors.New("asset: negative amount")
	ErrAssetMismatch  = errors.New("asset: cannot operate on different assets")
	ErrDecimalsDiffer = errors.New("asset: parity requires equal decimals")
)

// Amount is an immutable quantity of an asset in its smallest unit (wei).
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount creates an Amount from a raw smallest-unit value.
func NewAmount(asset *Asset, raw *big.Int) Amount {
	if asset == nil {
		panic(ErrNilAsset)
	}
	if raw == nil {
		panic(ErrNilRaw)
	}
	if raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}

	return Amount{
		raw:   new(big.Int).Set(raw),
		asset: asset,
	}
}

// Zero creates a zero Amount for the given asset.
func Zero(asset *Asset) Amount {
	return NewAmount(asset, big.NewInt(0))
}

// ParseRaw creates an Amount from a base-10 smallest-unit string.
func ParseRaw(asset *Asset, s string) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	raw, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("asset: invalid integer %q", s)
	}
	if raw.Sign() < 0 {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{raw: raw, asset: asset}, nil
}

// Raw returns a copy of the raw big.Int value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Asset returns the asset this amount is denominated in.
func (a Amount) Asset() *Asset {
	return a.asset
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// Add adds two amounts of the same asset.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	return NewAmount(a.asset, new(big.Int).Add(a.raw, b.raw)), nil
}

// SumAtParity adds raw values of assets assumed to trade 1:1 (ETH and stETH)
// without any price conversion. All amounts must share the same decimals.
func SumAtParity(amounts ...Amount) (*big.Int, error) {
	total := new(big.Int)
	if len(amounts) == 0 {
		return total, nil
	}
	if amounts[0].asset == nil {
		return nil, ErrNilAsset
	}

	decimals := amounts[0].asset.Decimals()
	for _, amt := range amounts {
		if amt.asset == nil {
			return nil, ErrNilAsset
		}
		if amt.asset.Decimals() != decimals {
			return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrDecimalsDiffer,
				amounts[0].asset.Symbol(), decimals, amt.asset.Symbol(), amt.asset.Decimals())
		}
		total.Add(total, amt.Raw())
	}
	return total, nil
}

// Equals returns true if both amounts are equal (same asset and value).
func (a Amount) Equals(b Amount) bool {
	if !a.asset.Equals(b.asset) {
		return false
	}
	return a.Raw().Cmp(b.Raw()) == 0
}

// ToDecimal converts the amount to whole units for display.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// String returns a human-readable representation (e.g., "1.5 ETH").
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.asset.Symbol())
}

func (a Amount) checkSameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return ErrNilAsset
	}
	if !a.asset.Equals(b.asset) {
		return fmt.Errorf("%w: %s vs %s", ErrAssetMismatch, a.asset.Symbol(), b.asset.Symbol())
	}
	return nil
}
