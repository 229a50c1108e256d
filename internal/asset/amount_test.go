package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nouns-dao/nouns-onchain/internal/asset"
)

func TestAmount_Basic(t *testing.T) {
	// 1 ETH = 1e18 wei
	oneETH := asset.NewAmount(asset.ETH, big.NewInt(1e18))

	if oneETH.IsZero() {
		t.Error("expected non-zero amount")
	}

	if !oneETH.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", oneETH.ToDecimal().String())
	}

	if oneETH.String() != "1 ETH" {
		t.Errorf("expected '1 ETH', got '%s'", oneETH.String())
	}
}

func TestAmount_CannotAddDifferentAssets(t *testing.T) {
	eth := asset.NewAmount(asset.ETH, big.NewInt(1e18))
	steth := asset.NewAmount(asset.STETH, big.NewInt(1e18))

	if _, err := eth.Add(steth); !errors.Is(err, asset.ErrAssetMismatch) {
		t.Errorf("expected mismatch, got %v", err)
	}
}

func TestSumAtParity(t *testing.T) {
	eth := asset.NewAmount(asset.ETH, big.NewInt(2e18))
	steth, err := asset.ParseRaw(asset.STETH, "1500000000000000000")
	if err != nil {
		t.Fatal(err)
	}

	total, err := asset.SumAtParity(eth, steth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "3500000000000000000" {
		t.Errorf("total = %s", total)
	}
}

func TestSumAtParity_RejectsDifferentDecimals(t *testing.T) {
	usdc := asset.NewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6)

	_, err := asset.SumAtParity(asset.Zero(asset.ETH), asset.Zero(usdc))
	if !errors.Is(err, asset.ErrDecimalsDiffer) {
		t.Errorf("expected decimals error, got %v", err)
	}
}

func TestParseRaw(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"0", false},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"-1", true},
		{"1.5", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := asset.ParseRaw(asset.ETH, tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRaw(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestStETHAt(t *testing.T) {
	if asset.StETHAt(1, asset.AddrStETHEthereum) != asset.STETH {
		t.Error("expected well-known instance for mainnet address")
	}
	other := common.HexToAddress("0x3F1c547b21f65e10480dE3ad8E19fAAC46C95034")
	if got := asset.StETHAt(17000, other); got.Address() != other || got.Decimals() != 18 {
		t.Errorf("unexpected asset %v", got.ID())
	}
}
