package usecase_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defilens/wallet_lens/internal/domain"
	"github.com/defilens/wallet_lens/internal/usecase"
)

var (
	usdcAddr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	wethAddr = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	wbtcAddr = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

func testAnchors() domain.AnchorSet {
	return domain.NewAnchorSet([]domain.AnchorToken{
		{Address: usdcAddr.Hex(), Symbol: "USDC", PriceUSD: 1.0},
	})
}

func TestAnchorPrices_Token1Anchored(t *testing.T) {
	// WETH/USDC pool, unit raw ratio shifted by decimals: the pool's
	// sqrt-price encodes 2500 USDC per WETH.
	weth := domain.TokenMetadata{Address: wethAddr, Symbol: "WETH", Decimals: 18}
	usdc := domain.TokenMetadata{Address: usdcAddr, Symbol: "USDC", Decimals: 6}

	// price0In1(adjusted) = raw * 10^(18-6); pick raw so adjusted = 2500.
	sqrt := sqrtX96FromPrice(2500e-12)

	price0, price1 := usecase.AnchorPrices(testAnchors(), sqrt, weth, usdc)
	if !floatEquals(price1, 1.0) {
		t.Errorf("token1 (anchor) price = %v, want 1.0", price1)
	}
	if !relEquals(price0, 2500, 1e-9) {
		t.Errorf("token0 price = %v, want 2500", price0)
	}
}

func TestAnchorPrices_Token0Anchored(t *testing.T) {
	// USDC/WETH pool: the anchor is token0, so token1's price comes
	// from the inverted ratio.
	usdc := domain.TokenMetadata{Address: usdcAddr, Symbol: "USDC", Decimals: 6}
	weth := domain.TokenMetadata{Address: wethAddr, Symbol: "WETH", Decimals: 18}

	// adjusted price0In1 = raw * 10^(6-18) = 0.0004 WETH per USDC.
	sqrt := sqrtX96FromPrice(0.0004e12)

	price0, price1 := usecase.AnchorPrices(testAnchors(), sqrt, usdc, weth)
	if !floatEquals(price0, 1.0) {
		t.Errorf("token0 (anchor) price = %v, want 1.0", price0)
	}
	if !relEquals(price1, 2500, 1e-9) {
		t.Errorf("token1 price = %v, want 2500", price1)
	}
}

func TestAnchorPrices_NoAnchor(t *testing.T) {
	// No USD reference in the pair: both prices stay 0, never guessed.
	weth := domain.TokenMetadata{Address: wethAddr, Symbol: "WETH", Decimals: 18}
	wbtc := domain.TokenMetadata{Address: wbtcAddr, Symbol: "WBTC", Decimals: 8}

	price0, price1 := usecase.AnchorPrices(testAnchors(), sqrtX96FromTick(0), wbtc, weth)
	if price0 != 0 || price1 != 0 {
		t.Errorf("unanchored pair: got (%v, %v), want (0, 0)", price0, price1)
	}
}
