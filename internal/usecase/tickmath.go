package usecase

import (
	"math"
	"math/big"
)

// Concentrated-liquidity pools quote prices on a log-spaced grid:
// price = 1.0001^tick (token1 per token0, before decimal adjustment).
// Pools report the current price as sqrt(price) * 2^96.

var (
	twoPow96  = new(big.Int).Lsh(big.NewInt(1), 96)
	twoPow192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// TickToPrice converts a tick index to the raw token1-per-token0 price.
func TickToPrice(tick int) float64 {
	return math.Pow(1.0001, float64(tick))
}

// TickToAdjustedPrice converts a tick to a human price ratio, adjusting
// for the two tokens' decimals. TickToAdjustedPrice(0, d, d) == 1.
func TickToAdjustedPrice(tick, decimals0, decimals1 int) float64 {
	return TickToPrice(tick) * math.Pow(10, float64(decimals0-decimals1))
}

// TickToSqrtPrice converts a tick to its raw sqrt-price (not X96 scaled).
func TickToSqrtPrice(tick int) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}

// SqrtPriceX96ToPrice converts a pool's Q64.96 sqrt-price to the human
// token1-per-token0 ratio. The square and the 2^192 division happen in
// rational arithmetic before the float conversion: squaring a truncated
// float64 first loses the low bits that matter at wide decimal spreads
// (6 vs 18 decimal pairs).
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	ratio := new(big.Rat).SetFrac(sq, twoPow192)

	shift := decimals0 - decimals1
	if shift != 0 {
		pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(shift))), nil)
		if shift > 0 {
			ratio.Mul(ratio, new(big.Rat).SetInt(pow))
		} else {
			ratio.Quo(ratio, new(big.Rat).SetInt(pow))
		}
	}

	f, _ := new(big.Float).SetPrec(256).SetRat(ratio).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// SqrtPriceX96ToSqrtPrice returns the raw (unscaled) sqrt-price as a
// float64, keeping full precision in the division.
func SqrtPriceX96ToSqrtPrice(sqrtPriceX96 *big.Int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	f := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(twoPow96))
	v, _ := f.Float64()
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
