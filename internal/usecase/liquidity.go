package usecase

import "math/big"

// DecomposeLiquidity computes the raw base-unit token amounts a
// concentrated-liquidity position currently represents, given its
// liquidity magnitude, the pool's current sqrt-price and the position's
// tick bounds. The caller divides by 10^decimals for human units.
//
// Three regimes, depending on where the current price sits:
//   - at or below the range: all value is token0
//   - at or above the range: all value is token1
//   - inside the range: a mix of both
func DecomposeLiquidity(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int) (amount0, amount1 float64) {
	if liquidity == nil || liquidity.Sign() == 0 {
		return 0, 0
	}

	liq, _ := new(big.Float).SetPrec(256).SetInt(liquidity).Float64()
	sqrtCurrent := SqrtPriceX96ToSqrtPrice(sqrtPriceX96)
	sqrtLower := TickToSqrtPrice(tickLower)
	sqrtUpper := TickToSqrtPrice(tickUpper)
	if sqrtLower <= 0 || sqrtUpper <= 0 || sqrtLower >= sqrtUpper {
		return 0, 0
	}

	switch {
	case sqrtCurrent <= sqrtLower:
		amount0 = liq * (sqrtUpper - sqrtLower) / (sqrtLower * sqrtUpper)
	case sqrtCurrent >= sqrtUpper:
		amount1 = liq * (sqrtUpper - sqrtLower)
	default:
		amount0 = liq * (sqrtUpper - sqrtCurrent) / (sqrtCurrent * sqrtUpper)
		amount1 = liq * (sqrtCurrent - sqrtLower)
	}
	return amount0, amount1
}
