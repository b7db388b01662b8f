package usecase

import (
	"math/big"

	"github.com/defilens/wallet_lens/internal/domain"
)

// AnchorPrices derives USD prices for a pool's token pair from the pool
// ratio plus one externally-priced anchor token. Anchors are matched by
// token address, not display symbol. When neither side is a registered
// anchor both prices are 0: "unknown" is reported, never guessed.
func AnchorPrices(anchors domain.AnchorSet, sqrtPriceX96 *big.Int, token0, token1 domain.TokenMetadata) (price0USD, price1USD float64) {
	price0In1 := SqrtPriceX96ToPrice(sqrtPriceX96, token0.Decimals, token1.Decimals)

	if a1, ok := anchors.Lookup(token1.Address); ok {
		price1USD = a1.PriceUSD
		price0USD = price1USD * price0In1
		return price0USD, price1USD
	}
	if a0, ok := anchors.Lookup(token0.Address); ok {
		price0USD = a0.PriceUSD
		if price0In1 > 0 {
			price1USD = price0USD / price0In1
		}
		return price0USD, price1USD
	}
	return 0, 0
}
