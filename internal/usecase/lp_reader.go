package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

// lpEntryFallback is applied when the mint event for an NFT position
// cannot be found.
const lpEntryFallback = 24 * time.Hour

// LPReader values a wallet's concentrated-liquidity positions held
// through an NFT position manager. Positions are independent: a slot
// that fails to decode is dropped, its siblings are still returned.
type LPReader struct {
	gateway domain.ChainGateway
	cfg     domain.ProtocolConfig
	anchors domain.AnchorSet
	logger  *zap.Logger
	timeNow func() time.Time // for testing
}

func NewLPReader(gateway domain.ChainGateway, cfg domain.ProtocolConfig, anchors domain.AnchorSet, logger *zap.Logger) *LPReader {
	return &LPReader{
		gateway: gateway,
		cfg:     cfg,
		anchors: anchors,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Read returns all of the wallet's active LP positions on this protocol.
// An unreachable position manager yields an empty slice.
func (r *LPReader) Read(ctx context.Context, wallet common.Address) []domain.Position {
	manager := common.HexToAddress(r.cfg.PositionManager)

	count, err := r.gateway.PositionCount(ctx, manager, wallet)
	if err != nil {
		r.logger.Warn("position count read failed",
			zap.String("protocol", r.cfg.Name), zap.Error(err))
		return nil
	}

	var positions []domain.Position
	for i := 0; i < count; i++ {
		pos, ok := r.readOne(ctx, manager, wallet, i)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}
	return positions
}

func (r *LPReader) readOne(ctx context.Context, manager, wallet common.Address, index int) (domain.Position, bool) {
	rec, err := r.gateway.PositionAt(ctx, manager, wallet, index)
	if err != nil {
		r.logger.Debug("skipping undecodable position",
			zap.String("protocol", r.cfg.Name), zap.Int("index", index), zap.Error(err))
		return domain.Position{}, false
	}
	if rec.Liquidity == nil || rec.Liquidity.Sign() == 0 {
		return domain.Position{}, false
	}

	meta0, err := r.gateway.TokenMetadata(ctx, rec.Token0)
	if err != nil {
		return domain.Position{}, false
	}
	meta1, err := r.gateway.TokenMetadata(ctx, rec.Token1)
	if err != nil {
		return domain.Position{}, false
	}

	factory := common.HexToAddress(r.cfg.Factory)
	pool, err := r.gateway.PoolAddress(ctx, factory, rec.Token0, rec.Token1, rec.Fee)
	if err != nil {
		return domain.Position{}, false
	}
	state, err := r.gateway.PoolState(ctx, pool)
	if err != nil {
		return domain.Position{}, false
	}

	amount0Raw, amount1Raw := DecomposeLiquidity(rec.Liquidity, state.SqrtPriceX96, rec.TickLower, rec.TickUpper)
	price0, price1 := AnchorPrices(r.anchors, state.SqrtPriceX96, meta0, meta1)

	pow0 := pow10f(meta0.Decimals)
	pow1 := pow10f(meta1.Decimals)
	amount0 := amount0Raw / pow0
	amount1 := amount1Raw / pow1
	fee0 := rawToHuman(rec.TokensOwed0, meta0.Decimals)
	fee1 := rawToHuman(rec.TokensOwed1, meta1.Decimals)

	depositedUSD := amount0*price0 + amount1*price1
	feesUSD := fee0*price0 + fee1*price1

	apy := r.cfg.DefaultAPY
	if v, ok := r.cfg.FeeAPY[rec.Fee]; ok {
		apy = v
	}

	entry := r.timeNow().Add(-lpEntryFallback)
	if ts, err := r.gateway.MintTimestamp(ctx, manager, rec.TokenID); err == nil && !ts.IsZero() {
		entry = ts
	}

	return domain.Position{
		Protocol:       r.cfg.Name,
		Asset:          fmt.Sprintf("%s/%s %.2f%%", meta0.Symbol, meta1.Symbol, float64(rec.Fee)/10000),
		AssetAddress:   strings.ToLower(pool.Hex()),
		DepositedRaw:   rec.Liquidity.String(),
		DepositedUSD:   depositedUSD,
		CurrentAPY:     apy,
		YieldEarned:    feesUSD,
		PositionType:   domain.PositionLP,
		EntryTimestamp: entry.Unix(),
		LP: &domain.LPDetails{
			TickLower:      rec.TickLower,
			TickUpper:      rec.TickUpper,
			TickCurrent:    state.Tick,
			Token0Symbol:   meta0.Symbol,
			Token1Symbol:   meta1.Symbol,
			Token0Decimals: meta0.Decimals,
			Token1Decimals: meta1.Decimals,
			Token0Amount:   amount0,
			Token1Amount:   amount1,
			Token0PriceUSD: price0,
			Token1PriceUSD: price1,
			FeeToken0:      fee0,
			FeeToken1:      fee1,
			InRange:        rec.TickLower <= state.Tick && state.Tick < rec.TickUpper,
		},
	}, true
}

func pow10f(decimals int) float64 {
	p := 1.0
	for i := 0; i < decimals; i++ {
		p *= 10
	}
	return p
}
