package usecase

import (
	"context"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

// assumedVaultEntryAge is the fallback holding period when no share-mint
// event is found for the wallet.
const assumedVaultEntryAge = 30 * 24 * time.Hour

var probeAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")

// VaultReader values a wallet's position in one ERC-4626-style share
// vault: share balance -> underlying assets -> USD.
//
// Accrued yield is a simple-interest estimate from the configured APY
// and the position age. The vault's exchange rate already compounds on
// chain; the displayed estimate deliberately does not, matching how the
// dashboard reports it.
type VaultReader struct {
	gateway domain.ChainGateway
	cfg     domain.ProtocolConfig
	anchors domain.AnchorSet
	logger  *zap.Logger
	timeNow func() time.Time // for testing
}

func NewVaultReader(gateway domain.ChainGateway, cfg domain.ProtocolConfig, anchors domain.AnchorSet, logger *zap.Logger) *VaultReader {
	return &VaultReader{
		gateway: gateway,
		cfg:     cfg,
		anchors: anchors,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Probe checks that the vault contract answers a read against a fixed
// probe address without reverting. The result is a connectivity signal
// only; it says nothing about balances.
func (r *VaultReader) Probe(ctx context.Context) bool {
	_, err := r.gateway.BalanceOf(ctx, r.cfg.VaultAddress(), probeAddress)
	return err == nil
}

// Read returns the wallet's vault position, or an empty slice when the
// wallet holds no shares or the vault is unreachable.
func (r *VaultReader) Read(ctx context.Context, wallet common.Address) []domain.Position {
	vault := r.cfg.VaultAddress()

	shares, err := r.gateway.BalanceOf(ctx, vault, wallet)
	if err != nil {
		r.logger.Warn("vault balance read failed",
			zap.String("protocol", r.cfg.Name), zap.Error(err))
		return nil
	}
	if shares == nil || shares.Sign() == 0 {
		return nil
	}

	assets, err := r.gateway.ConvertToAssets(ctx, vault, shares)
	if err != nil {
		r.logger.Warn("convertToAssets failed",
			zap.String("protocol", r.cfg.Name), zap.Error(err))
		return nil
	}

	underlying := common.HexToAddress(r.cfg.Underlying)
	meta, err := r.gateway.TokenMetadata(ctx, underlying)
	if err != nil {
		r.logger.Warn("underlying metadata read failed",
			zap.String("protocol", r.cfg.Name), zap.Error(err))
		return nil
	}

	priceUSD := 0.0
	if a, ok := r.anchors.Lookup(underlying); ok {
		priceUSD = a.PriceUSD
	}

	now := r.timeNow()
	entry := now.Add(-assumedVaultEntryAge)
	if ts, err := r.gateway.FirstDeposit(ctx, vault, wallet); err == nil && !ts.IsZero() {
		entry = ts
	}

	assetsHuman := rawToHuman(assets, meta.Decimals)
	depositedUSD := assetsHuman * priceUSD
	ageDays := math.Max(float64(now.Unix()-entry.Unix())/86400, 0)
	yieldEarned := depositedUSD * (r.cfg.APYEstimate / 100) * (ageDays / 365)

	symbol := meta.Symbol
	if r.cfg.ReceiptSymbol != "" {
		symbol = r.cfg.ReceiptSymbol
	}

	return []domain.Position{{
		Protocol:       r.cfg.Name,
		Asset:          symbol,
		AssetAddress:   strings.ToLower(vault.Hex()),
		DepositedRaw:   assets.String(),
		DepositedUSD:   depositedUSD,
		CurrentAPY:     r.cfg.APYEstimate,
		YieldEarned:    yieldEarned,
		PositionType:   domain.PositionLending,
		EntryTimestamp: entry.Unix(),
	}}
}

func rawToHuman(amount *big.Int, decimals int) float64 {
	if amount == nil || amount.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetPrec(256).SetInt(amount)
	if decimals > 0 {
		den := new(big.Float).SetPrec(256).SetInt(
			new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
		f.Quo(f, den)
	}
	v, _ := f.Float64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
