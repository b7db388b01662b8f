package usecase

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

var (
	testManagerAddr = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	testFactoryAddr = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	testPoolAddr    = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	testWETHAddr    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUSDCAddr    = common.HexToAddress(testUnderlyingAddr)
)

func lpConfig() domain.ProtocolConfig {
	return domain.ProtocolConfig{
		Name:            "Sparkle",
		Kind:            domain.KindUniV3,
		PositionManager: testManagerAddr.Hex(),
		Factory:         testFactoryAddr.Hex(),
		FeeAPY:          map[uint32]float64{3000: 20.0},
		DefaultAPY:      15.0,
	}
}

// wethUSDCRecord is an in-range WETH/USDC position around a 2500 USDC
// per WETH pool price.
func wethUSDCRecord(fee uint32) domain.LPRecord {
	return domain.LPRecord{
		TokenID:     big.NewInt(42),
		Token0:      testWETHAddr,
		Token1:      testUSDCAddr,
		Fee:         fee,
		TickLower:   -200000,
		TickUpper:   -190000,
		Liquidity:   big.NewInt(5_000_000_000_000_000),
		TokensOwed0: big.NewInt(400_000_000_000_000), // 0.0004 WETH
		TokensOwed1: big.NewInt(2_000_000),           // 2 USDC
	}
}

func wethUSDCGateway(rec domain.LPRecord, state domain.PoolState, mint time.Time) *mockGateway {
	return &mockGateway{
		PositionCountFn: func(manager, owner common.Address) (int, error) { return 1, nil },
		PositionAtFn: func(manager, owner common.Address, index int) (domain.LPRecord, error) {
			return rec, nil
		},
		TokenMetadataFn: func(token common.Address) (domain.TokenMetadata, error) {
			if token == testWETHAddr {
				return domain.TokenMetadata{Address: token, Symbol: "WETH", Decimals: 18}, nil
			}
			return domain.TokenMetadata{Address: token, Symbol: "USDC", Decimals: 6}, nil
		},
		PoolAddressFn: func(factory, token0, token1 common.Address, fee uint32) (common.Address, error) {
			return testPoolAddr, nil
		},
		PoolStateFn: func(pool common.Address) (domain.PoolState, error) { return state, nil },
		MintTimestampFn: func(manager common.Address, tokenID *big.Int) (time.Time, error) {
			return mint, nil
		},
	}
}

func TestLPReader_ValuesInRangePosition(t *testing.T) {
	rec := wethUSDCRecord(3000)
	tick := -195000 // inside [-200000, -190000)
	state := domain.PoolState{
		SqrtPriceX96: tickSqrtX96(tick),
		Tick:         tick,
	}
	mint := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	gw := wethUSDCGateway(rec, state, mint)
	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())

	positions := r.Read(context.Background(), testWallet)
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	p := positions[0]

	if p.Asset != "WETH/USDC 0.30%" {
		t.Errorf("Asset = %q, want WETH/USDC 0.30%%", p.Asset)
	}
	if p.PositionType != domain.PositionLP || p.LP == nil {
		t.Fatalf("not an LP position: %+v", p)
	}
	if !p.LP.InRange {
		t.Errorf("InRange = false for tick %d in [%d, %d)", tick, rec.TickLower, rec.TickUpper)
	}
	if p.EntryTimestamp != mint.Unix() {
		t.Errorf("EntryTimestamp = %d, want mint %d", p.EntryTimestamp, mint.Unix())
	}
	if !floatEquals(p.CurrentAPY, 20.0) {
		t.Errorf("CurrentAPY = %v, want fee-tier 20", p.CurrentAPY)
	}

	// The position value must equal what the decomposition and anchoring
	// primitives produce for the same inputs.
	a0Raw, a1Raw := DecomposeLiquidity(rec.Liquidity, state.SqrtPriceX96, rec.TickLower, rec.TickUpper)
	price0, price1 := AnchorPrices(vaultAnchors(), state.SqrtPriceX96,
		domain.TokenMetadata{Address: testWETHAddr, Symbol: "WETH", Decimals: 18},
		domain.TokenMetadata{Address: testUSDCAddr, Symbol: "USDC", Decimals: 6})
	want := a0Raw/1e18*price0 + a1Raw/1e6*price1
	if want <= 0 {
		t.Fatalf("scenario degenerate, expected deposit value > 0, got %v", want)
	}
	if !floatEquals(p.DepositedUSD, want) {
		t.Errorf("DepositedUSD = %v, want %v", p.DepositedUSD, want)
	}

	// 0.0004 WETH at the anchored price plus 2 USDC at par.
	wantFees := 0.0004*price0 + 2.0*price1
	if !floatEquals(p.YieldEarned, wantFees) {
		t.Errorf("YieldEarned = %v, want %v", p.YieldEarned, wantFees)
	}
}

func TestLPReader_OutOfRangeFlag(t *testing.T) {
	rec := wethUSDCRecord(3000)
	tick := rec.TickUpper + 100
	state := domain.PoolState{SqrtPriceX96: tickSqrtX96(tick), Tick: tick}

	gw := wethUSDCGateway(rec, state, time.Time{})
	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())

	positions := r.Read(context.Background(), testWallet)
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	if positions[0].LP.InRange {
		t.Errorf("InRange = true for tick %d above [%d, %d)", tick, rec.TickLower, rec.TickUpper)
	}
}

func TestLPReader_DefaultAPYForUnknownFeeTier(t *testing.T) {
	rec := wethUSDCRecord(500) // not in the fee table
	tick := -195000
	state := domain.PoolState{SqrtPriceX96: tickSqrtX96(tick), Tick: tick}

	gw := wethUSDCGateway(rec, state, time.Time{})
	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())

	positions := r.Read(context.Background(), testWallet)
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	if !floatEquals(positions[0].CurrentAPY, 15.0) {
		t.Errorf("CurrentAPY = %v, want default 15", positions[0].CurrentAPY)
	}
}

func TestLPReader_BrokenSlotDoesNotDropSiblings(t *testing.T) {
	rec := wethUSDCRecord(3000)
	tick := -195000
	state := domain.PoolState{SqrtPriceX96: tickSqrtX96(tick), Tick: tick}

	gw := wethUSDCGateway(rec, state, time.Time{})
	gw.PositionCountFn = func(manager, owner common.Address) (int, error) { return 3, nil }
	gw.PositionAtFn = func(manager, owner common.Address, index int) (domain.LPRecord, error) {
		if index == 1 {
			return domain.LPRecord{}, errors.New("abi: cannot unpack")
		}
		return rec, nil
	}

	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())
	positions := r.Read(context.Background(), testWallet)
	if len(positions) != 2 {
		t.Errorf("got %d positions, want 2 survivors around the broken slot", len(positions))
	}
}

func TestLPReader_ClosedPositionSkipped(t *testing.T) {
	rec := wethUSDCRecord(3000)
	rec.Liquidity = big.NewInt(0)
	tick := -195000
	state := domain.PoolState{SqrtPriceX96: tickSqrtX96(tick), Tick: tick}

	gw := wethUSDCGateway(rec, state, time.Time{})
	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())

	if positions := r.Read(context.Background(), testWallet); len(positions) != 0 {
		t.Errorf("closed position: got %d positions, want 0", len(positions))
	}
}

func TestLPReader_ManagerUnreachable(t *testing.T) {
	gw := &mockGateway{
		PositionCountFn: func(manager, owner common.Address) (int, error) {
			return 0, errors.New("connection refused")
		},
	}
	r := NewLPReader(gw, lpConfig(), vaultAnchors(), zap.NewNop())

	if positions := r.Read(context.Background(), testWallet); len(positions) != 0 {
		t.Errorf("unreachable manager: got %d positions, want 0", len(positions))
	}
}
