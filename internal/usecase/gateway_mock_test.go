package usecase

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defilens/wallet_lens/internal/domain"
)

var errNotConfigured = errors.New("mock: not configured")

const mockEpsilon = 0.000001

func floatEquals(a, b float64) bool {
	return (a-b) < mockEpsilon && (b-a) < mockEpsilon
}

// tickSqrtX96 encodes 1.0001^(tick/2) in Q64.96 for pool state fixtures.
func tickSqrtX96(tick int) *big.Int {
	f := new(big.Float).SetPrec(256).SetFloat64(TickToSqrtPrice(tick))
	f.Mul(f, new(big.Float).SetPrec(256).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	v, _ := f.Int(nil)
	return v
}

// mockGateway implements domain.ChainGateway with overridable hooks.
// Unconfigured calls fail, which doubles as a check that readers only
// touch what they need.
type mockGateway struct {
	TokenMetadataFn   func(token common.Address) (domain.TokenMetadata, error)
	BalanceOfFn       func(token, owner common.Address) (*big.Int, error)
	ConvertToAssetsFn func(vault common.Address, shares *big.Int) (*big.Int, error)
	PositionCountFn   func(manager, owner common.Address) (int, error)
	PositionAtFn      func(manager, owner common.Address, index int) (domain.LPRecord, error)
	PoolAddressFn     func(factory, token0, token1 common.Address, fee uint32) (common.Address, error)
	PoolStateFn       func(pool common.Address) (domain.PoolState, error)
	MintTimestampFn   func(manager common.Address, tokenID *big.Int) (time.Time, error)
	FirstDepositFn    func(vault, owner common.Address) (time.Time, error)
	VaultDepositorsFn func(vault common.Address, fromBlock, toBlock uint64) ([]common.Address, error)
	BlockNumberFn     func() (uint64, error)
}

func (m *mockGateway) TokenMetadata(_ context.Context, token common.Address) (domain.TokenMetadata, error) {
	if m.TokenMetadataFn == nil {
		return domain.TokenMetadata{}, errNotConfigured
	}
	return m.TokenMetadataFn(token)
}

func (m *mockGateway) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	if m.BalanceOfFn == nil {
		return nil, errNotConfigured
	}
	return m.BalanceOfFn(token, owner)
}

func (m *mockGateway) ConvertToAssets(_ context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	if m.ConvertToAssetsFn == nil {
		return nil, errNotConfigured
	}
	return m.ConvertToAssetsFn(vault, shares)
}

func (m *mockGateway) PositionCount(_ context.Context, manager, owner common.Address) (int, error) {
	if m.PositionCountFn == nil {
		return 0, errNotConfigured
	}
	return m.PositionCountFn(manager, owner)
}

func (m *mockGateway) PositionAt(_ context.Context, manager, owner common.Address, index int) (domain.LPRecord, error) {
	if m.PositionAtFn == nil {
		return domain.LPRecord{}, errNotConfigured
	}
	return m.PositionAtFn(manager, owner, index)
}

func (m *mockGateway) PoolAddress(_ context.Context, factory, token0, token1 common.Address, fee uint32) (common.Address, error) {
	if m.PoolAddressFn == nil {
		return common.Address{}, errNotConfigured
	}
	return m.PoolAddressFn(factory, token0, token1, fee)
}

func (m *mockGateway) PoolState(_ context.Context, pool common.Address) (domain.PoolState, error) {
	if m.PoolStateFn == nil {
		return domain.PoolState{}, errNotConfigured
	}
	return m.PoolStateFn(pool)
}

func (m *mockGateway) MintTimestamp(_ context.Context, manager common.Address, tokenID *big.Int) (time.Time, error) {
	if m.MintTimestampFn == nil {
		return time.Time{}, errNotConfigured
	}
	return m.MintTimestampFn(manager, tokenID)
}

func (m *mockGateway) FirstDeposit(_ context.Context, vault, owner common.Address) (time.Time, error) {
	if m.FirstDepositFn == nil {
		return time.Time{}, errNotConfigured
	}
	return m.FirstDepositFn(vault, owner)
}

func (m *mockGateway) VaultDepositors(_ context.Context, vault common.Address, fromBlock, toBlock uint64) ([]common.Address, error) {
	if m.VaultDepositorsFn == nil {
		return nil, errNotConfigured
	}
	return m.VaultDepositorsFn(vault, fromBlock, toBlock)
}

func (m *mockGateway) BlockNumber(_ context.Context) (uint64, error) {
	if m.BlockNumberFn == nil {
		return 0, errNotConfigured
	}
	return m.BlockNumberFn()
}
