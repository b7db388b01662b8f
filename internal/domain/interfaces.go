package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata is the ERC-20 identity of a token.
type TokenMetadata struct {
	Address  common.Address
	Symbol   string
	Decimals int
}

// PoolState is a pool's slot0 snapshot.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int
}

// LPRecord is one positions(tokenId) tuple from a position manager.
type LPRecord struct {
	TokenID     *big.Int
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickLower   int
	TickUpper   int
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// ChainGateway is the read-only on-chain capability the engine depends
// on. Implementations carry their own timeouts; on error the engine's
// convention is "treat as absent", never retry.
type ChainGateway interface {
	// ERC-20
	TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// ERC-4626 vault
	ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error)

	// Uniswap-V3-style position manager / factory / pool
	PositionCount(ctx context.Context, manager, owner common.Address) (int, error)
	PositionAt(ctx context.Context, manager, owner common.Address, index int) (LPRecord, error)
	PoolAddress(ctx context.Context, factory, token0, token1 common.Address, fee uint32) (common.Address, error)
	PoolState(ctx context.Context, pool common.Address) (PoolState, error)

	// Historical logs (Transfer from the zero address, with block timestamps)
	MintTimestamp(ctx context.Context, manager common.Address, tokenID *big.Int) (time.Time, error)
	FirstDeposit(ctx context.Context, vault, owner common.Address) (time.Time, error)
	VaultDepositors(ctx context.Context, vault common.Address, fromBlock, toBlock uint64) ([]common.Address, error)

	// Chain head
	BlockNumber(ctx context.Context) (uint64, error)
}

// ScanRepository persists scanner state and results.
type ScanRepository interface {
	GetCursor(ctx context.Context, vault string) (uint64, error)
	SaveCursor(ctx context.Context, vault string, block uint64) error

	SaveScanRun(ctx context.Context, run *ScanRun) error
	ListScanRuns(ctx context.Context, limit int) ([]*ScanRun, error)

	SaveLoopWallets(ctx context.Context, wallets []*LoopWallet) error
	ListLoopWallets(ctx context.Context, limit int) ([]*LoopWallet, error)
}
