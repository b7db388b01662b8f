package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

const erc20ABIJSON = `[
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const vaultABIJSON = `[
	{"name":"convertToAssets","type":"function","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const managerABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"tokenOfOwnerByIndex","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"positions","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[
		{"name":"nonce","type":"uint96"},
		{"name":"operator","type":"address"},
		{"name":"token0","type":"address"},
		{"name":"token1","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"tickLower","type":"int24"},
		{"name":"tickUpper","type":"int24"},
		{"name":"liquidity","type":"uint128"},
		{"name":"feeGrowthInside0LastX128","type":"uint256"},
		{"name":"feeGrowthInside1LastX128","type":"uint256"},
		{"name":"tokensOwed0","type":"uint128"},
		{"name":"tokensOwed1","type":"uint128"}
	]}
]`

const factoryABIJSON = `[
	{"name":"getPool","type":"function","stateMutability":"view","inputs":[{"name":"token0","type":"address"},{"name":"token1","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[{"name":"","type":"address"}]}
]`

const poolABIJSON = `[
	{"name":"slot0","type":"function","stateMutability":"view","inputs":[],"outputs":[
		{"name":"sqrtPriceX96","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"observationIndex","type":"uint16"},
		{"name":"observationCardinality","type":"uint16"},
		{"name":"observationCardinalityNext","type":"uint16"},
		{"name":"feeProtocol","type":"uint8"},
		{"name":"unlocked","type":"bool"}
	]}
]`

var (
	erc20ABI   = mustABI(erc20ABIJSON)
	vaultABI   = mustABI(vaultABIJSON)
	managerABI = mustABI(managerABIJSON)
	factoryABI = mustABI(factoryABIJSON)
	poolABI    = mustABI(poolABIJSON)

	// keccak256("Transfer(address,address,uint256)")
	transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	zeroTopic     = common.Hash{}
)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Gateway implements domain.ChainGateway over the JSON-RPC client. Pool
// slot0 reads prefer the WS watcher's cache when one is attached. Token
// metadata is immutable on chain and cached for the process lifetime.
type Gateway struct {
	client *Client
	states *PoolStateCache
	logger *zap.Logger

	tokenMu    sync.RWMutex
	tokenCache map[common.Address]domain.TokenMetadata
}

func NewGateway(client *Client, states *PoolStateCache, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:     client,
		states:     states,
		logger:     logger,
		tokenCache: make(map[common.Address]domain.TokenMetadata),
	}
}

func (g *Gateway) TokenMetadata(ctx context.Context, token common.Address) (domain.TokenMetadata, error) {
	g.tokenMu.RLock()
	if meta, ok := g.tokenCache[token]; ok {
		g.tokenMu.RUnlock()
		return meta, nil
	}
	g.tokenMu.RUnlock()

	symbol, err := g.callSymbol(ctx, token)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	out, err := g.client.Call(ctx, token, data)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	vals, err := erc20ABI.Unpack("decimals", out)
	if err != nil || len(vals) != 1 {
		return domain.TokenMetadata{}, fmt.Errorf("decimals: bad return for %s", token.Hex())
	}
	decimals, ok := vals[0].(uint8)
	if !ok {
		return domain.TokenMetadata{}, fmt.Errorf("decimals: unexpected type for %s", token.Hex())
	}

	meta := domain.TokenMetadata{Address: token, Symbol: symbol, Decimals: int(decimals)}
	g.tokenMu.Lock()
	g.tokenCache[token] = meta
	g.tokenMu.Unlock()
	return meta, nil
}

// callSymbol handles both standard string returns and legacy bytes32
// symbols.
func (g *Gateway) callSymbol(ctx context.Context, token common.Address) (string, error) {
	data, err := erc20ABI.Pack("symbol")
	if err != nil {
		return "", err
	}
	out, err := g.client.Call(ctx, token, data)
	if err != nil {
		return "", err
	}
	if vals, err := erc20ABI.Unpack("symbol", out); err == nil && len(vals) == 1 {
		if s, ok := vals[0].(string); ok {
			return strings.TrimSpace(s), nil
		}
	}
	if len(out) >= 32 {
		trimmed := bytes.TrimRight(out[:32], "\x00")
		return strings.TrimSpace(string(trimmed)), nil
	}
	return "", fmt.Errorf("symbol: undecodable return for %s", token.Hex())
}

func (g *Gateway) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := g.client.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	vals, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("balanceOf: bad return for %s", token.Hex())
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected type for %s", token.Hex())
	}
	return balance, nil
}

func (g *Gateway) ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	data, err := vaultABI.Pack("convertToAssets", shares)
	if err != nil {
		return nil, err
	}
	out, err := g.client.Call(ctx, vault, data)
	if err != nil {
		return nil, err
	}
	vals, err := vaultABI.Unpack("convertToAssets", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("convertToAssets: bad return for %s", vault.Hex())
	}
	assets, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("convertToAssets: unexpected type for %s", vault.Hex())
	}
	return assets, nil
}

func (g *Gateway) PositionCount(ctx context.Context, manager, owner common.Address) (int, error) {
	data, err := managerABI.Pack("balanceOf", owner)
	if err != nil {
		return 0, err
	}
	out, err := g.client.Call(ctx, manager, data)
	if err != nil {
		return 0, err
	}
	vals, err := managerABI.Unpack("balanceOf", out)
	if err != nil || len(vals) != 1 {
		return 0, fmt.Errorf("manager balanceOf: bad return for %s", manager.Hex())
	}
	count, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("manager balanceOf: unexpected type for %s", manager.Hex())
	}
	return int(count.Int64()), nil
}

func (g *Gateway) PositionAt(ctx context.Context, manager, owner common.Address, index int) (domain.LPRecord, error) {
	data, err := managerABI.Pack("tokenOfOwnerByIndex", owner, big.NewInt(int64(index)))
	if err != nil {
		return domain.LPRecord{}, err
	}
	out, err := g.client.Call(ctx, manager, data)
	if err != nil {
		return domain.LPRecord{}, err
	}
	vals, err := managerABI.Unpack("tokenOfOwnerByIndex", out)
	if err != nil || len(vals) != 1 {
		return domain.LPRecord{}, fmt.Errorf("tokenOfOwnerByIndex: bad return for %s", manager.Hex())
	}
	tokenID, ok := vals[0].(*big.Int)
	if !ok {
		return domain.LPRecord{}, fmt.Errorf("tokenOfOwnerByIndex: unexpected type")
	}

	data, err = managerABI.Pack("positions", tokenID)
	if err != nil {
		return domain.LPRecord{}, err
	}
	out, err = g.client.Call(ctx, manager, data)
	if err != nil {
		return domain.LPRecord{}, err
	}
	vals, err = managerABI.Unpack("positions", out)
	if err != nil || len(vals) != 12 {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad return", tokenID)
	}

	rec := domain.LPRecord{TokenID: tokenID}
	var okAll bool
	if rec.Token0, okAll = vals[2].(common.Address); !okAll {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad token0", tokenID)
	}
	if rec.Token1, okAll = vals[3].(common.Address); !okAll {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad token1", tokenID)
	}
	fee, ok := vals[4].(*big.Int)
	if !ok {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad fee", tokenID)
	}
	rec.Fee = uint32(fee.Uint64())
	tickLower, ok := vals[5].(*big.Int)
	if !ok {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad tickLower", tokenID)
	}
	rec.TickLower = int(tickLower.Int64())
	tickUpper, ok := vals[6].(*big.Int)
	if !ok {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad tickUpper", tokenID)
	}
	rec.TickUpper = int(tickUpper.Int64())
	if rec.Liquidity, okAll = vals[7].(*big.Int); !okAll {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad liquidity", tokenID)
	}
	if rec.TokensOwed0, okAll = vals[10].(*big.Int); !okAll {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad tokensOwed0", tokenID)
	}
	if rec.TokensOwed1, okAll = vals[11].(*big.Int); !okAll {
		return domain.LPRecord{}, fmt.Errorf("positions(%s): bad tokensOwed1", tokenID)
	}
	return rec, nil
}

func (g *Gateway) PoolAddress(ctx context.Context, factory, token0, token1 common.Address, fee uint32) (common.Address, error) {
	data, err := factoryABI.Pack("getPool", token0, token1, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	out, err := g.client.Call(ctx, factory, data)
	if err != nil {
		return common.Address{}, err
	}
	vals, err := factoryABI.Unpack("getPool", out)
	if err != nil || len(vals) != 1 {
		return common.Address{}, fmt.Errorf("getPool: bad return for %s", factory.Hex())
	}
	pool, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPool: unexpected type")
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("getPool: no pool for pair")
	}
	return pool, nil
}

func (g *Gateway) PoolState(ctx context.Context, pool common.Address) (domain.PoolState, error) {
	if g.states != nil {
		if state, ok := g.states.Get(pool); ok {
			return state, nil
		}
	}

	data, err := poolABI.Pack("slot0")
	if err != nil {
		return domain.PoolState{}, err
	}
	out, err := g.client.Call(ctx, pool, data)
	if err != nil {
		return domain.PoolState{}, err
	}
	vals, err := poolABI.Unpack("slot0", out)
	if err != nil || len(vals) < 2 {
		return domain.PoolState{}, fmt.Errorf("slot0: bad return for %s", pool.Hex())
	}
	sqrtPrice, ok := vals[0].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("slot0: bad sqrtPriceX96")
	}
	tick, ok := vals[1].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("slot0: bad tick")
	}
	return domain.PoolState{SqrtPriceX96: sqrtPrice, Tick: int(tick.Int64())}, nil
}

// MintTimestamp finds the Transfer-from-zero log that minted the NFT and
// returns its block timestamp.
func (g *Gateway) MintTimestamp(ctx context.Context, manager common.Address, tokenID *big.Int) (time.Time, error) {
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return time.Time{}, err
	}
	topics := []interface{}{
		transferTopic.Hex(),
		zeroTopic.Hex(),
		nil,
		common.BigToHash(tokenID).Hex(),
	}
	logs, err := g.client.GetLogs(ctx, manager, 0, head, topics)
	if err != nil {
		return time.Time{}, err
	}
	if len(logs) == 0 {
		return time.Time{}, fmt.Errorf("no mint log for token %s", tokenID)
	}
	return g.logTimestamp(ctx, logs[0])
}

// FirstDeposit finds the wallet's first vault-share mint and returns its
// block timestamp.
func (g *Gateway) FirstDeposit(ctx context.Context, vault, owner common.Address) (time.Time, error) {
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return time.Time{}, err
	}
	topics := []interface{}{
		transferTopic.Hex(),
		zeroTopic.Hex(),
		common.BytesToHash(owner.Bytes()).Hex(),
	}
	logs, err := g.client.GetLogs(ctx, vault, 0, head, topics)
	if err != nil {
		return time.Time{}, err
	}
	if len(logs) == 0 {
		return time.Time{}, fmt.Errorf("no deposit log for %s", owner.Hex())
	}
	return g.logTimestamp(ctx, logs[0])
}

// VaultDepositors returns the distinct recipients of vault-share mints
// in the block range.
func (g *Gateway) VaultDepositors(ctx context.Context, vault common.Address, fromBlock, toBlock uint64) ([]common.Address, error) {
	topics := []interface{}{transferTopic.Hex(), zeroTopic.Hex()}
	logs, err := g.client.GetLogs(ctx, vault, fromBlock, toBlock, topics)
	if err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool)
	var depositors []common.Address
	for _, l := range logs {
		if l.Removed || len(l.Topics) < 3 {
			continue
		}
		to := common.HexToAddress(l.Topics[2])
		if to == (common.Address{}) || seen[to] {
			continue
		}
		seen[to] = true
		depositors = append(depositors, to)
	}
	return depositors, nil
}

func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	return g.client.BlockNumber(ctx)
}

func (g *Gateway) logTimestamp(ctx context.Context, entry LogEntry) (time.Time, error) {
	block, err := parseHexUint(entry.BlockNumber)
	if err != nil {
		return time.Time{}, err
	}
	return g.client.BlockTimestamp(ctx, block)
}

func parseHexUint(s string) (uint64, error) {
	v := new(big.Int)
	if _, ok := v.SetString(strings.TrimPrefix(s, "0x"), 16); !ok {
		return 0, fmt.Errorf("bad hex number %q", s)
	}
	return v.Uint64(), nil
}
