package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

const (
	pingInterval  = 25 * time.Second
	reconnectBase = 2 * time.Second
	reconnectMax  = 30 * time.Second
	stateTTL      = 2 * time.Minute
)

// keccak256("Swap(address,address,int256,int256,uint160,uint128,int24)")
var swapTopic = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

// PoolStateCache holds the freshest known slot0 per pool, fed by the
// watcher's swap-event stream. Entries expire so a stalled stream falls
// back to eth_call.
type PoolStateCache struct {
	mu      sync.RWMutex
	states  map[common.Address]domain.PoolState
	updated map[common.Address]time.Time
	timeNow func() time.Time // for testing
}

func NewPoolStateCache() *PoolStateCache {
	return &PoolStateCache{
		states:  make(map[common.Address]domain.PoolState),
		updated: make(map[common.Address]time.Time),
		timeNow: time.Now,
	}
}

func (c *PoolStateCache) Put(pool common.Address, state domain.PoolState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[pool] = state
	c.updated[pool] = c.timeNow()
}

func (c *PoolStateCache) Get(pool common.Address) (domain.PoolState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[pool]
	if !ok || c.timeNow().Sub(c.updated[pool]) > stateTTL {
		return domain.PoolState{}, false
	}
	return state, true
}

// Watcher subscribes to Swap logs of the known pools over a websocket
// JSON-RPC endpoint and keeps the state cache current between
// valuations. It reconnects with exponential backoff and stops when the
// context is cancelled.
type Watcher struct {
	wsURL  string
	pools  []common.Address
	cache  *PoolStateCache
	logger *zap.Logger
}

func NewWatcher(wsURL string, pools []common.Address, cache *PoolStateCache, logger *zap.Logger) *Watcher {
	return &Watcher{wsURL: wsURL, pools: pools, cache: cache, logger: logger}
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result LogEntry `json:"result"`
	} `json:"params"`
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.pools) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	backoff := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.Dial(w.wsURL, nil)
		if err != nil {
			w.logger.Error("watcher dial failed", zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if err := w.subscribe(conn); err != nil {
			w.logger.Error("watcher subscribe failed", zap.Error(err))
			conn.Close()
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		w.logger.Info("watcher connected", zap.Int("pools", len(w.pools)))
		backoff = reconnectBase

		w.pump(ctx, conn)
		conn.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		w.logger.Info("watcher reconnecting", zap.Duration("backoff", backoff))
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}
}

func (w *Watcher) subscribe(conn *websocket.Conn) error {
	addresses := make([]string, 0, len(w.pools))
	for _, p := range w.pools {
		addresses = append(addresses, p.Hex())
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params: []interface{}{"logs", map[string]interface{}{
			"address": addresses,
			"topics":  []interface{}{swapTopic.Hex()},
		}},
	}
	return conn.WriteJSON(req)
}

func (w *Watcher) pump(ctx context.Context, conn *websocket.Conn) {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-pumpCtx.Done():
				return
			case <-t.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	go func() {
		<-pumpCtx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("watcher read error", zap.Error(err))
			}
			return
		}
		w.handle(raw)
	}
}

func (w *Watcher) handle(raw []byte) {
	var note wsNotification
	if err := json.Unmarshal(raw, &note); err != nil {
		return
	}
	if !strings.EqualFold(note.Method, "eth_subscription") {
		return
	}
	entry := note.Params.Result
	if entry.Removed || len(entry.Topics) == 0 {
		return
	}
	if common.HexToHash(entry.Topics[0]) != swapTopic {
		return
	}

	state, ok := decodeSwapState(entry.Data)
	if !ok {
		return
	}
	w.cache.Put(common.HexToAddress(entry.Address), state)
}

// decodeSwapState pulls sqrtPriceX96 and tick out of a Swap event's
// non-indexed data: int256 amount0, int256 amount1, uint160 sqrtPriceX96,
// uint128 liquidity, int24 tick. One 32-byte word each.
func decodeSwapState(data string) (domain.PoolState, bool) {
	raw, err := hexutil.Decode(data)
	if err != nil || len(raw) < 32*5 {
		return domain.PoolState{}, false
	}
	sqrtPrice := new(big.Int).SetBytes(raw[64:96])
	tick := decodeInt256(raw[128:160])
	return domain.PoolState{SqrtPriceX96: sqrtPrice, Tick: int(tick.Int64())}, true
}

func decodeInt256(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return v
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > reconnectMax {
		return reconnectMax
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
