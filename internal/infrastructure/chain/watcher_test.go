package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

func swapEventData(sqrtPriceX96 *big.Int, tick int64) string {
	word := func(v *big.Int) []byte {
		u := new(big.Int).Mod(v, new(big.Int).Lsh(big.NewInt(1), 256))
		return common.LeftPadBytes(u.Bytes(), 32)
	}
	var data []byte
	data = append(data, word(big.NewInt(-500))...)   // amount0
	data = append(data, word(big.NewInt(1200))...)   // amount1
	data = append(data, word(sqrtPriceX96)...)       // sqrtPriceX96
	data = append(data, word(big.NewInt(777777))...) // liquidity
	data = append(data, word(big.NewInt(tick))...)   // tick
	return "0x" + common.Bytes2Hex(data)
}

func TestDecodeSwapState(t *testing.T) {
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)

	t.Run("Positive tick", func(t *testing.T) {
		state, ok := decodeSwapState(swapEventData(sqrtPrice, 195000))
		if !ok {
			t.Fatal("decode failed")
		}
		if state.SqrtPriceX96.Cmp(sqrtPrice) != 0 {
			t.Errorf("sqrtPriceX96 = %s, want %s", state.SqrtPriceX96, sqrtPrice)
		}
		if state.Tick != 195000 {
			t.Errorf("tick = %d, want 195000", state.Tick)
		}
	})

	t.Run("Negative tick sign-extends", func(t *testing.T) {
		state, ok := decodeSwapState(swapEventData(sqrtPrice, -195000))
		if !ok {
			t.Fatal("decode failed")
		}
		if state.Tick != -195000 {
			t.Errorf("tick = %d, want -195000", state.Tick)
		}
	})

	t.Run("Truncated data", func(t *testing.T) {
		if _, ok := decodeSwapState("0x00ff"); ok {
			t.Error("decoded truncated payload")
		}
	})

	t.Run("Invalid hex", func(t *testing.T) {
		if _, ok := decodeSwapState("not-hex"); ok {
			t.Error("decoded garbage")
		}
	})
}

func TestPoolStateCache_TTL(t *testing.T) {
	pool := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	cache := NewPoolStateCache()
	cache.timeNow = func() time.Time { return now }

	if _, ok := cache.Get(pool); ok {
		t.Error("hit on empty cache")
	}

	state := domain.PoolState{SqrtPriceX96: big.NewInt(12345), Tick: -7}
	cache.Put(pool, state)

	got, ok := cache.Get(pool)
	if !ok || got.Tick != -7 {
		t.Fatalf("fresh entry: got (%+v, %v), want hit", got, ok)
	}

	now = now.Add(stateTTL + time.Second)
	if _, ok := cache.Get(pool); ok {
		t.Error("hit on expired entry, want fallback to eth_call")
	}
}

func TestWatcher_HandleSwapNotification(t *testing.T) {
	pool := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)

	notification := func(topic common.Hash, removed bool) []byte {
		raw, _ := json.Marshal(map[string]interface{}{
			"method": "eth_subscription",
			"params": map[string]interface{}{
				"result": map[string]interface{}{
					"address": pool.Hex(),
					"topics":  []string{topic.Hex()},
					"data":    swapEventData(sqrtPrice, 42),
					"removed": removed,
				},
			},
		})
		return raw
	}

	t.Run("Swap log feeds the cache", func(t *testing.T) {
		cache := NewPoolStateCache()
		w := NewWatcher("ws://unused", []common.Address{pool}, cache, zap.NewNop())
		w.handle(notification(swapTopic, false))

		state, ok := cache.Get(pool)
		if !ok {
			t.Fatal("cache miss after swap notification")
		}
		if state.Tick != 42 || state.SqrtPriceX96.Cmp(sqrtPrice) != 0 {
			t.Errorf("cached state = %+v", state)
		}
	})

	t.Run("Foreign topic ignored", func(t *testing.T) {
		cache := NewPoolStateCache()
		w := NewWatcher("ws://unused", []common.Address{pool}, cache, zap.NewNop())
		w.handle(notification(common.HexToHash(fmt.Sprintf("0x%064d", 1)), false))

		if _, ok := cache.Get(pool); ok {
			t.Error("foreign topic reached the cache")
		}
	})

	t.Run("Removed log ignored", func(t *testing.T) {
		cache := NewPoolStateCache()
		w := NewWatcher("ws://unused", []common.Address{pool}, cache, zap.NewNop())
		w.handle(notification(swapTopic, true))

		if _, ok := cache.Get(pool); ok {
			t.Error("reorged log reached the cache")
		}
	})

	t.Run("Malformed payload ignored", func(t *testing.T) {
		cache := NewPoolStateCache()
		w := NewWatcher("ws://unused", []common.Address{pool}, cache, zap.NewNop())
		w.handle([]byte("{not json"))

		if _, ok := cache.Get(pool); ok {
			t.Error("garbage reached the cache")
		}
	})
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(reconnectBase); got != 2*reconnectBase {
		t.Errorf("nextBackoff(base) = %v, want %v", got, 2*reconnectBase)
	}
	if got := nextBackoff(reconnectMax); got != reconnectMax {
		t.Errorf("nextBackoff(max) = %v, want cap %v", got, reconnectMax)
	}
}
