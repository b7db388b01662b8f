package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const rpcTimeout = 10 * time.Second

// Client speaks the small fixed JSON-RPC call set the gateway needs
// (eth_call, eth_getLogs, eth_blockNumber, eth_getBlockByNumber). It is
// deliberately not a general-purpose RPC client.
type Client struct {
	httpURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(httpURL string, logger *zap.Logger) *Client {
	return &Client{
		httpURL: httpURL,
		http:    &http.Client{Timeout: rpcTimeout},
		logger:  logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LogEntry is one eth_getLogs result item.
type LogEntry struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	Removed     bool     `json:"removed"`
}

func (c *Client) do(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status=%d %s", method, resp.StatusCode, string(b))
	}

	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if parsed.Error != nil {
		return fmt.Errorf("%s: rpc error code=%d %s", method, parsed.Error.Code, parsed.Error.Message)
	}
	return json.Unmarshal(parsed.Result, result)
}

// Call performs eth_call against the latest block and returns the raw
// return data.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var result string
	params := []interface{}{
		map[string]string{"to": to.Hex(), "data": hexutil.Encode(data)},
		"latest",
	}
	if err := c.do(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	return hexutil.Decode(result)
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.do(ctx, "eth_blockNumber", []interface{}{}, &result); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(result)
}

// BlockTimestamp returns the timestamp of the given block.
func (c *Client) BlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	var result struct {
		Timestamp string `json:"timestamp"`
	}
	params := []interface{}{hexutil.EncodeUint64(block), false}
	if err := c.do(ctx, "eth_getBlockByNumber", params, &result); err != nil {
		return time.Time{}, err
	}
	ts, err := hexutil.DecodeUint64(result.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

// GetLogs queries historical logs for one contract. Topics follow the
// eth_getLogs convention: nil entries match anything.
func (c *Client) GetLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64, topics []interface{}) ([]LogEntry, error) {
	filter := map[string]interface{}{
		"address":   address.Hex(),
		"fromBlock": hexutil.EncodeUint64(fromBlock),
		"toBlock":   hexutil.EncodeUint64(toBlock),
	}
	if len(topics) > 0 {
		filter["topics"] = topics
	}
	var result []LogEntry
	if err := c.do(ctx, "eth_getLogs", []interface{}{filter}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
