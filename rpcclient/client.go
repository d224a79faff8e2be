// Package rpcclient provides typed accessors over the chain's JSON-RPC
// endpoint, in the way ethclient layers over rpc.Client, with strict
// field-by-field parsing of the chain-specific wire format and retry of
// transient failures.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// requestTimeout bounds every single JSON-RPC request.
	requestTimeout = 10 * time.Second
	// maxAttempts is the total number of tries for transient failures.
	maxAttempts = 3
	// initialRetryDelay doubles after every failed attempt.
	initialRetryDelay = 100 * time.Millisecond
)

// Client wraps an rpc.Client with the typed accessors the telemetry
// pipeline needs. It is stateless and safe for concurrent use.
type Client struct {
	c   *rpc.Client
	log log.Logger
}

// Dial connects a client to the given URL.
func Dial(rawurl string) (*Client, error) {
	return DialContext(context.Background(), rawurl)
}

// DialContext connects a client to the given URL with ctx governing the
// connection setup.
func DialContext(ctx context.Context, rawurl string) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: "dial", Err: err}
	}
	return NewClient(c), nil
}

// NewClient creates a client that uses the given RPC client.
func NewClient(c *rpc.Client) *Client {
	return &Client{c: c, log: log.New("component", "rpcclient")}
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.c.Close()
}

// call performs one JSON-RPC request with the per-request timeout,
// retrying transient failures with exponential backoff. Protocol and
// malformed-response failures surface immediately.
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	delay := initialRetryDelay
	for attempt := 1; ; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := c.c.CallContext(reqCtx, result, method, args...)
		cancel()
		if err == nil {
			return nil
		}
		kind := classify(err)
		if kind != KindTransport || attempt == maxAttempts {
			return &Error{Kind: kind, Method: method, Err: err}
		}
		c.log.Trace("Retrying RPC request", "method", method, "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &Error{Kind: KindTransport, Method: method, Err: ctx.Err()}
		}
		delay *= 2
	}
}

// BlockNumber returns the most recent block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexUint64
	if err := c.call(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// BlockByNumber returns the block with full transaction objects. A
// KindNotFound error is returned when the node does not have the block.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*RawBlock, error) {
	const method = "eth_getBlockByNumber"
	var raw json.RawMessage
	if err := c.call(ctx, &raw, method, hexutil.EncodeUint64(number), true); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &Error{Kind: KindNotFound, Method: method, Err: ErrNotFound}
	}
	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: method, Err: err}
	}
	resolved, err := block.resolve()
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Method: method, Err: err}
	}
	return resolved, nil
}

// BlockReceipts returns all receipts of the given block. A null result is
// reported as an empty slice; some nodes answer that way for empty blocks.
func (c *Client) BlockReceipts(ctx context.Context, number uint64) ([]*RawReceipt, error) {
	const method = "eth_getBlockReceipts"
	var raw json.RawMessage
	if err := c.call(ctx, &raw, method, hexutil.EncodeUint64(number)); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var wire []*rpcReceipt
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &Error{Kind: KindMalformed, Method: method, Err: err}
	}
	receipts := make([]*RawReceipt, 0, len(wire))
	for i, r := range wire {
		resolved, err := r.resolve()
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Method: method, Err: fmt.Errorf("receipt %d: %w", i, err)}
		}
		receipts = append(receipts, resolved)
	}
	return receipts, nil
}

// CodeAt returns the contract code of the given account at the latest block.
func (c *Client) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_getCode", account, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// BalanceAt returns the wei balance of the given account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var result hexBig
	if err := c.call(ctx, &result, "eth_getBalance", account, "latest"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// NonceAt returns the account nonce of the given account at the latest block.
func (c *Client) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var result hexUint64
	if err := c.call(ctx, &result, "eth_getTransactionCount", account, "latest"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// StorageAt returns the value of the given storage slot at the latest block.
func (c *Client) StorageAt(ctx context.Context, account common.Address, key common.Hash) (common.Hash, error) {
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_getStorageAt", account, key, "latest"); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(result), nil
}

// ChainID retrieves the chain ID of the connected node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexBig
	if err := c.call(ctx, &result, "eth_chainId"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// CallContract executes a read-only contract call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}
