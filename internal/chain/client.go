package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is a read-only view of an EVM chain: head, block times and eth_call.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client

	mu         sync.RWMutex
	blockTimes map[uint64]uint64
}

func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpc:        rc,
		eth:        ethclient.NewClient(rc),
		blockTimes: make(map[uint64]uint64),
	}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// ExpectChainID fails unless the endpoint serves the given chain. Zero skips
// the check.
func (c *Client) ExpectChainID(ctx context.Context, want uint64) error {
	if want == 0 {
		return nil
	}
	got, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if !got.IsUint64() || got.Uint64() != want {
		return fmt.Errorf("rpc serves chain %s, journal was written for %d", got, want)
	}
	return nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// BlockTimestamp returns a block's timestamp, cached per block number.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.blockTimes[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.blockTimes[number] = header.Time
	c.mu.Unlock()
	return header.Time, nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, block)
}
