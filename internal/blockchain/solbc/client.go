// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	solrpc "github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// PriorityFeeMethod is the fee-oracle JSON-RPC method (Helius-compatible).
const PriorityFeeMethod = "getPriorityFeeEstimate"

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	url    string
	logger *zap.Logger
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		url:    rpcURL,
		logger: logger.Named("solbc-client"),
	}
}

// Pool keeps one Client per endpoint so repeated dials share a transport.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Dial returns the cached client for endpoint, creating it on first use.
func (p *Pool) Dial(endpoint string) blockchain.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		return c
	}
	c := NewClient(endpoint, p.logger)
	p.clients[endpoint] = c
	return c
}

// Close closes every cached client. The pool stays usable afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for endpoint, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", endpoint, err))
		}
		delete(p.clients, endpoint)
	}
	return errors.Join(errs...)
}

// Dialer returns a blockchain.Dialer backed by a fresh Pool.
func Dialer(logger *zap.Logger) blockchain.Dialer {
	return NewPool(logger).Dial
}

// GetLatestBlockhash получает последний blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, solrpc.Wrap(err, c.url, "getLatestBlockhash")
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, solrpc.NewError(solrpc.ErrInvalidResponse, c.url, "getLatestBlockhash")
	}
	return result.Value.Blockhash, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts blockchain.SimulateOptions) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              opts.SigVerify,
		ReplaceRecentBlockhash: opts.ReplaceRecentBlockhash,
		Commitment:             opts.Commitment,
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, solrpc.Wrap(err, c.url, "simulateTransaction")
	}
	if result == nil || result.Value == nil {
		return nil, solrpc.NewError(solrpc.ErrInvalidResponse, c.url, "simulateTransaction")
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: result.Value.UnitsConsumed,
	}, nil
}

type priorityFeeOptions struct {
	PriorityLevel types.PriorityLevel `json:"priorityLevel"`
}

type priorityFeeRequest struct {
	Transaction string             `json:"transaction"`
	Options     priorityFeeOptions `json:"options"`
}

type priorityFeeResult struct {
	PriorityFeeEstimate *float64 `json:"priorityFeeEstimate"`
}

// GetPriorityFeeEstimate запрашивает оценку priority fee (микролампорты за compute unit).
func (c *Client) GetPriorityFeeEstimate(ctx context.Context, serializedTx string, level types.PriorityLevel) (float64, error) {
	params := []interface{}{
		priorityFeeRequest{
			Transaction: serializedTx,
			Options:     priorityFeeOptions{PriorityLevel: level},
		},
	}

	var out priorityFeeResult
	if err := c.rpc.RPCCallForInto(ctx, &out, PriorityFeeMethod, params); err != nil {
		c.logger.Error("GetPriorityFeeEstimate error",
			zap.String("priority_level", level.String()),
			zap.Error(err))
		return 0, solrpc.Wrap(err, c.url, PriorityFeeMethod)
	}
	if out.PriorityFeeEstimate == nil {
		return 0, solrpc.NewError(
			fmt.Errorf("%w: missing priorityFeeEstimate", solrpc.ErrInvalidResponse),
			c.url, PriorityFeeMethod)
	}
	return *out.PriorityFeeEstimate, nil
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, searchHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, searchHistory, signatures...)
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, solrpc.Wrap(err, c.url, "getSignatureStatuses")
	}
	return result, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, solrpc.Wrap(err, c.url, "sendTransaction")
	}
	return sig, nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
