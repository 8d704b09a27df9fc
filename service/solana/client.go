package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client is the gateway to the ledger RPC service. It performs exactly one remote
// call per method invocation; retrying is the caller's responsibility.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// ListSignatures returns up to limit signature refs for address, strictly older than
// before when before is non-empty. Results are newest first; an empty slice means
// the history is exhausted.
func (c *Client) ListSignatures(ctx context.Context, address solana.PublicKey, before string, limit int) ([]SignatureRef, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	}
	if before != "" {
		sig, err := solana.SignatureFromBase58(before)
		if err != nil {
			return nil, fmt.Errorf("invalid before signature %q: %w", before, err)
		}
		opts.Before = sig
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"wallet", address.String(),
		"limit", limit,
		"before", before,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, address, opts)
	c.recordCall(ctx, "GetSignaturesForAddress", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
	}

	refs := make([]SignatureRef, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		refs = append(refs, signatureToRef(sig))
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"wallet", address.String(),
		"count", len(refs),
	)

	return refs, nil
}

// GetTransaction fetches one transaction body. It returns (nil, nil) when the node
// has no body for the signature (pruned, or not yet confirmed).
func (c *Client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.recordCall(ctx, "GetTransaction", err, time.Since(start))

	// Some nodes fail to decode legacy transactions when a version is requested.
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
			"signature", signature,
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("GetTransaction", "parse_error")
		}
		legacyStart := time.Now()
		result, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{Encoding: solana.EncodingBase64})
		c.recordCall(ctx, "GetTransaction", err, time.Since(legacyStart))
	}

	if errors.Is(err, rpc.ErrNotFound) {
		c.logger.DebugContext(ctx, "transaction not found", "signature", signature)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return transactionFromResult(signature, result), nil
}

func (c *Client) recordCall(ctx context.Context, method string, err error, d time.Duration) {
	status := "success"
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		status = "error"
		c.logger.DebugContext(ctx, "rpc call failed",
			"method", method,
			"error", err,
		)
	}
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
	if IsRateLimited(err) {
		c.metrics.RecordRateLimitHit(c.endpoint)
	}
}

// IsRateLimited reports whether err looks like an HTTP 429 from the RPC provider.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}
