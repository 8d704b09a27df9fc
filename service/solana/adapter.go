package solana

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// When several endpoints are configured, each call goes to a randomly selected one
// so that per-endpoint rate limits are shared across providers.
type realRPCClient struct {
	clients []*rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURLs ...string) (RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}
	clients := make([]*rpc.Client, len(rpcURLs))
	for i, u := range rpcURLs {
		clients[i] = rpc.New(u)
	}
	return &realRPCClient{clients: clients}, nil
}

// EndpointLabel returns a short provider identifier for metrics labelling.
// Several endpoints are labelled "pool".
func EndpointLabel(rpcURLs []string) string {
	if len(rpcURLs) == 0 {
		return "unknown"
	}
	if len(rpcURLs) > 1 {
		return "pool"
	}

	parsed, err := url.Parse(rpcURLs[0])
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	host := parsed.Hostname()

	for _, provider := range []string{"helius", "quiknode", "quicknode", "alchemy", "triton", "rpcpool", "ankr"} {
		if strings.Contains(host, provider) {
			if provider == "quicknode" {
				return "quiknode"
			}
			return provider
		}
	}
	for _, cluster := range []string{"mainnet", "devnet", "testnet"} {
		if strings.Contains(host, cluster) {
			return cluster
		}
	}
	return host
}

func (r *realRPCClient) pick() *rpc.Client {
	return r.clients[rand.IntN(len(r.clients))]
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.pick().GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.pick().GetTransaction(ctx, signature, opts)
}
