package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRPCClient(t *testing.T) {
	_, err := NewRPCClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no RPC endpoints configured")

	c, err := NewRPCClient("https://api.mainnet-beta.solana.com", "https://mainnet.helius-rpc.com")
	require.NoError(t, err)
	assert.Len(t, c.(*realRPCClient).clients, 2)
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		urls []string
		want string
	}{
		{[]string{"https://api.mainnet-beta.solana.com"}, "mainnet"},
		{[]string{"https://api.devnet.solana.com"}, "devnet"},
		{[]string{"https://mainnet.helius-rpc.com/?api-key=secret"}, "helius"},
		{[]string{"https://some-endpoint.quiknode.pro/KEY/"}, "quiknode"},
		{[]string{"https://rpc.ankr.com/solana"}, "ankr"},
		{[]string{"http://localhost:8899"}, "localhost"},
		{[]string{"https://a.example.com", "https://b.example.com"}, "pool"},
		{nil, "unknown"},
		{[]string{"::bad"}, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EndpointLabel(tt.urls), tt.urls)
	}
}
