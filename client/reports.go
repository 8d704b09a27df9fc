package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
)

// Client is the HTTP client for the walletlens analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is returned for any non-success response.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("request failed (%d): %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new analysis service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// envelope is the {success, data} wrapper used by most endpoints.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// MintSearch runs a mint activity analysis of the last maxTxCount transactions.
func (c *Client) MintSearch(ctx context.Context, address string, filterFailed bool, maxTxCount int) (*analysis.MintActivityResult, error) {
	body := map[string]interface{}{
		"walletAddress": address,
		"filterFailed":  filterFailed,
		"maxTxCount":    maxTxCount,
	}

	var out envelope[analysis.MintActivityResult]
	if err := c.do(ctx, "POST", "/api/mint-search", body, http.StatusOK, &out); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "mint search complete", "address", address, "mints", len(out.Data.Data))
	return &out.Data, nil
}

// WalletAnalysis runs a volume and frequency analysis over the last hours.
// Fractional hours are allowed. A zero hours uses the server default.
func (c *Client) WalletAnalysis(ctx context.Context, address string, hours float64) (*analysis.TransactionAnalysis, error) {
	path := fmt.Sprintf("/api/wallets/%s/analysis", url.PathEscape(address))
	if hours != 0 {
		path += "?hours=" + strconv.FormatFloat(hours, 'f', -1, 64)
	}

	var out envelope[analysis.TransactionAnalysis]
	if err := c.do(ctx, "GET", path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// LatestMints returns the unique mints touched by the walletCount most
// recently discovered wallets. A zero walletCount uses the server default.
func (c *Client) LatestMints(ctx context.Context, walletCount int) ([]string, error) {
	path := "/api/latest-mintslist"
	if walletCount != 0 {
		path += "?walletCount=" + strconv.Itoa(walletCount)
	}

	var mints []string
	if err := c.do(ctx, "GET", path, nil, http.StatusOK, &mints); err != nil {
		return nil, err
	}
	return mints, nil
}

// SubmitWallets records discovered wallet addresses and returns how many were stored.
func (c *Client) SubmitWallets(ctx context.Context, walletIDs []string, source string) (int, error) {
	body := map[string]interface{}{
		"walletIds": walletIDs,
		"source":    source,
	}

	var out envelope[struct {
		Recorded int `json:"recorded"`
	}]
	if err := c.do(ctx, "POST", "/api/wallets", body, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Data.Recorded, nil
}

// TriggerRefresh starts a refresh run and returns its workflow ID.
func (c *Client) TriggerRefresh(ctx context.Context, walletCount, maxTxCount int) (string, error) {
	body := map[string]interface{}{
		"walletCount": walletCount,
		"maxTxCount":  maxTxCount,
	}

	var out envelope[struct {
		WorkflowID string `json:"workflowId"`
	}]
	if err := c.do(ctx, "POST", "/api/refresh", body, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.Data.WorkflowID, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "GET", "/health", nil, http.StatusOK, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Details: errResp.Details}
}
