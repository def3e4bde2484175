package mfasdk

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is deliberately generous: some provider operations (push
// dispatch, SMS gateways) are slow on the vendor side.
const DefaultTimeout = 30 * time.Second

// Config configures a provider Client.
type Config struct {
	BaseURL     string
	CustomerKey string // customer identifier, sent in every request body
	APIKey      string // shared secret, used only for request signing

	// Timeout for each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// InsecureSkipTLS disables certificate verification. Only for test
	// environments against self-signed provider instances; never set this
	// in production.
	InsecureSkipTLS bool
}

// Client calls the remote auth provider. It is stateless and safe for
// concurrent use.
type Client struct {
	baseURL     string
	customerKey string
	apiKey      string
	httpClient  *http.Client
}

// New builds a Client from cfg. Setting InsecureSkipTLS logs a warning so
// a misconfigured production deployment is loud in the logs.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipTLS {
		slog.Warn("mfasdk: TLS certificate verification DISABLED; do not run this in production")
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- explicit test-only opt-out
		}
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		customerKey: cfg.CustomerKey,
		apiKey:      cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// sign computes the per-request signature: hex SHA-512 of the customer
// key, the millisecond timestamp and the API key concatenated.
func (c *Client) sign(ts string) string {
	sum := sha512.Sum512([]byte(c.customerKey + ts + c.apiKey))
	return hex.EncodeToString(sum[:])
}

// post performs one signed JSON POST and decodes the response into out.
// There is no retry here on purpose: challenge and validate calls have
// side effects (OTP dispatch, attempt counting) and must run at most once.
func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Customer-Key", c.customerKey)
	req.Header.Set("Timestamp", ts)
	req.Header.Set("Authorization", c.sign(ts))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var decoder = json.NewDecoder(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure Response
		if err := decoder.Decode(&failure); err != nil || failure.Status == "" {
			return &TransportError{Op: op, Err: fmt.Errorf("HTTP %d with unparseable body", resp.StatusCode)}
		}
		return &ProviderError{Op: op, Status: failure.Status, Message: failure.Message, HTTPStatus: resp.StatusCode}
	}

	if err := decoder.Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
