package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks JSON over HTTP to the threshold-encryption service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type initializeRequest struct {
	ChainID     uint64 `json:"chainId"`
	UserAddress string `json:"userAddress"`
}

type initializeResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"sessionId"`
	Permit    Permit `json:"permit"`
	ExpiresAt int64  `json:"expiresAt"`
}

type encryptRequest struct {
	SessionID string `json:"sessionId"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

type encryptResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Ciphertext string `json:"ciphertext"`
}

type unsealRequest struct {
	SessionID  string `json:"sessionId"`
	Ciphertext string `json:"ciphertext"`
	Type       string `json:"type"`
}

type unsealResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Value   string `json:"value"`
}

// Initialize performs the authorization handshake for an identity and
// returns a fresh session.
func (c *Client) Initialize(ctx context.Context, chainID uint64, userAddress string) (Session, error) {
	var resp initializeResponse
	err := c.post(ctx, "/v1/initialize", initializeRequest{ChainID: chainID, UserAddress: userAddress}, &resp)
	if err != nil {
		return Session{}, err
	}
	if !resp.Success {
		return Session{}, fmt.Errorf("initialize rejected: %s", resp.Error)
	}
	if resp.SessionID == "" {
		return Session{}, fmt.Errorf("initialize returned empty session id")
	}

	session := Session{
		SessionID: resp.SessionID,
		Permit:    resp.Permit,
		Identity:  userAddress,
		CreatedAt: time.Now().UTC(),
	}
	if resp.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	}
	return session, nil
}

// Encrypt encrypts a plaintext value under the session and returns the
// ciphertext handle.
func (c *Client) Encrypt(ctx context.Context, sessionID string, value *big.Int, typ string) (string, error) {
	if value == nil {
		return "", fmt.Errorf("value is required")
	}
	var resp encryptResponse
	err := c.post(ctx, "/v1/encrypt", encryptRequest{SessionID: sessionID, Value: value.String(), Type: typ}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("encrypt rejected: %s", resp.Error)
	}
	if resp.Ciphertext == "" {
		return "", fmt.Errorf("encrypt returned empty ciphertext")
	}
	return resp.Ciphertext, nil
}

// Unseal decrypts a ciphertext handle back to its plaintext value. A
// service-side "not ready" failure maps to ErrNotYetMaterialized.
func (c *Client) Unseal(ctx context.Context, sessionID, ciphertext, typ string) (*big.Int, error) {
	var resp unsealResponse
	err := c.post(ctx, "/v1/unseal", unsealRequest{SessionID: sessionID, Ciphertext: ciphertext, Type: typ}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		if isNotMaterialized(resp.Error) {
			return nil, fmt.Errorf("%w: %s", ErrNotYetMaterialized, resp.Error)
		}
		return nil, fmt.Errorf("unseal rejected: %s", resp.Error)
	}

	value, ok := new(big.Int).SetString(resp.Value, 10)
	if !ok {
		return nil, fmt.Errorf("unseal returned invalid value: %s", resp.Value)
	}
	return value, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// isNotMaterialized matches the service's wording for a decryption
// target the threshold network has not finished processing.
func isNotMaterialized(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not yet materialized") ||
		strings.Contains(lower, "not ready") ||
		strings.Contains(lower, "still processing")
}
