// Package client is a small HTTP client for the gateway's session and
// utility routes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/envelope"
)

// Client talks to one gateway. BaseURL includes the version prefix, for
// example http://localhost:8081/v1.
type Client struct {
	BaseURL string
	ReqCode string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ReqCode: "cli",
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a failure envelope returned by the gateway.
type Error struct {
	Status   int
	Envelope envelope.Envelope
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Envelope.EvCode, e.Status, e.Envelope.Message)
}

// response is an envelope whose Data is decoded into T.
type response[T any] struct {
	envelope.Envelope
	Data T `json:"Data"`
}

// SessionInit opens a session and returns its token.
func (c *Client) SessionInit(ctx context.Context, platformID, serviceIDs, ua, tenantCode string) (*api.SessionResponse, error) {
	body := api.SessionInitRequest{
		ReqID:        uuid.NewString(),
		ReqCode:      c.ReqCode,
		XPlatformID:  platformID,
		XPlatformSID: serviceIDs,
		XPlatformUA:  ua,
		TenantCode:   tenantCode,
	}
	var out response[api.SessionResponse]
	if err := c.do(ctx, http.MethodPost, "/session-init", "", body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SessionEnd revokes the session token.
func (c *Client) SessionEnd(ctx context.Context, sessionID string) error {
	var out response[json.RawMessage]
	return c.do(ctx, http.MethodPost, c.correlated("/session-end"), sessionID, nil, &out)
}

// SessionRenew exchanges the session token for a fresh one.
func (c *Client) SessionRenew(ctx context.Context, sessionID string) (*api.SessionResponse, error) {
	var out response[api.SessionResponse]
	if err := c.do(ctx, http.MethodPost, c.correlated("/session-renew"), sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Encrypt seals data with the gateway key.
func (c *Client) Encrypt(ctx context.Context, data string) (string, error) {
	body := api.EncryptRequest{ReqID: uuid.NewString(), ReqCode: c.ReqCode, Data: data}
	var out response[api.EncryptResponse]
	if err := c.do(ctx, http.MethodPost, "/encrypt", "", body, &out); err != nil {
		return "", err
	}
	return out.Data.EncryptData, nil
}

func (c *Client) Version(ctx context.Context) (*api.VersionInfo, error) {
	var out response[api.VersionResponse]
	if err := c.do(ctx, http.MethodGet, c.correlated("/version"), "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data.Version, nil
}

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) correlated(path string) string {
	q := url.Values{"ReqId": {uuid.NewString()}, "ReqCode": {c.ReqCode}}
	return path + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path, sessionID string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("sessionid", sessionID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var env envelope.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.EvCode == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &Error{Status: resp.StatusCode, Envelope: env}
}
