package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Info describes a tenant known to the tenant backend.
type Info struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Code string `json:"Code"`
}

// NucleusClient lists tenants from the administrative backend.
type NucleusClient struct {
	BaseURL    string
	LoginID    string
	Password   string
	HTTPClient *http.Client
	MaxTries   uint
}

// NewNucleusClient creates a client with a 25s request timeout.
func NewNucleusClient(baseURL, loginID, password string) *NucleusClient {
	return &NucleusClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		LoginID:    loginID,
		Password:   password,
		HTTPClient: &http.Client{Timeout: 25 * time.Second},
		MaxTries:   3,
	}
}

type signInRequest struct {
	LoginID  string `json:"LoginId"`
	Password string `json:"Password"`
}

type signInResponse struct {
	AccessToken string `json:"AccessToken"`
}

type listTenantsResponse struct {
	Objects []Info `json:"Objects"`
}

// ListTenants signs in and fetches the tenant list, retrying transient failures.
func (c *NucleusClient) ListTenants(ctx context.Context) ([]Info, error) {
	return backoff.Retry(ctx, func() ([]Info, error) {
		accessToken, err := c.signIn(ctx)
		if err != nil {
			return nil, err
		}
		return c.listTenants(ctx, accessToken)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.MaxTries),
	)
}

func (c *NucleusClient) signIn(ctx context.Context) (string, error) {
	body, err := json.Marshal(signInRequest{LoginID: c.LoginID, Password: c.Password})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sys-admin/sign-in", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out signInResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	if out.AccessToken == "" {
		return "", backoff.Permanent(errors.New("sign in: empty access token"))
	}
	return out.AccessToken, nil
}

func (c *NucleusClient) listTenants(ctx context.Context, accessToken string) ([]Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/tenants", nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var out listTenantsResponse
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out.Objects, nil
}

func (c *NucleusClient) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
