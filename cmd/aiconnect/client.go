package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsclarke/aiconnect/internal/client"
)

type clientConfig struct {
	apiURL  string
	reqCode string
	timeout time.Duration
}

func addClientFlags(cmd *cobra.Command, cfg *clientConfig) {
	cmd.Flags().StringVar(&cfg.apiURL, "api-url", getEnv("AICONNECT_API_URL", "http://localhost:8081/v1"), "gateway URL including the version prefix")
	cmd.Flags().StringVar(&cfg.reqCode, "req-code", "cli", "ReqCode sent with each request")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 30*time.Second, "request timeout")
}

func (cfg *clientConfig) newClient() (*client.Client, error) {
	if cfg.apiURL == "" {
		return nil, fmt.Errorf("API URL required (use --api-url flag or AICONNECT_API_URL env var)")
	}
	c := client.NewClient(cfg.apiURL)
	c.ReqCode = cfg.reqCode
	c.HTTP.Timeout = cfg.timeout
	return c, nil
}
