package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/acme"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/capability"
	"github.com/rsclarke/aiconnect/internal/config"
	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/logging"
	"github.com/rsclarke/aiconnect/internal/provider"
	"github.com/rsclarke/aiconnect/internal/provider/googlecloud"
	"github.com/rsclarke/aiconnect/internal/provider/openai"
	"github.com/rsclarke/aiconnect/internal/secret"
	"github.com/rsclarke/aiconnect/internal/server"
	"github.com/rsclarke/aiconnect/internal/tenant"
	"github.com/rsclarke/aiconnect/internal/token"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = time.Hour
)

var serverFlags struct {
	apiPort     int
	httpsPort   int
	httpPort    int
	domain      string
	tlsCert     string
	tlsKey      string
	acme        bool
	acmeEmail   string
	acmeStaging bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gateway listeners",
	Long: `Start the gateway. The API is always served over plain HTTP on --api-port.

TLS Modes:
  --tls-cert + --tls-key  → Manual TLS mode (use provided certificates)
  --acme                  → ACME mode (Let's Encrypt, HTTP-01 or TLS-ALPN)
  (neither)               → API port only

  In both TLS modes the API is also served on --https-port and --http-port
  redirects to it. In ACME mode --http-port also answers HTTP-01 challenges.

Notes:
  Ports 80 and 443 require root or 'setcap cap_net_bind_service'.
  ACME certificates are stored in the gateway database.
  SIGHUP reloads the tenant directory.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVar(&serverFlags.apiPort, "api-port", getEnvInt("AICONNECT_API_PORT", 8081), "API port to listen on")
	serverCmd.Flags().IntVar(&serverFlags.httpsPort, "https-port", getEnvInt("AICONNECT_HTTPS_PORT", 443), "HTTPS port to listen on")
	serverCmd.Flags().IntVar(&serverFlags.httpPort, "http-port", getEnvInt("AICONNECT_HTTP_PORT", 80), "HTTP redirect and ACME challenge port")
	serverCmd.Flags().StringVar(&serverFlags.domain, "domain", getEnv("AICONNECT_DOMAIN", ""), "public domain name (required for ACME)")
	serverCmd.Flags().StringVar(&serverFlags.tlsCert, "tls-cert", getEnv("AICONNECT_TLS_CERT", ""), "path to TLS certificate file (enables manual TLS mode)")
	serverCmd.Flags().StringVar(&serverFlags.tlsKey, "tls-key", getEnv("AICONNECT_TLS_KEY", ""), "path to TLS key file (enables manual TLS mode)")
	serverCmd.Flags().BoolVar(&serverFlags.acme, "acme", getEnvBool("AICONNECT_ACME", false), "obtain certificates automatically via ACME")
	serverCmd.Flags().StringVar(&serverFlags.acmeEmail, "acme-email", getEnv("AICONNECT_ACME_EMAIL", ""), "email for Let's Encrypt notifications")
	serverCmd.Flags().BoolVar(&serverFlags.acmeStaging, "acme-staging", getEnvBool("AICONNECT_ACME_STAGING", false), "use Let's Encrypt staging CA")
}

// gateway holds everything runServer opens.
type gateway struct {
	api       *server.APIServer
	database  *sql.DB
	tenants   *tenant.Registry
	cache     *cache.Cache
	directory *tenant.Directory
}

func (g *gateway) Close() {
	if g.cache != nil {
		_ = g.cache.Close()
	}
	if g.tenants != nil {
		_ = g.tenants.Close()
	}
	if g.database != nil {
		_ = g.database.Close()
	}
}

func buildGateway(ctx context.Context, cfg *config.Config) (*gateway, error) {
	g := &gateway{}

	sealer, err := secret.NewSealer(cfg.AESKey)
	if err != nil {
		if errors.Is(err, secret.ErrKeyMissing) {
			return nil, fmt.Errorf("AICONNECT_AES_KEY is required: %w", err)
		}
		return nil, err
	}
	if cfg.JWTSecret == "" {
		logger.Warn("AICONNECT_JWT_SECRET is not set; gated routes will fail")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	g.database = database
	tokens := token.NewService(cfg.JWTSecret, token.NewSQLiteStore(database))

	g.directory, err = tenant.LoadDirectory(cfg.TenantsFile)
	switch {
	case err == nil:
		logger.Info("tenant directory loaded", zap.String("path", cfg.TenantsFile), zap.Int("entries", g.directory.Len()))
	case errors.Is(err, fs.ErrNotExist) && cfg.ForcePlatform == "":
		logger.Info("no tenant directory", zap.String("path", cfg.TenantsFile))
	default:
		g.Close()
		return nil, fmt.Errorf("load tenant directory: %w", err)
	}

	var lister tenant.Lister = tenant.StaticLister(cfg.TenantCodes)
	if cfg.Nucleus.URL != "" {
		lister = tenant.NewNucleusClient(cfg.Nucleus.URL, cfg.Nucleus.LoginID, cfg.Nucleus.Password)
	}
	g.tenants, err = tenant.OpenRegistry(ctx, lister, cfg.TenantDBDir, cfg.TenantDBPrefix, logger.Named("tenant"))
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("open tenant databases: %w", err)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		store, err = cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("using redis cache", logging.Addr(cfg.RedisAddr))
	} else {
		store = cache.NewMemoryStore()
		logger.Info("using in-memory cache")
	}
	g.cache = cache.New(store, cfg.CacheTTL, logger.Named("cache"))

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	providers := provider.NewRegistry(cfg.ProviderTimeout, logger)
	providers.Register(openai.New(openai.Config{
		BaseURL:         cfg.OpenAI.BaseURL,
		Model:           cfg.OpenAI.Model,
		TTSModel:        cfg.OpenAI.TTSModel,
		TranscribeModel: cfg.OpenAI.TranscribeModel,
		HTTPClient:      httpClient,
	}))
	providers.Register(googlecloud.New(googlecloud.Config{
		Model:      cfg.GoogleCloud.Model,
		Location:   cfg.GoogleCloud.Location,
		HTTPClient: httpClient,
	}))
	for _, b := range providers.ListBackends() {
		logger.Info("provider registered", logging.Platform(string(b.Platform)), zap.Strings("capabilities", b.Capabilities))
	}

	g.api = &server.APIServer{
		Config:    cfg,
		Tokens:    tokens,
		Sealer:    sealer,
		Directory: g.directory,
		Gate:      auth.NewGate(tokens, sealer, cfg.PlatformAllowed, logger),
		Capabilities: capability.New(capability.Deps{
			Config:     cfg,
			Providers:  providers,
			Cache:      g.cache,
			Tenants:    g.tenants,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Logger: logger.Named("api"),
	}
	return g, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	handler := gw.api.Handler()
	var servers []*server.ManagedServer
	start := func(sc server.ServerConfig) error {
		ms := server.NewManagedServer(sc)
		if err := ms.Start(); err != nil {
			return err
		}
		servers = append(servers, ms)
		return nil
	}
	shutdown := func() {
		cancel()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		for i := len(servers) - 1; i >= 0; i-- {
			servers[i].Shutdown(sctx)
		}
	}
	defer shutdown()

	if err := start(server.DefaultServerConfig("api", fmt.Sprintf(":%d", serverFlags.apiPort), handler, cfg.ProviderTimeout, logger)); err != nil {
		return err
	}

	manualTLS := serverFlags.tlsCert != "" && serverFlags.tlsKey != ""
	var tlsConfig *tls.Config
	switch {
	case manualTLS:
		cert, err := tls.LoadX509KeyPair(serverFlags.tlsCert, serverFlags.tlsKey)
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}

		redirect := &server.RedirectServer{HTTPSPort: serverFlags.httpsPort, Logger: logger.Named("http")}
		if err := start(server.DefaultServerConfig("http", fmt.Sprintf(":%d", serverFlags.httpPort), redirect.Handler(), cfg.ProviderTimeout, logger)); err != nil {
			return err
		}
		logger.Info("tls enabled", logging.TLSMode("manual"))

	case serverFlags.acme:
		manager, err := acme.NewManager(serverFlags.domain, serverFlags.acmeEmail, gw.database, serverFlags.acmeStaging, logger.Named("certmagic"))
		if err != nil {
			return err
		}
		redirect := &server.RedirectServer{
			HTTPSPort: serverFlags.httpsPort,
			Challenge: manager.HTTPChallengeHandler,
			Logger:    logger.Named("http"),
		}
		if err := start(server.DefaultServerConfig("http", fmt.Sprintf(":%d", serverFlags.httpPort), redirect.Handler(), cfg.ProviderTimeout, logger)); err != nil {
			return err
		}

		logger.Info("starting acme certificate acquisition", logging.Domain(serverFlags.domain), zap.Bool("staging", serverFlags.acmeStaging))
		if err := manager.Manage(ctx); err != nil {
			return fmt.Errorf("ACME certificate acquisition: %w", err)
		}
		logger.Info("acme certificate obtained", logging.Domain(serverFlags.domain))
		tlsConfig = manager.TLSConfig()

	default:
		logger.Info("https disabled", zap.String("reason", "neither --acme nor --tls-cert/--tls-key given"))
	}

	if tlsConfig != nil {
		sc := server.DefaultServerConfig("https", fmt.Sprintf(":%d", serverFlags.httpsPort), handler, cfg.ProviderTimeout, logger)
		sc.TLSConfig = tlsConfig
		if err := start(sc); err != nil {
			return err
		}
	}

	go token.RunPruner(ctx, gw.api.Tokens, pruneInterval, logger.Named("pruner"))

	return wait(ctx, gw, servers)
}

// wait blocks until a termination signal or a listener failure. SIGHUP
// reloads the tenant directory.
func wait(ctx context.Context, gw *gateway, servers []*server.ManagedServer) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	errCh := make(chan error, len(servers))
	for _, ms := range servers {
		go func() {
			if err := <-ms.Err(); err != nil {
				errCh <- err
			}
		}()
	}

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloadDirectory(gw.directory)
				continue
			}
			logger.Info("shutting down", zap.String("signal", sig.String()))
			return nil
		case err := <-errCh:
			logger.Error("listener failed", zap.Error(err))
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func reloadDirectory(d *tenant.Directory) {
	if d == nil {
		logger.Warn("no tenant directory to reload")
		return
	}
	if err := d.Reload(); err != nil {
		logger.Error("tenant directory reload failed", zap.Error(err))
		return
	}
	logger.Info("tenant directory reloaded", zap.Int("entries", d.Len()))
}
