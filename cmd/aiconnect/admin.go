package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/config"
	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/token"
)

var adminFlags struct {
	dbPath string
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or flush the Redis result cache",
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys <namespace> [pattern]",
	Short: "List cache keys in a namespace",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCacheKeys,
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush <namespace|all>",
	Short: "Delete every entry in a namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheFlush,
}

var revokedCmd = &cobra.Command{
	Use:   "revoked",
	Short: "Inspect the session revocation list",
}

var revokedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List revoked session tokens",
	RunE:  runRevokedList,
}

var revokedPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop revocation entries for tokens that have expired",
	RunE:  runRevokedPrune,
}

func init() {
	rootCmd.AddCommand(cacheCmd, revokedCmd)
	cacheCmd.AddCommand(cacheKeysCmd, cacheFlushCmd)
	revokedCmd.AddCommand(revokedListCmd, revokedPruneCmd)

	revokedCmd.PersistentFlags().StringVar(&adminFlags.dbPath, "db", "", "gateway database path (default AICONNECT_DB)")
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("AICONNECT_REDIS_ADDR is not set; the in-memory cache lives only inside the server")
	}
	store, err := cache.NewRedisStore(cmd.Context(), cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	return cache.New(store, cfg.CacheTTL, logger.Named("cache")), nil
}

func runCacheKeys(cmd *cobra.Command, args []string) error {
	ns, err := cache.ParseNamespace(args[0])
	if err != nil {
		return err
	}
	pattern := "*"
	if len(args) == 2 {
		pattern = args[1]
	}

	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	keys, err := c.Keys(cmd.Context(), ns, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No keys found.")
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	var targets []cache.Namespace
	if args[0] == "all" {
		targets = cache.Namespaces()
	} else {
		ns, err := cache.ParseNamespace(args[0])
		if err != nil {
			return err
		}
		targets = []cache.Namespace{ns}
	}

	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, ns := range targets {
		if err := c.Flush(cmd.Context(), ns); err != nil {
			return fmt.Errorf("flush %s: %w", ns, err)
		}
		fmt.Printf("Flushed %s.\n", ns)
	}
	return nil
}

func openTokens() (*token.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	path := adminFlags.dbPath
	if path == "" {
		path = cfg.DBPath
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return token.NewService(cfg.JWTSecret, token.NewSQLiteStore(database)), func() { database.Close() }, nil
}

func runRevokedList(cmd *cobra.Command, args []string) error {
	tokens, closeDB, err := openTokens()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := tokens.RevokedTokens(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No revoked tokens.")
		return nil
	}

	fmt.Printf("%-16s  %-19s  %s\n", "HASH", "REVOKED", "EXPIRES")
	for _, e := range entries {
		hash := e.TokenHash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		fmt.Printf("%-16s  %-19s  %s\n", hash,
			time.Unix(e.RevokedAt, 0).Format("2006-01-02 15:04:05"),
			time.Unix(e.ExpiresAt, 0).Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRevokedPrune(cmd *cobra.Command, args []string) error {
	tokens, closeDB, err := openTokens()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := tokens.Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d revocation entries.\n", n)
	return nil
}
