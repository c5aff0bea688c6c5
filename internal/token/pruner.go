package token

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunPruner calls Prune every interval until ctx is cancelled.
func RunPruner(ctx context.Context, s *Service, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				logger.Warn("failed to prune revoked tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("pruned revoked tokens", zap.Int64("count", n))
			}
		}
	}
}
