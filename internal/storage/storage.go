// Package storage connects the app to the object storage holding sources, logos and results
package storage

import (
	"context"
	"time"

	"github.com/UnendingLoop/PhotoResizer/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

// NewObjectStorage keeps retrying until MinIO answers or ctx is canceled
func NewObjectStorage(ctx context.Context, cfg *config.Config, delay time.Duration) (*miniostorage.MinioStorage, error) {
	for {
		zlog.Logger.Info().Msg("Connecting to object storage...")
		client, err := miniostorage.NewMinioClient(ctx, miniostorage.ConfigFrom(cfg))
		if err == nil {
			zlog.Logger.Info().Msg("Successfully connected to object storage")
			return client, nil
		}
		zlog.Logger.Warn().Err(err).Dur("wait", delay).Msg("Failed to init connection to object storage")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
