package artifacts

import (
	"context"
	"fmt"

	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the store for the configured backend. The returned close
// function releases backend clients.
func New(ctx context.Context, cfg config.ArtifactsConfig, logger *logrus.Logger) (*Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		blobs, err := NewGCSBlobs(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		logger.WithFields(logrus.Fields{"bucket": cfg.Bucket, "prefix": cfg.Prefix}).Info("Artifacts stored in Cloud Storage")
		return NewStore(blobs, cfg.OutputDir, cfg.DebugDir, logger), blobs.Close, nil
	case config.BackendFS, "":
		logger.WithField("dir", cfg.OutputDir).Info("Artifacts stored on local disk")
		return NewStore(NewFSBlobs(""), cfg.OutputDir, cfg.DebugDir, logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported artifacts backend %q", cfg.Backend)
	}
}
