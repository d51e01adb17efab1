package geovrt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/config"
	"github.com/wgdzlh/geovrt/gdalio"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/metrics"
	"github.com/wgdzlh/geovrt/scratch"
	"github.com/wgdzlh/geovrt/scratch/s3"
	"github.com/wgdzlh/geovrt/vrt"
)

const (
	// metadata key of the GCP skip factor set by mappers or users
	KeySkipGCPs = "skip_gcps"

	// 边界采样点数（每条边）
	BorderPoints = 10

	// lle precision of a destination rebuilt from its corners
	cornerFormat = "-lle %0.3f %0.3f %0.3f %0.3f -ts %d %d"
)

// Setup applies the process wide parts of cfg: the zap logger and the GDAL
// backend for spatial references the pure-Go parser does not know.
func Setup(cfg *config.Config) (err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err = log.Init(cfg.Log.Level, cfg.Log.Dev); err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	gdalio.RegisterSRS()
	return
}

// NewStore builds the scratch store selected by cfg.Driver.
func NewStore(ctx context.Context, cfg config.Scratch) (store scratch.Store, err error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		store = scratch.NewMemory()
	case config.DriverFS:
		store, err = scratch.NewFS(cfg.Dir)
	case config.DriverS3:
		store, err = s3.New(ctx, s3.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		err = fmt.Errorf("unknown scratch driver %q", cfg.Driver)
	}
	if err != nil {
		log.Error(logTag+"scratch store failed", zap.String("driver", cfg.Driver), zap.Error(err))
		return nil, err
	}
	log.Debug(logTag+"scratch store ready", zap.String("driver", string(store.Driver())))
	return
}

// NewEnv builds the shared node environment described by cfg.
func NewEnv(ctx context.Context, cfg *config.Config, m *metrics.Metrics, opener vrt.Opener) (*vrt.Env, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	store, err := NewStore(ctx, cfg.Scratch)
	if err != nil {
		return nil, err
	}
	return vrt.NewEnv(store, cfg.CacheSize, m, opener)
}
