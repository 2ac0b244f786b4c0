package backup

import (
	"context"
	"fmt"
	"path"

	"github.com/utsbot/uts-chatbot-go/internal/config"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/r2client"
)

// lockName is the object that serializes backups across replicas.
const lockName = ".lock"

// NewR2 builds a manager that stores backups in the configured R2 bucket and
// takes the cross-replica lock under the backup prefix.
func NewR2(ctx context.Context, cfg config.R2Config, db Snapshotter, log *logger.Logger, opts ...Option) (*Manager, error) {
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.EndpointURL(),
		AccessKeyID: cfg.AccessKeyID,
		SecretKey:   cfg.SecretAccessKey,
		BucketName:  cfg.BucketName,
	})
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	lock := r2client.NewLock(client, path.Join(cfg.BackupPrefix, lockName), config.BackupRun)
	opts = append([]Option{WithLocker(lock)}, opts...)
	return New(db, client, Config{
		Prefix: cfg.BackupPrefix,
		Retain: cfg.BackupRetain,
	}, log, opts...), nil
}
