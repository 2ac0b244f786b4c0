// Package backup takes consistent SQLite snapshots, compresses them with
// zstd and keeps them in an S3 compatible bucket under
// <prefix>/<timestamp>.db.zst.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/r2client"
)

// Extension is appended to every backup key.
const Extension = ".db.zst"

// timestampLayout sorts lexically in creation order.
const timestampLayout = "20060102T150405Z"

// ErrLocked is returned by Run when another replica holds the backup lock.
var ErrLocked = errors.New("backup: another backup is in progress")

// Snapshotter writes a consistent copy of the database to dest.
// storage.DB implements it with VACUUM INTO.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, dest string) error
}

// ObjectStore is the bucket the backups live in. r2client.Client implements it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	List(ctx context.Context, prefix string) ([]r2client.Object, error)
	Delete(ctx context.Context, key string) error
}

// Locker serializes backups across replicas. Optional.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Recorder receives backup measurements. metrics.Metrics implements it.
type Recorder interface {
	RecordBackup(status string, size int64, duration time.Duration)
}

// Config holds backup manager settings.
type Config struct {
	Prefix  string // key prefix, e.g. "backups"
	Retain  int    // keep the newest N backups; 0 keeps everything
	TempDir string // directory for snapshot files
}

// Result describes one finished backup.
type Result struct {
	Key      string        `json:"key"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
	Pruned   []string      `json:"pruned,omitempty"`
}

// Manager runs and restores backups.
type Manager struct {
	db       Snapshotter
	store    ObjectStore
	lock     Locker
	recorder Recorder
	config   Config
	logger   *logger.Logger
	now      func() time.Time

	mu sync.Mutex // one local run at a time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker sets the cross-replica lock.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.lock = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithClock overrides time.Now, used for key timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a backup manager.
func New(db Snapshotter, store ObjectStore, cfg Config, log *logger.Logger, opts ...Option) *Manager {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	m := &Manager{
		db:     db,
		store:  store,
		config: cfg,
		logger: log.WithModule("backup"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the object key for a backup taken at t.
func (m *Manager) Key(t time.Time) string {
	name := t.UTC().Format(timestampLayout) + Extension
	if m.config.Prefix == "" {
		return name
	}
	return path.Join(m.config.Prefix, name)
}

func (m *Manager) listPrefix() string {
	if m.config.Prefix == "" {
		return ""
	}
	return m.config.Prefix + "/"
}

// Run snapshots the database, compresses it and uploads it, then prunes
// backups beyond the retention count.
func (m *Manager) Run(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	res, err := m.run(ctx)
	res.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrLocked) {
			status = "skipped"
		}
	}
	if m.recorder != nil {
		m.recorder.RecordBackup(status, res.Size, res.Duration)
	}

	log := m.logger.WithField("status", status).WithField("duration_ms", res.Duration.Milliseconds())
	if err != nil {
		log.WithError(err).WarnContext(ctx, "Backup did not complete")
		return res, err
	}
	log.WithField("key", res.Key).WithField("size", res.Size).InfoContext(ctx, "Backup uploaded")
	return res, nil
}

func (m *Manager) run(ctx context.Context) (Result, error) {
	if m.lock != nil {
		ok, err := m.lock.Acquire(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("backup: acquire lock: %w", err)
		}
		if !ok {
			return Result{}, ErrLocked
		}
		defer func() {
			// Release even when ctx is done.
			if rerr := m.lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				m.logger.WithError(rerr).Warn("Failed to release backup lock")
			}
		}()
	}

	dir, err := os.MkdirTemp(m.config.TempDir, "uts-backup-*")
	if err != nil {
		return Result{}, fmt.Errorf("backup: temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	snapshotPath := filepath.Join(dir, "snapshot.db")
	if err := m.db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return Result{}, fmt.Errorf("backup: snapshot: %w", err)
	}

	compressedPath := snapshotPath + ".zst"
	size, err := CompressFile(snapshotPath, compressedPath)
	if err != nil {
		return Result{}, fmt.Errorf("backup: %w", err)
	}

	f, err := os.Open(compressedPath)
	if err != nil {
		return Result{}, fmt.Errorf("backup: open compressed: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := m.Key(m.now())
	if _, err := m.store.Upload(ctx, key, f, "application/zstd"); err != nil {
		return Result{}, fmt.Errorf("backup: upload: %w", err)
	}

	res := Result{Key: key, Size: size}
	pruned, err := m.prune(ctx)
	if err != nil {
		// The upload itself succeeded.
		m.logger.WithError(err).WarnContext(ctx, "Failed to prune old backups")
	}
	res.Pruned = pruned
	return res, nil
}

// List returns the stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]r2client.Object, error) {
	objects, err := m.store.List(ctx, m.listPrefix())
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	out := objects[:0]
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, Extension) {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (m *Manager) prune(ctx context.Context) ([]string, error) {
	if m.config.Retain <= 0 {
		return nil, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(objects) <= m.config.Retain {
		return nil, nil
	}
	var pruned []string
	var errs []error
	for _, obj := range objects[m.config.Retain:] {
		if err := m.store.Delete(ctx, obj.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, obj.Key)
	}
	return pruned, errors.Join(errs...)
}

// Restore downloads key and decompresses it to dest. dest must not exist.
// The empty key restores the newest backup.
func (m *Manager) Restore(ctx context.Context, key, dest string) (string, error) {
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("backup: restore destination %s already exists", dest)
	}
	if key == "" {
		objects, err := m.List(ctx)
		if err != nil {
			return "", err
		}
		if len(objects) == 0 {
			return "", fmt.Errorf("backup: no backups under %q: %w", m.listPrefix(), r2client.ErrNotFound)
		}
		key = objects[0].Key
	}

	body, _, err := m.store.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("backup: download %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	if err := DecompressStream(body, dest); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("backup: %w", err)
	}
	m.logger.WithField("key", key).WithField("dest", dest).InfoContext(ctx, "Backup restored")
	return key, nil
}

// CompressFile compresses srcPath with zstd into dstPath and returns the
// compressed size.
func CompressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("compress: open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("compress: create dest: %w", err)
	}
	defer func() { _ = dst.Close() }()

	encoder, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("compress: create encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		_ = encoder.Close()
		return 0, fmt.Errorf("compress: copy: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return 0, fmt.Errorf("compress: close encoder: %w", err)
	}

	info, err := dst.Stat()
	if err != nil {
		return 0, fmt.Errorf("compress: stat: %w", err)
	}
	return info.Size(), nil
}

// DecompressStream decompresses a zstd stream into dstPath.
func DecompressStream(r io.Reader, dstPath string) error {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer decoder.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("decompress: create dest: %w", err)
	}
	if _, err := io.Copy(dst, decoder); err != nil {
		_ = dst.Close()
		return fmt.Errorf("decompress: copy: %w", err)
	}
	return dst.Close()
}
