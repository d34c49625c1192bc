// Package backup snapshots the SQLite database, encrypts the snapshot with a
// passphrase and keeps it in the S3 bucket under a retention window.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/huzaifasad/backendforfamily/internal/apperr"
	"github.com/huzaifasad/backendforfamily/internal/blob"
	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/model"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

var (
	ErrDisabled   = errors.New("backups are not configured")
	ErrInProgress = apperr.Conflict("a backup is already running")
)

const (
	SourceScheduled = "scheduled"
	SourceManual    = "manual"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Manager struct {
	db         *sql.DB
	records    *store.BackupStore
	client     s3Client
	bucket     string
	prefix     string
	passphrase string
	retention  int
	now        func() time.Time
	logger     *slog.Logger

	running sync.Mutex
}

// New returns a manager for db. It is disabled unless both the bucket and
// the passphrase are configured.
func New(db *sql.DB, records *store.BackupStore, cfg config.BackupConfig, s3cfg config.S3Config, logger *slog.Logger) *Manager {
	m := &Manager{
		db:         db,
		records:    records,
		bucket:     s3cfg.Bucket,
		prefix:     cfg.Prefix,
		passphrase: cfg.Passphrase,
		retention:  cfg.RetentionDays,
		now:        time.Now,
		logger:     logger,
	}
	if cfg.Enabled() && s3cfg.Enabled() {
		m.client = blob.NewS3Client(s3cfg)
	}
	return m
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// List returns the newest backup records first.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.records.List(limit)
}

// Run takes one snapshot now. Only one run happens at a time; a concurrent
// call gets ErrInProgress.
func (m *Manager) Run(ctx context.Context, source string) (*model.Backup, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	if !m.running.TryLock() {
		return nil, ErrInProgress
	}
	defer m.running.Unlock()

	started := m.now().UTC()
	key := fmt.Sprintf("%sfamilyhub-%s-%s.db.enc", m.prefix, started.Format("20060102T150405Z"), uuid.NewString()[:8])
	rec, err := m.records.Create(key, source, started)
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	size, err := m.upload(ctx, rec)
	if err != nil {
		if serr := m.records.UpdateStatus(rec.ID, model.BackupFailed, err.Error()); serr != nil {
			m.logger.Error("mark backup failed", "backup_id", rec.ID, "error", serr)
		}
		return nil, fmt.Errorf("backup %d: %w", rec.ID, err)
	}

	if err := m.records.MarkCompleted(rec.ID, size, m.now()); err != nil {
		return nil, err
	}
	m.logger.Info("backup completed", "backup_id", rec.ID, "key", key, "bytes", size, "source", source)
	return m.records.GetByID(rec.ID)
}

func (m *Manager) upload(ctx context.Context, rec *model.Backup) (int64, error) {
	if err := m.records.UpdateStatus(rec.ID, model.BackupUploading, ""); err != nil {
		return 0, err
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	sealed, err := Seal(snapshot, m.passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(rec.ObjectKey),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	return int64(len(sealed)), nil
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and returns its bytes. This works for file and in-memory databases alike.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "familyhub-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Cleanup drops records and objects older than the retention window and
// returns how many records were removed. Object deletion failures are logged
// and do not stop the sweep.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if m.client == nil {
		return 0, nil
	}
	before := m.now().UTC().AddDate(0, 0, -m.retention)
	keys, err := m.records.DeleteOlderThan(before)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete expired backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("expired backups removed", "count", len(keys), "before", before)
	}
	return len(keys), nil
}

// RunScheduled is the cron job: a snapshot followed by retention cleanup.
// Cleanup runs even when the snapshot failed.
func (m *Manager) RunScheduled(ctx context.Context) error {
	_, runErr := m.Run(ctx, SourceScheduled)
	if _, err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
	return runErr
}

// Restore downloads backup id (the latest completed one when id is 0),
// decrypts it, checks its integrity and writes it to dst. The live database
// is left alone; swapping files is up to the operator.
func (m *Manager) Restore(ctx context.Context, id int64, dst string) (*model.Backup, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	var rec *model.Backup
	var err error
	if id == 0 {
		rec, err = m.records.LatestCompleted()
	} else {
		rec, err = m.records.GetByID(id)
	}
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Status != model.BackupCompleted {
		return nil, apperr.NotFound("no completed backup found")
	}

	obj, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(rec.ObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rec.ObjectKey, err)
	}
	sealed, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rec.ObjectKey, err)
	}

	plain, err := Open(sealed, m.passphrase)
	if err != nil {
		return nil, err
	}

	tmp := dst + ".restoring"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return nil, fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("move restored db: %w", err)
	}
	return rec, nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
