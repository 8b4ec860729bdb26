package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/idgen"
	"github.com/NgigiN/finsync/internal/model"
)

// Database is the local durable queue of pending transactions.
type Database struct {
	db  *gorm.DB
	ids idgen.StringID
	now func() time.Time
}

// Option customises a Database.
type Option func(*Database)

// WithIDGenerator replaces the UUIDv7 generator used for local ids.
func WithIDGenerator(ids idgen.StringID) Option {
	return func(d *Database) { d.ids = ids }
}

// WithClock replaces the wall clock used for enqueue and sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// NewDatabase opens (or creates) the sqlite file at dbPath and migrates the
// schema.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperr.NewStorage(fmt.Errorf("failed to connect to database: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperr.NewStorage(fmt.Errorf("failed to get connection pool: %w", err))
	}
	// sqlite has a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, apperr.NewStorage(fmt.Errorf("failed to execute %q: %w", pragma, err))
		}
	}

	if err := db.AutoMigrate(&PendingTransaction{}); err != nil {
		sqlDB.Close()
		return nil, apperr.NewStorage(fmt.Errorf("failed to migrate schema: %w", err))
	}

	d := &Database{db: db, ids: idgen.NewUUID(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Enqueue stores p as an unsynced record and returns its local id.
func (d *Database) Enqueue(ctx context.Context, p model.Payload) (string, error) {
	row := newPendingTransaction(d.ids.Generate(), p, d.now().UTC())
	if err := d.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", apperr.NewStorage(fmt.Errorf("failed to save pending transaction: %w", err))
	}
	return row.LocalID, nil
}

// ListUnsynced returns every unsynced record, oldest first.
func (d *Database) ListUnsynced(ctx context.Context) ([]PendingTransaction, error) {
	var rows []PendingTransaction
	err := d.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("enqueued_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.NewStorage(fmt.Errorf("failed to list unsynced transactions: %w", err))
	}
	return rows, nil
}

// ListAll returns every record, oldest first. An empty owner matches all.
func (d *Database) ListAll(ctx context.Context, owner string) ([]PendingTransaction, error) {
	q := d.db.WithContext(ctx).Order("enqueued_at ASC").Order("id ASC")
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}

	var rows []PendingTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.NewStorage(fmt.Errorf("failed to list transactions: %w", err))
	}
	return rows, nil
}

// Get returns the record with the given local id.
func (d *Database) Get(ctx context.Context, localID string) (*PendingTransaction, error) {
	var row PendingTransaction
	err := d.db.WithContext(ctx).Where("local_id = ?", localID).Limit(1).Find(&row).Error
	if err != nil {
		return nil, apperr.NewStorage(fmt.Errorf("failed to get transaction %s: %w", localID, err))
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

// MarkSynced flags the record as confirmed by the remote API. Unknown or
// already synced ids are left untouched.
func (d *Database) MarkSynced(ctx context.Context, localID string) error {
	now := d.now().UTC()
	err := d.db.WithContext(ctx).Model(&PendingTransaction{}).
		Where("local_id = ? AND synced = ?", localID, false).
		Updates(map[string]any{"synced": true, "synced_at": now, "stalled": false}).Error
	if err != nil {
		return apperr.NewStorage(fmt.Errorf("failed to mark %s synced: %w", localID, err))
	}
	return nil
}

// RecordFailure counts a failed replay. When stall is true, or the attempt
// count reaches maxAttempts (if positive), the record is flagged stalled.
func (d *Database) RecordFailure(ctx context.Context, localID, reason string, stall bool, maxAttempts int) error {
	stalled := gorm.Expr("stalled")
	if stall {
		stalled = gorm.Expr("?", true)
	} else if maxAttempts > 0 {
		stalled = gorm.Expr("CASE WHEN attempts + 1 >= ? THEN 1 ELSE stalled END", maxAttempts)
	}

	err := d.db.WithContext(ctx).Model(&PendingTransaction{}).
		Where("local_id = ? AND synced = ?", localID, false).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
			"stalled":    stalled,
		}).Error
	if err != nil {
		return apperr.NewStorage(fmt.Errorf("failed to record failure for %s: %w", localID, err))
	}
	return nil
}

// Requeue clears the stalled flag and attempt count of an unsynced record.
// It reports whether such a record existed.
func (d *Database) Requeue(ctx context.Context, localID string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&PendingTransaction{}).
		Where("local_id = ? AND synced = ?", localID, false).
		Updates(map[string]any{"attempts": 0, "last_error": "", "stalled": false})
	if res.Error != nil {
		return false, apperr.NewStorage(fmt.Errorf("failed to requeue %s: %w", localID, res.Error))
	}
	return res.RowsAffected > 0, nil
}

// PruneSynced permanently deletes synced records and returns how many went.
func (d *Database) PruneSynced(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Unscoped().Where("synced = ?", true).Delete(&PendingTransaction{})
	if res.Error != nil {
		return 0, apperr.NewStorage(fmt.Errorf("failed to prune synced transactions: %w", res.Error))
	}
	return res.RowsAffected, nil
}

// Status counts records by sync state.
func (d *Database) Status(ctx context.Context) (Status, error) {
	var s Status
	err := d.db.WithContext(ctx).Model(&PendingTransaction{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN synced THEN 1 ELSE 0 END), 0) AS synced,
			COALESCE(SUM(CASE WHEN NOT synced AND stalled THEN 1 ELSE 0 END), 0) AS stalled`).
		Scan(&s).Error
	if err != nil {
		return Status{}, apperr.NewStorage(fmt.Errorf("failed to count transactions: %w", err))
	}
	s.Pending = s.Total - s.Synced
	return s, nil
}
