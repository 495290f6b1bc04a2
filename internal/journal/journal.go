package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskify/internal/reconcile"
)

// FailureRecord is one dead-letter row: a reconciliation op that failed after
// its primary mutation had already committed. Rows stay until a retry
// succeeds and marks them repaired.
type FailureRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EntityKind string     `gorm:"size:16;not null" json:"entity_kind"`
	EntityID   string     `gorm:"size:64;not null;index" json:"entity_id"`
	OpKind     string     `gorm:"size:40;not null" json:"op_kind"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	LastError  string     `gorm:"type:text" json:"last_error"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	RepairedAt *time.Time `gorm:"index" json:"repaired_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Op decodes the journaled payload back into a replayable op.
func (r *FailureRecord) Op() (reconcile.Op, error) {
	var op reconcile.Op
	if err := json.Unmarshal([]byte(r.Payload), &op); err != nil {
		return op, fmt.Errorf("journal: decode op payload: %w", err)
	}
	return op, nil
}

type Options struct {
	Driver string
	DSN    string
}

type Journal struct {
	db *gorm.DB
}

// Open selects the journal backend: sqlite (default, file DSN or :memory:)
// or postgres.
func Open(opts Options) (*Journal, error) {
	dsn := opts.DSN

	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		if dsn == "" {
			dsn = "taskify_journal.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("journal: postgres driver requires a DSN")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", opts.Driver, err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm handle, migrating the schema.
func NewWithDB(db *gorm.DB) (*Journal, error) {
	if err := db.AutoMigrate(&FailureRecord{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record persists a failed op and returns the row id used by retries.
func (j *Journal) Record(ctx context.Context, entityKind, entityID string, op reconcile.Op, cause error) (uint, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return 0, fmt.Errorf("journal: encode op: %w", err)
	}

	rec := FailureRecord{
		EntityKind: entityKind,
		EntityID:   entityID,
		OpKind:     string(op.Kind),
		Payload:    string(payload),
		LastError:  cause.Error(),
		Attempts:   1,
	}
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("journal: record failure: %w", err)
	}
	return rec.ID, nil
}

// MarkRepaired closes a row after a replay converged.
func (j *Journal) MarkRepaired(ctx context.Context, id uint) error {
	now := time.Now()
	res := j.db.WithContext(ctx).Model(&FailureRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"repaired_at": now, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("journal: mark repaired: %w", res.Error)
	}
	return nil
}

// NoteAttempt bumps the retry counter and keeps the latest error text.
func (j *Journal) NoteAttempt(ctx context.Context, id uint, cause error) error {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"updated_at": time.Now(),
	}
	if cause != nil {
		updates["last_error"] = cause.Error()
	}
	res := j.db.WithContext(ctx).Model(&FailureRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("journal: note attempt: %w", res.Error)
	}
	return nil
}

// Pending returns unrepaired rows, oldest first.
func (j *Journal) Pending(ctx context.Context, limit int) ([]FailureRecord, error) {
	q := j.db.WithContext(ctx).
		Where("repaired_at IS NULL").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []FailureRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: list pending: %w", err)
	}
	return rows, nil
}

// PendingCount reports how many failures still await repair.
func (j *Journal) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.WithContext(ctx).Model(&FailureRecord{}).
		Where("repaired_at IS NULL").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("journal: count pending: %w", err)
	}
	return n, nil
}
