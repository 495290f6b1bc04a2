// Package export takes dataset snapshots and checks the user/task
// association invariant over the whole dataset.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskify/internal/blob"
	"taskify/internal/models"
	"taskify/internal/query"
	"taskify/internal/store"
)

const keyPrefix = "exports/"

// Snapshot is the exported document. Violations is present only when the
// dataset was caught mid-repair; a snapshot is most valuable exactly then,
// so inconsistency is recorded rather than blocking the export.
type Snapshot struct {
	TakenAt    time.Time     `json:"takenAt"`
	Users      []models.User `json:"users"`
	Tasks      []models.Task `json:"tasks"`
	Violations []Violation   `json:"violations,omitempty"`
}

type Exporter struct {
	store store.Store
	blobs blob.Store
}

func NewExporter(s store.Store, b blob.Store) *Exporter {
	return &Exporter{store: s, blobs: b}
}

// Export reads the full dataset, checks it, and writes one JSON blob under
// exports/. The key embeds the capture time.
func (e *Exporter) Export(ctx context.Context) (blob.Info, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	if n := len(snap.Violations); n > 0 {
		log.Printf("[export] snapshot captured %d invariant violation(s)", n)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("export: encode snapshot: %w", err)
	}

	key := fmt.Sprintf("%staskify-%s.json", keyPrefix, snap.TakenAt.Format("20060102T150405Z"))
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return blob.Info{}, fmt.Errorf("export: write snapshot: %w", err)
	}
	return info, nil
}

// Verify scans the dataset and reports every invariant violation.
func (e *Exporter) Verify(ctx context.Context) ([]Violation, error) {
	users, tasks, err := e.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return Check(users, tasks), nil
}

func (e *Exporter) snapshot(ctx context.Context) (*Snapshot, error) {
	users, tasks, err := e.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		TakenAt:    time.Now().UTC(),
		Users:      users,
		Tasks:      tasks,
		Violations: Check(users, tasks),
	}, nil
}

func (e *Exporter) readAll(ctx context.Context) ([]models.User, []models.Task, error) {
	users, err := e.store.FindUsers(ctx, query.Query{})
	if err != nil {
		return nil, nil, fmt.Errorf("export: read users: %w", err)
	}
	tasks, err := e.store.FindTasks(ctx, query.Query{})
	if err != nil {
		return nil, nil, fmt.Errorf("export: read tasks: %w", err)
	}
	return users, tasks, nil
}
