package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"taskify/internal/journal"
	"taskify/internal/monitoring"
	"taskify/internal/reconcile"
)

// ReconcileSink records failed reconciliation ops in the journal and
// schedules their replay. It never propagates errors back to the mutation
// that triggered it; a sink failure is logged and the op stays visible
// through the journal (or only the log, if journaling itself failed).
type ReconcileSink struct {
	journal *journal.Journal
	queue   *JobQueue
	name    string
}

func NewReconcileSink(j *journal.Journal, q *JobQueue, queueName string) *ReconcileSink {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &ReconcileSink{journal: j, queue: q, name: queueName}
}

func (s *ReconcileSink) ReconcileFailed(ctx context.Context, entityKind, entityID string, op reconcile.Op, cause error) {
	var recordID uint
	if s.journal != nil {
		id, err := s.journal.Record(ctx, entityKind, entityID, op, cause)
		if err != nil {
			log.Printf("[worker] journal record for %s %s failed: %v", entityKind, entityID, err)
		} else {
			recordID = id
		}
	}

	if s.queue == nil {
		return
	}
	payload := map[string]interface{}{
		"journal_id": recordID,
		"op":         op,
	}
	if err := s.queue.Enqueue(s.name, JobTypeReconcileRetry, payload); err != nil {
		log.Printf("[worker] enqueue retry for %s %s failed (journal row %d still pending): %v",
			entityKind, entityID, recordID, err)
	}
}

// NewReconcileRetryHandler returns the handler for reconcile_retry jobs. It
// re-applies the journaled op (ops are idempotent, so replaying a repair that
// already happened is harmless) and settles the journal row.
func NewReconcileRetryHandler(applier *reconcile.Applier, j *journal.Journal) JobHandler {
	return func(ctx context.Context, job *Job) error {
		op, err := opFromPayload(job.Payload)
		if err != nil {
			return err
		}
		recordID := payloadUint(job.Payload, "journal_id")

		if err := applier.ApplyOp(ctx, op); err != nil {
			monitoring.ReconcileRetriesTotal.WithLabelValues("error").Inc()
			if j != nil && recordID > 0 {
				if nerr := j.NoteAttempt(ctx, recordID, err); nerr != nil {
					log.Printf("[worker] note attempt on journal row %d failed: %v", recordID, nerr)
				}
			}
			return fmt.Errorf("replay %s: %w", op, err)
		}

		monitoring.ReconcileRetriesTotal.WithLabelValues("ok").Inc()
		if j != nil && recordID > 0 {
			if err := j.MarkRepaired(ctx, recordID); err != nil {
				log.Printf("[worker] mark repaired on journal row %d failed: %v", recordID, err)
			}
		}
		return nil
	}
}

// RequeuePending re-enqueues journal rows that never got a retry job, e.g.
// because redis was down when the failure was recorded or the process died
// before the replay ran. Called once at startup.
func RequeuePending(ctx context.Context, j *journal.Journal, q *JobQueue, queueName string, limit int) (int, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	records, err := j.Pending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending journal rows: %w", err)
	}

	requeued := 0
	for _, rec := range records {
		op, err := rec.Op()
		if err != nil {
			log.Printf("[worker] journal row %d has undecodable op, skipping: %v", rec.ID, err)
			continue
		}
		payload := map[string]interface{}{
			"journal_id": rec.ID,
			"op":         op,
		}
		if err := q.Enqueue(queueName, JobTypeReconcileRetry, payload); err != nil {
			return requeued, fmt.Errorf("requeue journal row %d: %w", rec.ID, err)
		}
		requeued++
	}
	return requeued, nil
}

func opFromPayload(payload map[string]interface{}) (reconcile.Op, error) {
	raw, err := json.Marshal(payload["op"])
	if err != nil {
		return reconcile.Op{}, fmt.Errorf("encode op payload: %w", err)
	}
	var op reconcile.Op
	if err := json.Unmarshal(raw, &op); err != nil {
		return reconcile.Op{}, fmt.Errorf("decode op payload: %w", err)
	}
	if op.Kind == "" {
		return reconcile.Op{}, fmt.Errorf("op payload missing kind")
	}
	return op, nil
}

func payloadUint(payload map[string]interface{}, key string) uint {
	switch n := payload[key].(type) {
	case float64:
		return uint(n)
	case int:
		return uint(n)
	case uint:
		return n
	}
	return 0
}
