package reconcile

import (
	"context"
	"fmt"
	"log"

	"taskify/internal/models"
	"taskify/internal/monitoring"
	"taskify/internal/store"
)

// OpKind names one cross-entity batch update primitive.
type OpKind string

const (
	OpUnassignTasks           OpKind = "unassign_tasks"
	OpAssignTasks             OpKind = "assign_tasks"
	OpPullTasksFromOtherUsers OpKind = "pull_tasks_from_other_users"
	OpPullTaskFromUser        OpKind = "pull_task_from_user"
	OpPushTaskToUser          OpKind = "push_task_to_user"
)

// Op is one idempotent side-effect operation. The field set is a union over
// the kinds; an Op round-trips through JSON so it can ride a retry queue.
// Replaying an Op any number of times converges on the same document state.
type Op struct {
	Kind     OpKind   `json:"kind"`
	TaskIDs  []string `json:"taskIds,omitempty"`
	TaskID   string   `json:"taskId,omitempty"`
	UserID   string   `json:"userId,omitempty"`
	UserName string   `json:"userName,omitempty"`
}

func (o Op) String() string {
	switch o.Kind {
	case OpUnassignTasks:
		return fmt.Sprintf("%s %v", o.Kind, o.TaskIDs)
	case OpAssignTasks:
		return fmt.Sprintf("%s %v -> user %s", o.Kind, o.TaskIDs, o.UserID)
	case OpPullTasksFromOtherUsers:
		return fmt.Sprintf("%s %v except %s", o.Kind, o.TaskIDs, o.UserID)
	default:
		return fmt.Sprintf("%s task %s user %s", o.Kind, o.TaskID, o.UserID)
	}
}

// PlanUserChange computes the ordered delta for a user's pendingTasks moving
// from oldPending to newPending. Removals come first so a task never looks
// assigned to two users from this mutation's own writes; additions then claim
// the tasks and pull them out of every other user's list.
func PlanUserChange(userID, userName string, oldPending, newPending []string) []Op {
	toRemove := difference(oldPending, newPending)
	toAdd := difference(newPending, oldPending)

	var ops []Op
	if len(toRemove) > 0 {
		ops = append(ops, Op{Kind: OpUnassignTasks, TaskIDs: toRemove})
	}
	if len(toAdd) > 0 {
		ops = append(ops,
			Op{Kind: OpAssignTasks, TaskIDs: toAdd, UserID: userID, UserName: userName},
			Op{Kind: OpPullTasksFromOtherUsers, TaskIDs: toAdd, UserID: userID},
		)
	}
	return ops
}

// PlanUserDelete is the degenerate user change with an empty new state.
func PlanUserDelete(userID, userName string, pending []string) []Op {
	return PlanUserChange(userID, userName, pending, nil)
}

// PlanTaskChange computes the ordered delta for a task's assignment moving
// between (oldAssignee, oldCompleted) and (newAssignee, newCompleted). The
// pull from the old assignee strictly precedes the push to the new one; both
// may target the same user document, so they must never run concurrently.
func PlanTaskChange(taskID, oldAssignee string, oldCompleted bool, newAssignee string, newCompleted bool) []Op {
	var ops []Op

	if oldAssignee != models.Unassigned &&
		(oldAssignee != newAssignee || (newCompleted && !oldCompleted)) {
		ops = append(ops, Op{Kind: OpPullTaskFromUser, TaskID: taskID, UserID: oldAssignee})
	}

	if newAssignee != models.Unassigned && !newCompleted &&
		(oldAssignee != newAssignee || oldCompleted) {
		ops = append(ops, Op{Kind: OpPushTaskToUser, TaskID: taskID, UserID: newAssignee})
	}

	return ops
}

// PlanTaskDelete is the degenerate task change with an unassigned new state.
func PlanTaskDelete(taskID, assignee string, completed bool) []Op {
	return PlanTaskChange(taskID, assignee, completed, models.Unassigned, false)
}

// FailureSink receives ops that failed after the primary write committed.
// Implementations record and schedule repair; they must not propagate the
// failure back to the mutation.
type FailureSink interface {
	ReconcileFailed(ctx context.Context, entityKind, entityID string, op Op, cause error)
}

// Applier executes planned ops against the store, strictly in order. An op
// failure is logged and handed to the sink; the sequence continues and the
// caller's mutation still succeeds. Hard failures belong before the primary
// write, never here.
type Applier struct {
	store store.Store
	sink  FailureSink
}

func NewApplier(s store.Store, sink FailureSink) *Applier {
	return &Applier{store: s, sink: sink}
}

// Apply runs each op to completion before starting the next.
func (a *Applier) Apply(ctx context.Context, entityKind, entityID string, ops []Op) {
	for _, op := range ops {
		if err := a.ApplyOp(ctx, op); err != nil {
			monitoring.ReconcileOpsTotal.WithLabelValues(string(op.Kind), "error").Inc()
			log.Printf("[reconcile] %s %s: %s failed: %v", entityKind, entityID, op, err)
			if a.sink != nil {
				a.sink.ReconcileFailed(ctx, entityKind, entityID, op, err)
			}
			continue
		}
		monitoring.ReconcileOpsTotal.WithLabelValues(string(op.Kind), "ok").Inc()
	}
}

// ApplyOp executes a single op. Retry handlers call this directly when
// replaying journaled failures.
func (a *Applier) ApplyOp(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpUnassignTasks:
		_, err := a.store.UnassignTasks(ctx, op.TaskIDs)
		return err
	case OpAssignTasks:
		_, err := a.store.AssignTasks(ctx, op.TaskIDs, op.UserID, op.UserName)
		return err
	case OpPullTasksFromOtherUsers:
		_, err := a.store.PullTasksFromOtherUsers(ctx, op.TaskIDs, op.UserID)
		return err
	case OpPullTaskFromUser:
		return a.store.PullTaskFromUser(ctx, op.UserID, op.TaskID)
	case OpPushTaskToUser:
		return a.store.PushTaskToUser(ctx, op.UserID, op.TaskID)
	default:
		return fmt.Errorf("reconcile: unknown op kind %q", op.Kind)
	}
}

// difference returns the members of a missing from b, preserving a's order
// and dropping duplicates.
func difference(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
