package export

import (
	"fmt"

	"taskify/internal/models"
)

// Violation kinds. Each one is a direction of the association invariant
// caught broken at scan time.
const (
	ViolationDanglingTask     = "dangling_task"
	ViolationListedElsewhere  = "listed_wrong_assignee"
	ViolationCompletedListed  = "completed_still_listed"
	ViolationAssignedUnlisted = "assigned_not_listed"
	ViolationDoubleListed     = "double_listed"
)

type Violation struct {
	Kind   string `json:"kind"`
	UserID string `json:"userId,omitempty"`
	TaskID string `json:"taskId"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s task=%s user=%s: %s", v.Kind, v.TaskID, v.UserID, v.Detail)
}

// Check walks both sides of the association. It is a point-in-time read of
// data that is only guaranteed consistent at quiescence, so a violation
// means either a scan during repair or a repair that never ran.
func Check(users []models.User, tasks []models.Task) []Violation {
	taskByID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	var out []Violation
	listedBy := make(map[string]string)

	for _, u := range users {
		for _, taskID := range u.PendingTasks {
			if holder, dup := listedBy[taskID]; dup {
				out = append(out, Violation{
					Kind:   ViolationDoubleListed,
					UserID: u.ID,
					TaskID: taskID,
					Detail: fmt.Sprintf("also listed by user %s", holder),
				})
				continue
			}
			listedBy[taskID] = u.ID

			t, ok := taskByID[taskID]
			if !ok {
				out = append(out, Violation{
					Kind:   ViolationDanglingTask,
					UserID: u.ID,
					TaskID: taskID,
					Detail: "listed task does not exist",
				})
				continue
			}
			if t.Completed {
				out = append(out, Violation{
					Kind:   ViolationCompletedListed,
					UserID: u.ID,
					TaskID: taskID,
					Detail: "completed task still listed as pending",
				})
				continue
			}
			if t.AssignedUser != u.ID {
				out = append(out, Violation{
					Kind:   ViolationListedElsewhere,
					UserID: u.ID,
					TaskID: taskID,
					Detail: fmt.Sprintf("task is assigned to %q", t.AssignedUser),
				})
			}
		}
	}

	for _, t := range tasks {
		if !t.IsPending() {
			continue
		}
		if listedBy[t.ID] != t.AssignedUser {
			out = append(out, Violation{
				Kind:   ViolationAssignedUnlisted,
				UserID: t.AssignedUser,
				TaskID: t.ID,
				Detail: "assignee does not list the task as pending",
			})
		}
	}

	return out
}
