package models

import (
	"time"
)

// Sentinel values for an unassigned task. AssignedUser and AssignedUserName
// form a pair: every write that touches one must set both.
const (
	Unassigned     = ""
	UnassignedName = "unassigned"
)

type Task struct {
	ID               string    `json:"_id" bson:"_id"`
	Name             string    `json:"name" bson:"name"`
	Description      string    `json:"description" bson:"description"`
	Deadline         time.Time `json:"deadline" bson:"deadline"`
	Completed        bool      `json:"completed" bson:"completed"`
	AssignedUser     string    `json:"assignedUser" bson:"assignedUser"`
	AssignedUserName string    `json:"assignedUserName" bson:"assignedUserName"`
	DateCreated      time.Time `json:"dateCreated" bson:"dateCreated"`
}

// IsAssigned reports whether the task has a non-sentinel assignee.
func (t *Task) IsAssigned() bool {
	return t.AssignedUser != Unassigned
}

// IsPending reports whether the task belongs in its assignee's pendingTasks.
func (t *Task) IsPending() bool {
	return t.IsAssigned() && !t.Completed
}

// AssignTo sets the assignee pair from a user record.
func (t *Task) AssignTo(u *User) {
	t.AssignedUser = u.ID
	t.AssignedUserName = u.Name
}

// Unassign resets the assignee pair to the sentinels.
func (t *Task) Unassign() {
	t.AssignedUser = Unassigned
	t.AssignedUserName = UnassignedName
}

// Normalize fills the sentinel name when the task carries no assignee.
func (t *Task) Normalize() {
	if t.AssignedUser == Unassigned && t.AssignedUserName == "" {
		t.AssignedUserName = UnassignedName
	}
}
