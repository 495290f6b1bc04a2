package models

import (
	"time"
)

type User struct {
	ID           string    `json:"_id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PendingTasks []string  `json:"pendingTasks" bson:"pendingTasks"`
	DateCreated  time.Time `json:"dateCreated" bson:"dateCreated"`
}

// HasPendingTask reports whether id is already tracked in PendingTasks.
func (u *User) HasPendingTask(id string) bool {
	for _, t := range u.PendingTasks {
		if t == id {
			return true
		}
	}
	return false
}

// AddPendingTask appends id with set semantics (no duplicate entries).
func (u *User) AddPendingTask(id string) {
	if u.HasPendingTask(id) {
		return
	}
	u.PendingTasks = append(u.PendingTasks, id)
}

// RemovePendingTask drops id while preserving the order of the rest.
func (u *User) RemovePendingTask(id string) {
	kept := u.PendingTasks[:0]
	for _, t := range u.PendingTasks {
		if t != id {
			kept = append(kept, t)
		}
	}
	u.PendingTasks = kept
}

// Normalize ensures PendingTasks marshals as [] rather than null.
func (u *User) Normalize() {
	if u.PendingTasks == nil {
		u.PendingTasks = []string{}
	}
}
