package validation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/uuid"

	"taskify/internal/errs"
	"taskify/internal/models"
	"taskify/internal/query"
	"taskify/internal/store"
)

// IsValidEmail checks syntax only: exactly one @, non-empty parts free of
// whitespace, and a dot somewhere in the domain. No DNS lookup.
func IsValidEmail(s string) bool {
	if strings.Count(s, "@") != 1 {
		return false
	}
	parts := strings.SplitN(s, "@", 2)
	local, domain := parts[0], parts[1]
	if local == "" || domain == "" {
		return false
	}
	if strings.ContainsFunc(local, unicode.IsSpace) || strings.ContainsFunc(domain, unicode.IsSpace) {
		return false
	}
	return strings.Contains(domain, ".")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseDate accepts any supported calendar representation, including unix
// epoch seconds or milliseconds. It does not constrain past or future.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if isAllDigits(v) {
		var epoch int64
		for _, r := range v {
			epoch = epoch*10 + int64(r-'0')
		}
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), true
		}
		return time.Unix(epoch, 0).UTC(), true
	}
	return time.Time{}, false
}

func isAllDigits(s string) bool {
	if len(s) > 18 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// IsWellFormedID reports whether s parses as a UUID.
func IsWellFormedID(s string) bool {
	_, err := uuid.FromString(s)
	return err == nil
}

// Validator runs the datastore-backed checks. It holds no state beyond the
// injected store handle.
type Validator struct {
	store store.Store
}

func New(s store.Store) *Validator {
	return &Validator{store: s}
}

// ResolveAssignee resolves an optional assignee given by id, by name, or
// both. Empty inputs mean the task stays unassigned. When both are given the
// id wins and the name must agree with the resolved user's current name.
func (v *Validator) ResolveAssignee(ctx context.Context, byID, byName string) (*models.User, error) {
	if byID == "" && byName == "" {
		return nil, nil
	}

	if byID != "" {
		if !IsWellFormedID(byID) {
			return nil, errs.New(errs.RelationshipInvalid, errs.CodeInvalidIdentifier,
				"assignedUser is not a well-formed user id")
		}
		u, err := v.store.GetUser(ctx, byID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.RelationshipInvalid, errs.CodeUnknownUser,
				"assignedUser does not reference an existing user")
		}
		if err != nil {
			return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "resolving assignee", err)
		}
		if byName != "" && byName != u.Name {
			return nil, errs.New(errs.RelationshipInvalid, errs.CodeNameMismatch,
				"assignedUserName does not match the assigned user's name")
		}
		return u, nil
	}

	matches, err := v.store.FindUsers(ctx, query.Query{Filter: map[string]interface{}{"name": byName}})
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "resolving assignee by name", err)
	}
	switch len(matches) {
	case 0:
		return nil, errs.New(errs.RelationshipInvalid, errs.CodeUnknownUser,
			"assignedUserName does not reference an existing user")
	case 1:
		u := matches[0]
		return &u, nil
	default:
		return nil, errs.New(errs.RelationshipInvalid, errs.CodeAmbiguousName,
			"assignedUserName matches more than one user")
	}
}

// ValidatePendingSet checks a proposed pendingTasks set and returns the
// resolved task records so callers need no second read. Each staged check
// reports every offending id, not only the first.
func (v *Validator) ValidatePendingSet(ctx context.Context, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var malformed []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
		if !IsWellFormedID(id) {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return nil, errs.WithIDs(errs.RelationshipInvalid, errs.CodeMalformedIdentifier,
			"pendingTasks contains malformed task ids", malformed)
	}

	in := make([]interface{}, len(unique))
	for i, id := range unique {
		in[i] = id
	}
	found, err := v.store.FindTasks(ctx, query.Query{
		Filter: map[string]interface{}{"_id": map[string]interface{}{"$in": in}},
	})
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "resolving pending tasks", err)
	}

	byID := make(map[string]models.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	var missing []string
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, errs.WithIDs(errs.RelationshipInvalid, errs.CodeTaskNotFound,
			"pendingTasks references tasks that do not exist", missing)
	}

	var completed []string
	for _, id := range unique {
		if byID[id].Completed {
			completed = append(completed, id)
		}
	}
	if len(completed) > 0 {
		return nil, errs.WithIDs(errs.RelationshipInvalid, errs.CodeTaskCompleted,
			"pendingTasks references tasks that are already completed", completed)
	}

	resolved := make([]models.Task, 0, len(unique))
	for _, id := range unique {
		resolved = append(resolved, byID[id])
	}
	return resolved, nil
}
