package services

import (
	"context"
	"encoding/json"
	"time"

	"taskify/internal/cache"
	"taskify/internal/models"
	"taskify/internal/query"
)

const (
	entityCacheTTL = 30 * time.Minute
	listCacheTTL   = 5 * time.Minute
)

// CachedTaskService is a read-through decorator. Cache failures degrade to
// the inner service; they are never surfaced. Assigned tasks are tagged with
// their assignee so a user-side change can drop them in one invalidation.
type CachedTaskService struct {
	inner TaskService
	cache *cache.GuardedCache
}

func NewCachedTaskService(inner TaskService, c *cache.GuardedCache) *CachedTaskService {
	return &CachedTaskService{inner: inner, cache: c}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	task, err := s.inner.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidateAfterTaskChange(models.Unassigned, task.AssignedUser)
	s.cacheTask(task)

	return task, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var cached models.Task
	if err := s.cache.Get(cache.TaskKey(id), &cached); err == nil {
		return &cached, nil
	}

	task, err := s.inner.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheTask(task)

	return task, nil
}

func (s *CachedTaskService) ListTasks(ctx context.Context, q query.Query) ([]models.Task, error) {
	key := cache.TaskListKey(queryCacheKey(q))

	var cached []models.Task
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.inner.ListTasks(ctx, q)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, tasks, listCacheTTL)

	return tasks, nil
}

func (s *CachedTaskService) CountTasks(ctx context.Context, q query.Query) (int64, error) {
	q.Count = true
	key := cache.TaskListKey(queryCacheKey(q))

	var cached int64
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	n, err := s.inner.CountTasks(ctx, q)
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, n, listCacheTTL)

	return n, nil
}

func (s *CachedTaskService) ReplaceTask(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	old, _ := s.inner.GetTask(ctx, id)

	task, err := s.inner.ReplaceTask(ctx, id, in)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(cache.TaskKey(id))
	oldAssignee := models.Unassigned
	if old != nil {
		oldAssignee = old.AssignedUser
	}
	s.invalidateAfterTaskChange(oldAssignee, task.AssignedUser)
	s.cacheTask(task)

	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id string) error {
	old, _ := s.inner.GetTask(ctx, id)

	if err := s.inner.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(cache.TaskKey(id))
	oldAssignee := models.Unassigned
	if old != nil {
		oldAssignee = old.AssignedUser
	}
	s.invalidateAfterTaskChange(oldAssignee, models.Unassigned)

	return nil
}

func (s *CachedTaskService) cacheTask(t *models.Task) {
	key := cache.TaskKey(t.ID)
	if t.IsAssigned() {
		s.cache.SetWithTags(key, t, entityCacheTTL, []string{cache.UserTag(t.AssignedUser)})
		return
	}
	s.cache.Set(key, t, entityCacheTTL)
}

// invalidateAfterTaskChange drops every cached document whose content depends
// on the moved assignment: both assignees' user documents and their tagged
// tasks, plus all list results on both sides.
func (s *CachedTaskService) invalidateAfterTaskChange(oldAssignee, newAssignee string) {
	if oldAssignee != models.Unassigned {
		s.cache.InvalidateByTag(cache.UserTag(oldAssignee))
	}
	if newAssignee != models.Unassigned && newAssignee != oldAssignee {
		s.cache.InvalidateByTag(cache.UserTag(newAssignee))
	}
	s.cache.DeletePattern(cache.TaskListPattern)
	s.cache.DeletePattern(cache.UserListPattern)
}

// queryCacheKey folds a parsed query into a stable string. Map keys marshal
// sorted, so equal queries hash equally.
func queryCacheKey(q query.Query) string {
	raw, err := json.Marshal(q)
	if err != nil {
		return "unkeyed"
	}
	return string(raw)
}
