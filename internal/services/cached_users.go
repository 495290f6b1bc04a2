package services

import (
	"context"

	"taskify/internal/cache"
	"taskify/internal/models"
	"taskify/internal/query"
)

// CachedUserService mirrors CachedTaskService for the user side. A user
// mutation can reassign tasks away from other users, so before the write it
// collects the cached previous holders of every incoming task id and drops
// their tags afterwards; holders that were never cached have nothing stale.
type CachedUserService struct {
	inner UserService
	cache *cache.GuardedCache
}

func NewCachedUserService(inner UserService, c *cache.GuardedCache) *CachedUserService {
	return &CachedUserService{inner: inner, cache: c}
}

func (s *CachedUserService) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	priorTags := s.priorHolderTags(in.PendingTasks, "")

	user, err := s.inner.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidateAfterUserChange(priorTags, nil, user.PendingTasks)
	s.cacheUser(user)

	return user, nil
}

func (s *CachedUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var cached models.User
	if err := s.cache.Get(cache.UserKey(id), &cached); err == nil {
		return &cached, nil
	}

	user, err := s.inner.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheUser(user)

	return user, nil
}

func (s *CachedUserService) ListUsers(ctx context.Context, q query.Query) ([]models.User, error) {
	key := cache.UserListKey(queryCacheKey(q))

	var cached []models.User
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	users, err := s.inner.ListUsers(ctx, q)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, users, listCacheTTL)

	return users, nil
}

func (s *CachedUserService) CountUsers(ctx context.Context, q query.Query) (int64, error) {
	q.Count = true
	key := cache.UserListKey(queryCacheKey(q))

	var cached int64
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	n, err := s.inner.CountUsers(ctx, q)
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, n, listCacheTTL)

	return n, nil
}

func (s *CachedUserService) ReplaceUser(ctx context.Context, id string, in UserInput) (*models.User, error) {
	old, _ := s.inner.GetUser(ctx, id)
	priorTags := s.priorHolderTags(in.PendingTasks, id)

	user, err := s.inner.ReplaceUser(ctx, id, in)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateByTag(cache.UserTag(id))
	var oldPending []string
	if old != nil {
		oldPending = old.PendingTasks
	}
	s.invalidateAfterUserChange(priorTags, oldPending, user.PendingTasks)
	s.cacheUser(user)

	return user, nil
}

func (s *CachedUserService) DeleteUser(ctx context.Context, id string) error {
	old, _ := s.inner.GetUser(ctx, id)

	if err := s.inner.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.cache.InvalidateByTag(cache.UserTag(id))
	var oldPending []string
	if old != nil {
		oldPending = old.PendingTasks
	}
	s.invalidateAfterUserChange(nil, oldPending, nil)

	return nil
}

func (s *CachedUserService) cacheUser(u *models.User) {
	s.cache.SetWithTags(cache.UserKey(u.ID), u, entityCacheTTL, []string{cache.UserTag(u.ID)})
}

// priorHolderTags reads the cached documents of the incoming task ids and
// returns the tags of assignees other than self. Runs before the mutation,
// while those cache entries still name the previous holders.
func (s *CachedUserService) priorHolderTags(taskIDs []string, selfID string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, tid := range taskIDs {
		var t models.Task
		if err := s.cache.Get(cache.TaskKey(tid), &t); err != nil {
			continue
		}
		if t.AssignedUser == models.Unassigned || t.AssignedUser == selfID {
			continue
		}
		if _, dup := seen[t.AssignedUser]; dup {
			continue
		}
		seen[t.AssignedUser] = struct{}{}
		tags = append(tags, cache.UserTag(t.AssignedUser))
	}
	return tags
}

func (s *CachedUserService) invalidateAfterUserChange(priorTags []string, oldPending, newPending []string) {
	for _, tag := range priorTags {
		s.cache.InvalidateByTag(tag)
	}

	keys := make([]string, 0, len(oldPending)+len(newPending))
	for _, tid := range oldPending {
		keys = append(keys, cache.TaskKey(tid))
	}
	for _, tid := range newPending {
		keys = append(keys, cache.TaskKey(tid))
	}
	s.cache.Delete(keys...)

	s.cache.DeletePattern(cache.TaskListPattern)
	s.cache.DeletePattern(cache.UserListPattern)
}
