package store

import (
	"context"
	"fmt"
	"sync"

	"taskify/internal/models"
	"taskify/internal/query"
)

// MemoryStore keeps both collections in process memory behind one mutex.
// Each exported call is a single critical section, which gives the same
// per-document atomicity (and the same absence of cross-document
// transactions) the mongo backend offers. Used by tests and by
// STORAGE_DRIVER=memory dev setups.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
	tasks map[string]models.Task
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
	}
}

func cloneUser(u models.User) models.User {
	out := u
	out.PendingTasks = append([]string(nil), u.PendingTasks...)
	return out
}

func cloneTask(t models.Task) models.Task {
	return t
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneUser(u)
	out.Normalize()
	return &out, nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTask(t)
	return &out, nil
}

func (s *MemoryStore) FindUsers(ctx context.Context, q query.Query) ([]models.User, error) {
	s.mu.RLock()
	snapshot := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		snapshot = append(snapshot, cloneUser(u))
	}
	s.mu.RUnlock()

	docs, err := selectDocs(snapshot, q)
	if err != nil {
		return nil, fmt.Errorf("store: find users: %w", err)
	}

	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var u models.User
		if err := fromDoc(doc, &u); err != nil {
			return nil, fmt.Errorf("store: find users: %w", err)
		}
		u.Normalize()
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryStore) FindTasks(ctx context.Context, q query.Query) ([]models.Task, error) {
	s.mu.RLock()
	snapshot := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		snapshot = append(snapshot, cloneTask(t))
	}
	s.mu.RUnlock()

	docs, err := selectDocs(snapshot, q)
	if err != nil {
		return nil, fmt.Errorf("store: find tasks: %w", err)
	}

	out := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		var t models.Task
		if err := fromDoc(doc, &t); err != nil {
			return nil, fmt.Errorf("store: find tasks: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// selectDocs runs the full read pipeline over the typed snapshot: filter,
// deterministic _id tiebreak, requested sort, window, projection.
func selectDocs[T any](snapshot []T, q query.Query) ([]map[string]interface{}, error) {
	docs := make([]map[string]interface{}, 0, len(snapshot))
	for i := range snapshot {
		doc, err := toDoc(snapshot[i])
		if err != nil {
			return nil, err
		}
		if matchesFilter(doc, q.Filter) {
			docs = append(docs, doc)
		}
	}

	sortDocs(docs, []query.SortField{{Field: "_id"}})
	sortDocs(docs, q.Sort)
	docs = applyWindow(docs, q.Skip, q.Limit)

	if len(q.Select) > 0 {
		for i := range docs {
			docs[i] = projectDoc(docs[i], q.Select)
		}
	}
	return docs, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context, q query.Query) (int64, error) {
	users, err := s.FindUsers(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(users)), nil
}

func (s *MemoryStore) CountTasks(ctx context.Context, q query.Query) (int64, error) {
	tasks, err := s.FindTasks(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(tasks)), nil
}

func (s *MemoryStore) InsertUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("store: insert user: id %q already exists", u.ID)
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	u.Normalize()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemoryStore) InsertTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("store: insert task: id %q already exists", t.ID)
	}
	t.Normalize()
	s.tasks[t.ID] = cloneTask(*t)
	return nil
}

func (s *MemoryStore) ReplaceUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; !exists {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	u.Normalize()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemoryStore) ReplaceTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; !exists {
		return ErrNotFound
	}
	t.Normalize()
	s.tasks[t.ID] = cloneTask(*t)
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) UnassignTasks(ctx context.Context, taskIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for _, id := range taskIDs {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		if t.AssignedUser == models.Unassigned && t.AssignedUserName == models.UnassignedName {
			continue
		}
		t.Unassign()
		s.tasks[id] = t
		modified++
	}
	return modified, nil
}

func (s *MemoryStore) AssignTasks(ctx context.Context, taskIDs []string, userID, userName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for _, id := range taskIDs {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		if t.AssignedUser == userID && t.AssignedUserName == userName {
			continue
		}
		t.AssignedUser = userID
		t.AssignedUserName = userName
		s.tasks[id] = t
		modified++
	}
	return modified, nil
}

func (s *MemoryStore) PullTasksFromOtherUsers(ctx context.Context, taskIDs []string, exceptUserID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pull := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		pull[id] = struct{}{}
	}

	var modified int64
	for id, u := range s.users {
		if id == exceptUserID {
			continue
		}
		kept := u.PendingTasks[:0:0]
		for _, taskID := range u.PendingTasks {
			if _, drop := pull[taskID]; !drop {
				kept = append(kept, taskID)
			}
		}
		if len(kept) != len(u.PendingTasks) {
			u.PendingTasks = kept
			s.users[id] = u
			modified++
		}
	}
	return modified, nil
}

func (s *MemoryStore) PullTaskFromUser(ctx context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	if !u.HasPendingTask(taskID) {
		return nil
	}
	u.RemovePendingTask(taskID)
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) PushTaskToUser(ctx context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	if u.HasPendingTask(taskID) {
		return nil
	}
	u.AddPendingTask(taskID)
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
