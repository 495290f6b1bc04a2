package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"taskify/internal/errs"
	"taskify/internal/models"
	"taskify/internal/query"
	"taskify/internal/reconcile"
	"taskify/internal/store"
	"taskify/internal/validation"
)

// Task list responses stay bounded when the client sends no limit.
const defaultTaskListLimit = 100

// TaskInput carries the client-supplied fields of a task document. The
// deadline arrives as a string and is parsed here; the assignee may be given
// by id, by name, or both.
type TaskInput struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Deadline         string `json:"deadline"`
	Completed        bool   `json:"completed"`
	AssignedUser     string `json:"assignedUser"`
	AssignedUserName string `json:"assignedUserName"`
}

type TaskService interface {
	CreateTask(ctx context.Context, in TaskInput) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, q query.Query) ([]models.Task, error)
	CountTasks(ctx context.Context, q query.Query) (int64, error)
	ReplaceTask(ctx context.Context, id string, in TaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type TaskServiceImpl struct {
	store     store.Store
	validator *validation.Validator
	applier   *reconcile.Applier
}

func NewTaskService(s store.Store, v *validation.Validator, a *reconcile.Applier) *TaskServiceImpl {
	return &TaskServiceImpl{store: s, validator: v, applier: a}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	deadline, err := validateTaskFields(in)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, in)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "generating task id", err)
	}

	task := &models.Task{
		ID:          id.String(),
		Name:        in.Name,
		Description: in.Description,
		Deadline:    deadline,
		Completed:   in.Completed,
		DateCreated: time.Now().UTC(),
	}
	if assignee != nil {
		task.AssignTo(assignee)
	} else {
		task.Unassign()
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "creating task", err)
	}

	ops := reconcile.PlanTaskChange(task.ID, models.Unassigned, false, task.AssignedUser, task.Completed)
	s.applier.Apply(ctx, "task", task.ID, ops)

	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id string) (*models.Task, error) {
	if !validation.IsWellFormedID(id) {
		return nil, errs.New(errs.NotFound, errs.CodeNotFound, "task not found")
	}
	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.New(errs.NotFound, errs.CodeNotFound, "task not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "loading task", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, q query.Query) ([]models.Task, error) {
	if q.Limit <= 0 {
		q.Limit = defaultTaskListLimit
	}
	tasks, err := s.store.FindTasks(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "listing tasks", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) CountTasks(ctx context.Context, q query.Query) (int64, error) {
	n, err := s.store.CountTasks(ctx, q)
	if err != nil {
		return 0, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "counting tasks", err)
	}
	return n, nil
}

func (s *TaskServiceImpl) ReplaceTask(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	old, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	deadline, err := validateTaskFields(in)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, in)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          old.ID,
		Name:        in.Name,
		Description: in.Description,
		Deadline:    deadline,
		Completed:   in.Completed,
		DateCreated: old.DateCreated,
	}
	if assignee != nil {
		task.AssignTo(assignee)
	} else {
		task.Unassign()
	}

	if err := s.store.ReplaceTask(ctx, task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.NotFound, errs.CodeNotFound, "task not found")
		}
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "replacing task", err)
	}

	ops := reconcile.PlanTaskChange(task.ID, old.AssignedUser, old.Completed, task.AssignedUser, task.Completed)
	s.applier.Apply(ctx, "task", task.ID, ops)

	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id string) error {
	old, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.New(errs.NotFound, errs.CodeNotFound, "task not found")
		}
		return errs.Wrap(errs.Storage, errs.CodeStorageFailure, "deleting task", err)
	}

	ops := reconcile.PlanTaskDelete(old.ID, old.AssignedUser, old.Completed)
	s.applier.Apply(ctx, "task", old.ID, ops)

	return nil
}

// resolveAssignee maps the sentinel name to "no assignee" before handing the
// pair to the validator.
func (s *TaskServiceImpl) resolveAssignee(ctx context.Context, in TaskInput) (*models.User, error) {
	byName := in.AssignedUserName
	if byName == models.UnassignedName {
		byName = ""
	}
	return s.validator.ResolveAssignee(ctx, in.AssignedUser, byName)
}

func validateTaskFields(in TaskInput) (time.Time, error) {
	if strings.TrimSpace(in.Name) == "" {
		return time.Time{}, errs.New(errs.BadInput, errs.CodeMissingField, "name is required")
	}
	if strings.TrimSpace(in.Deadline) == "" {
		return time.Time{}, errs.New(errs.BadInput, errs.CodeMissingField, "deadline is required")
	}
	deadline, ok := validation.ParseDate(in.Deadline)
	if !ok {
		return time.Time{}, errs.New(errs.BadInput, errs.CodeInvalidDate,
			"deadline is not a parseable date")
	}
	return deadline, nil
}
