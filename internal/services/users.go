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

// UserInput carries the client-supplied fields of a user document. Replace
// consumes the full set; it is not a patch.
type UserInput struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PendingTasks []string `json:"pendingTasks"`
}

type UserService interface {
	CreateUser(ctx context.Context, in UserInput) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, q query.Query) ([]models.User, error)
	CountUsers(ctx context.Context, q query.Query) (int64, error)
	ReplaceUser(ctx context.Context, id string, in UserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type UserServiceImpl struct {
	store     store.Store
	validator *validation.Validator
	applier   *reconcile.Applier
}

func NewUserService(s store.Store, v *validation.Validator, a *reconcile.Applier) *UserServiceImpl {
	return &UserServiceImpl{store: s, validator: v, applier: a}
}

// Every mutation walks the same line: validate fields, validate the
// relationship payload, persist the primary document, reconcile the other
// side. Validation failures abort before anything is written; reconciliation
// failures never undo the primary write.

func (s *UserServiceImpl) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	if err := validateUserFields(in); err != nil {
		return nil, err
	}

	resolved, err := s.validator.ValidatePendingSet(ctx, in.PendingTasks)
	if err != nil {
		return nil, err
	}
	pending := taskIDs(resolved)

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "generating user id", err)
	}

	user := &models.User{
		ID:           id.String(),
		Name:         in.Name,
		Email:        in.Email,
		PendingTasks: pending,
		DateCreated:  time.Now().UTC(),
	}
	user.Normalize()

	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, errs.New(errs.UniqueViolation, errs.CodeDuplicateEmail,
				"a user with this email already exists")
		}
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "creating user", err)
	}

	ops := reconcile.PlanUserChange(user.ID, user.Name, nil, user.PendingTasks)
	s.applier.Apply(ctx, "user", user.ID, ops)

	return user, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id string) (*models.User, error) {
	if !validation.IsWellFormedID(id) {
		return nil, errs.New(errs.NotFound, errs.CodeNotFound, "user not found")
	}
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.New(errs.NotFound, errs.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "loading user", err)
	}
	return user, nil
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, q query.Query) ([]models.User, error) {
	users, err := s.store.FindUsers(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "listing users", err)
	}
	return users, nil
}

func (s *UserServiceImpl) CountUsers(ctx context.Context, q query.Query) (int64, error) {
	n, err := s.store.CountUsers(ctx, q)
	if err != nil {
		return 0, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "counting users", err)
	}
	return n, nil
}

func (s *UserServiceImpl) ReplaceUser(ctx context.Context, id string, in UserInput) (*models.User, error) {
	old, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateUserFields(in); err != nil {
		return nil, err
	}

	resolved, err := s.validator.ValidatePendingSet(ctx, in.PendingTasks)
	if err != nil {
		return nil, err
	}
	pending := taskIDs(resolved)

	user := &models.User{
		ID:           old.ID,
		Name:         in.Name,
		Email:        in.Email,
		PendingTasks: pending,
		DateCreated:  old.DateCreated,
	}
	user.Normalize()

	if err := s.store.ReplaceUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, errs.New(errs.UniqueViolation, errs.CodeDuplicateEmail,
				"a user with this email already exists")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.NotFound, errs.CodeNotFound, "user not found")
		}
		return nil, errs.Wrap(errs.Storage, errs.CodeStorageFailure, "replacing user", err)
	}

	ops := reconcile.PlanUserChange(user.ID, user.Name, old.PendingTasks, user.PendingTasks)
	s.applier.Apply(ctx, "user", user.ID, ops)

	return user, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, id string) error {
	old, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.New(errs.NotFound, errs.CodeNotFound, "user not found")
		}
		return errs.Wrap(errs.Storage, errs.CodeStorageFailure, "deleting user", err)
	}

	ops := reconcile.PlanUserDelete(old.ID, old.Name, old.PendingTasks)
	s.applier.Apply(ctx, "user", old.ID, ops)

	return nil
}

func validateUserFields(in UserInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errs.New(errs.BadInput, errs.CodeMissingField, "name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return errs.New(errs.BadInput, errs.CodeMissingField, "email is required")
	}
	if !validation.IsValidEmail(in.Email) {
		return errs.New(errs.BadInput, errs.CodeInvalidEmail, "email is not a valid address")
	}
	return nil
}

func taskIDs(tasks []models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
