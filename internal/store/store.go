package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskify/internal/models"
	"taskify/internal/query"
)

var (
	ErrNotFound       = errors.New("store: document not found")
	ErrDuplicateEmail = errors.New("store: email already exists")
)

// Driver names a storage backend.
type Driver string

const (
	DriverMongo  Driver = "mongo"
	DriverMemory Driver = "memory"
)

// Options configures Open.
type Options struct {
	Driver    string
	MongoURI  string
	MongoDB   string
	OpTimeout time.Duration
}

// Store is the datastore collaborator. Every write is atomic for a single
// document only; there are no multi-document transactions. The batch update
// primitives exist for the reconciler: each applies one patch to all matched
// documents and treats an already-applied patch or a missing target as a
// no-op, so replaying an operation is safe.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)

	FindUsers(ctx context.Context, q query.Query) ([]models.User, error)
	FindTasks(ctx context.Context, q query.Query) ([]models.Task, error)
	CountUsers(ctx context.Context, q query.Query) (int64, error)
	CountTasks(ctx context.Context, q query.Query) (int64, error)

	InsertUser(ctx context.Context, u *models.User) error
	InsertTask(ctx context.Context, t *models.Task) error
	ReplaceUser(ctx context.Context, u *models.User) error
	ReplaceTask(ctx context.Context, t *models.Task) error
	DeleteUser(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error

	UnassignTasks(ctx context.Context, taskIDs []string) (int64, error)
	AssignTasks(ctx context.Context, taskIDs []string, userID, userName string) (int64, error)
	PullTasksFromOtherUsers(ctx context.Context, taskIDs []string, exceptUserID string) (int64, error)
	PullTaskFromUser(ctx context.Context, userID, taskID string) error
	PushTaskToUser(ctx context.Context, userID, taskID string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open selects a backend from opts.Driver. An empty driver means mongo.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch Driver(strings.ToLower(opts.Driver)) {
	case DriverMongo, "":
		return OpenMongo(ctx, opts)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}
