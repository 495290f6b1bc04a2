package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"taskify/internal/models"
	"taskify/internal/query"
)

const (
	defaultMongoURI  = "mongodb://localhost:27017"
	defaultMongoDB   = "taskify"
	defaultOpTimeout = 5 * time.Second

	usersCollection = "users"
	tasksCollection = "tasks"
)

// MongoStore backs the datastore contract with two collections. All batch
// updates map onto single UpdateMany/UpdateOne calls, so atomicity stays at
// the document level exactly as the contract requires.
type MongoStore struct {
	client    *mongo.Client
	users     *mongo.Collection
	tasks     *mongo.Collection
	opTimeout time.Duration
}

// OpenMongo connects, verifies the deployment is reachable, and ensures the
// unique email index exists.
func OpenMongo(ctx context.Context, opts Options) (*MongoStore, error) {
	uri := opts.MongoURI
	if uri == "" {
		uri = defaultMongoURI
	}
	dbName := opts.MongoDB
	if dbName == "" {
		dbName = defaultMongoDB
	}
	opTimeout := opts.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		users:     db.Collection(usersCollection),
		tasks:     db.Collection(tasksCollection),
		opTimeout: opTimeout,
	}

	idxCtx, cancelIdx := context.WithTimeout(ctx, opTimeout)
	defer cancelIdx()
	_, err = s.users.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: mongo email index: %w", err)
	}

	return s, nil
}

func (s *MongoStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	u.Normalize()
	return &u, nil
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var t models.Task
	err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	return &t, nil
}

func (s *MongoStore) FindUsers(ctx context.Context, q query.Query) ([]models.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cur, err := s.users.Find(ctx, mongoFilter(q), mongoFindOptions(q))
	if err != nil {
		return nil, fmt.Errorf("store: find users: %w", err)
	}
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: find users: %w", err)
	}
	for i := range out {
		out[i].Normalize()
	}
	return out, nil
}

func (s *MongoStore) FindTasks(ctx context.Context, q query.Query) ([]models.Task, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cur, err := s.tasks.Find(ctx, mongoFilter(q), mongoFindOptions(q))
	if err != nil {
		return nil, fmt.Errorf("store: find tasks: %w", err)
	}
	var out []models.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: find tasks: %w", err)
	}
	return out, nil
}

func (s *MongoStore) CountUsers(ctx context.Context, q query.Query) (int64, error) {
	return s.count(ctx, s.users, q)
}

func (s *MongoStore) CountTasks(ctx context.Context, q query.Query) (int64, error) {
	return s.count(ctx, s.tasks, q)
}

func (s *MongoStore) count(ctx context.Context, col *mongo.Collection, q query.Query) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	opts := options.Count()
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	n, err := col.CountDocuments(ctx, mongoFilter(q), opts)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (s *MongoStore) InsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	u.Normalize()
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("store: insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertTask(ctx context.Context, t *models.Task) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	t.Normalize()
	if _, err := s.tasks.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

func (s *MongoStore) ReplaceUser(ctx context.Context, u *models.User) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	u.Normalize()
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("store: replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ReplaceTask(ctx context.Context, t *models.Task) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	t.Normalize()
	res, err := s.tasks.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return fmt.Errorf("store: replace task: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UnassignTasks(ctx context.Context, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.tasks.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": taskIDs}},
		bson.M{"$set": bson.M{
			"assignedUser":     models.Unassigned,
			"assignedUserName": models.UnassignedName,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("store: unassign tasks: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) AssignTasks(ctx context.Context, taskIDs []string, userID, userName string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.tasks.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": taskIDs}},
		bson.M{"$set": bson.M{
			"assignedUser":     userID,
			"assignedUserName": userName,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("store: assign tasks: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) PullTasksFromOtherUsers(ctx context.Context, taskIDs []string, exceptUserID string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.users.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": exceptUserID}},
		bson.M{"$pull": bson.M{"pendingTasks": bson.M{"$in": taskIDs}}},
	)
	if err != nil {
		return 0, fmt.Errorf("store: pull tasks from other users: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) PullTaskFromUser(ctx context.Context, userID, taskID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"pendingTasks": taskID}},
	)
	if err != nil {
		return fmt.Errorf("store: pull task from user: %w", err)
	}
	return nil
}

func (s *MongoStore) PushTaskToUser(ctx context.Context, userID, taskID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"pendingTasks": taskID}},
	)
	if err != nil {
		return fmt.Errorf("store: push task to user: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mongoFilter(q query.Query) bson.M {
	if len(q.Filter) == 0 {
		return bson.M{}
	}
	return bson.M(q.Filter)
}

func mongoFindOptions(q query.Query) *options.FindOptions {
	opts := options.Find()
	if len(q.Sort) > 0 {
		sort := bson.D{}
		for _, f := range q.Sort {
			dir := 1
			if f.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		opts.SetSort(sort)
	}
	if len(q.Select) > 0 {
		proj := bson.M{}
		for field, include := range q.Select {
			proj[field] = include
		}
		opts.SetProjection(proj)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}
