package taskify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"taskify/internal/blob"
	"taskify/internal/config"
	"taskify/internal/export"
	"taskify/internal/models"
	"taskify/internal/reconcile"
	"taskify/internal/server"
	"taskify/internal/services"
	"taskify/internal/store"
	"taskify/internal/validation"
	"taskify/internal/worker"
)

func TestApplicationStartup(t *testing.T) {
	os.Setenv("ENVIRONMENT", "development")
	os.Setenv("STORAGE_DRIVER", "memory")
	os.Setenv("REDIS_HOST", "localhost")
	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("STORAGE_DRIVER")
		os.Unsetenv("REDIS_HOST")
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg == nil {
		t.Fatal("Configuration should not be nil")
	}

	if cfg.Storage.Driver != "memory" {
		t.Errorf("Expected memory storage driver, got %s", cfg.Storage.Driver)
	}

	if cfg.GetRedisAddr() != "localhost:6379" {
		t.Errorf("Expected redis addr localhost:6379, got %s", cfg.GetRedisAddr())
	}
}

func newStack(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	v := validation.New(st)
	applier := reconcile.NewApplier(st, nil)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: "8080", Environment: "test"},
	}
	router := server.NewRouter(server.Options{
		Config: cfg,
		Users:  services.NewUserService(st, v, applier),
		Tasks:  services.NewTaskService(st, v, applier),
	})
	return router, st
}

func request(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestTaskLifecycleEndToEnd(t *testing.T) {
	router, st := newStack(t)

	w := request(router, http.MethodPost, "/api/users", map[string]any{
		"name": "Alice", "email": "alice@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating alice, got %d: %s", w.Code, w.Body.String())
	}
	aliceID := decode(t, w)["_id"].(string)

	w = request(router, http.MethodPost, "/api/users", map[string]any{
		"name": "Bob", "email": "bob@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating bob, got %d", w.Code)
	}
	bobID := decode(t, w)["_id"].(string)

	w = request(router, http.MethodPost, "/api/tasks", map[string]any{
		"name":             "write report",
		"deadline":         "2026-09-01",
		"assignedUserName": "Alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating task, got %d: %s", w.Code, w.Body.String())
	}
	task := decode(t, w)
	taskID := task["_id"].(string)
	if task["assignedUser"] != aliceID {
		t.Errorf("Expected task assigned to alice by name, got %v", task["assignedUser"])
	}

	w = request(router, http.MethodPut, "/api/tasks/"+taskID, map[string]any{
		"name":         "write report",
		"deadline":     "2026-09-01",
		"assignedUser": bobID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 reassigning task, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["assignedUserName"]; got != "Bob" {
		t.Errorf("Expected assignee name refreshed to Bob, got %v", got)
	}

	alice := decode(t, request(router, http.MethodGet, "/api/users/"+aliceID, nil))
	if pending := alice["pendingTasks"].([]any); len(pending) != 0 {
		t.Errorf("Expected alice to drop the task after reassignment, got %v", pending)
	}
	bob := decode(t, request(router, http.MethodGet, "/api/users/"+bobID, nil))
	if pending := bob["pendingTasks"].([]any); len(pending) != 1 || pending[0] != taskID {
		t.Errorf("Expected bob to list the task, got %v", pending)
	}

	w = request(router, http.MethodPost, "/api/tasks", map[string]any{
		"name":         "already done",
		"deadline":     "2026-09-01",
		"completed":    true,
		"assignedUser": bobID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating completed task, got %d", w.Code)
	}
	bob = decode(t, request(router, http.MethodGet, "/api/users/"+bobID, nil))
	if pending := bob["pendingTasks"].([]any); len(pending) != 1 {
		t.Errorf("Expected completed task to stay unlisted, got %v", pending)
	}

	where := url.QueryEscape(`{"completed":false}`)
	w = request(router, http.MethodGet, "/api/tasks?where="+where, nil)
	var open []models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &open); err != nil {
		t.Fatalf("Failed to decode task list: %v", err)
	}
	if len(open) != 1 || open[0].ID != taskID {
		t.Errorf("Expected exactly the open task, got %v", open)
	}

	count := decode(t, request(router, http.MethodGet, "/api/tasks?count=true", nil))
	if count["count"] != float64(2) {
		t.Errorf("Expected count 2, got %v", count["count"])
	}

	if w := request(router, http.MethodDelete, "/api/users/"+bobID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 deleting bob, got %d", w.Code)
	}
	task = decode(t, request(router, http.MethodGet, "/api/tasks/"+taskID, nil))
	if task["assignedUser"] != models.Unassigned || task["assignedUserName"] != models.UnassignedName {
		t.Errorf("Expected task unassigned after owner deletion, got %v/%v",
			task["assignedUser"], task["assignedUserName"])
	}

	violations, err := export.NewExporter(st, nil).Verify(context.Background())
	if err != nil {
		t.Fatalf("Failed to verify dataset: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("Expected a consistent dataset after the lifecycle, got %v", violations)
	}

	if w := request(router, http.MethodDelete, "/api/tasks/"+taskID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 deleting task, got %d", w.Code)
	}
	if w := request(router, http.MethodGet, "/api/tasks/"+taskID, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after task deletion, got %d", w.Code)
	}
}

func TestSnapshotExportJob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	st := store.NewMemory()
	user := &models.User{
		ID: "u1", Name: "Alice", Email: "alice@example.com",
		PendingTasks: []string{}, DateCreated: time.Now(),
	}
	if err := st.InsertUser(ctx, user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	blobs := blob.NewMemory()
	exporter := export.NewExporter(st, blobs)

	w := worker.NewWorker(worker.WorkerConfig{RedisClient: client})
	w.RegisterHandler(worker.JobTypeSnapshotExport, func(ctx context.Context, job *worker.Job) error {
		_, err := exporter.Export(ctx)
		return err
	})

	q := worker.NewJobQueue(client)
	if err := q.Enqueue(worker.DefaultQueue, worker.JobTypeSnapshotExport, nil); err != nil {
		t.Fatalf("Failed to enqueue export job: %v", err)
	}

	w.Start(1)
	defer w.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := blobs.List(ctx, "exports/")
		if err != nil {
			t.Fatalf("Failed to list blobs: %v", err)
		}
		if len(stored) == 1 {
			rc, err := blobs.Get(ctx, stored[0].Key)
			if err != nil {
				t.Fatalf("Failed to read snapshot: %v", err)
			}
			defer rc.Close()
			var snap export.Snapshot
			if err := json.NewDecoder(rc).Decode(&snap); err != nil {
				t.Fatalf("Failed to decode snapshot: %v", err)
			}
			if len(snap.Users) != 1 {
				t.Errorf("Expected 1 user in snapshot, got %d", len(snap.Users))
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for the export job to write a snapshot")
}
