package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"prompt-studio/app/auth"
	"prompt-studio/app/config"
	"prompt-studio/app/handler"
	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"
	"prompt-studio/app/middleware"
	"prompt-studio/app/model"
	"prompt-studio/app/service"
	"prompt-studio/app/testsupport"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type countingQueue struct {
	mu   sync.Mutex
	n    int
	fail bool
}

func (q *countingQueue) Enqueue(context.Context, uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return errors.New("queue unavailable")
	}
	q.n++
	return nil
}

func (q *countingQueue) Close() error { return nil }

type fixture struct {
	db     *gorm.DB
	router *gin.Engine
	token  string
	userID uint
	queue  *countingQueue
}

const workerToken = "worker-secret"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testsupport.OpenDB(t)
	log := logger.NewNop()
	user := testsupport.CreateUser(t, db, "alice")
	jwtService := auth.NewJWTService(config.JWTConfig{Secret: "test", ExpireTime: 1, Issuer: "prompt-studio"})
	token, err := jwtService.GenerateToken(user.ID, user.Username, false)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	queue := &countingQueue{}
	tasks := service.NewPromptTaskService(db, service.StaticSettings(testsupport.GenerationSettings()), log)
	taskHandler := handler.NewPromptTaskHandler(tasks, service.NewSubmissionService(db, queue, log), log)
	workerHandler := handler.NewWorkerHandler(db, tasks, queue, log)

	r := gin.New()
	api := r.Group("/api", middleware.JWTAuth(jwtService))
	api.POST("/tasks", taskHandler.Create)
	api.GET("/tasks", taskHandler.List)
	api.GET("/tasks/:id", taskHandler.Get)
	api.PUT("/tasks/:id", taskHandler.Update)
	api.DELETE("/tasks/:id", taskHandler.Delete)
	api.POST("/tasks/:id/submit", taskHandler.Submit)

	metaPrompts := handler.NewMetaPromptHandler(db)
	api.POST("/meta-prompts", metaPrompts.Create)
	api.PUT("/meta-prompts/:id", metaPrompts.Update)
	api.DELETE("/meta-prompts/:id", metaPrompts.Delete)

	worker := r.Group("/worker", middleware.WorkerToken(workerToken))
	worker.GET("/tasks/:id", workerHandler.GetTask)
	worker.POST("/tasks/:id/status", workerHandler.UpdateStatus)
	worker.POST("/jobs/claim", workerHandler.ClaimJob)

	return &fixture{db: db, router: r, token: token, userID: user.ID, queue: queue}
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, handler.ApiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp handler.ApiResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func validBody() map[string]any {
	return map[string]any{
		"prompt":        "a lighthouse at dusk",
		"sd_model_name": "sd_xl_base_1.0.safetensors",
		"sampler_name":  "Euler a",
		"width":         512,
		"height":        768,
		"seed":          42,
		"steps":         20,
		"cfg_scale":     7.5,
		"clip_skip":     2,
	}
}

func (f *fixture) createTask(t *testing.T) uint {
	t.Helper()
	w, resp := f.do(t, http.MethodPost, "/api/tasks", f.token, validBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	data := resp.Data.(map[string]any)
	return uint(data["id"].(float64))
}

func TestRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	if w, _ := f.do(t, http.MethodGet, "/api/tasks", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodGet, "/worker/tasks/1", f.token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("user token must not pass worker auth, got %d", w.Code)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t)

	w, resp := f.do(t, http.MethodGet, "/api/tasks/"+itoa(id), f.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "pending" || data["unique_track_id"] != nil {
		t.Fatalf("unexpected task %v", data)
	}

	if w, _ := f.do(t, http.MethodGet, "/api/tasks/9999", f.token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateReportsFieldErrors(t *testing.T) {
	f := newFixture(t)
	body := validBody()
	body["steps"] = 20.5
	body["width"] = 4096
	body["sampler_name"] = "PLMS"
	delete(body, "seed")

	w, resp := f.do(t, http.MethodPost, "/api/tasks", f.token, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	got := map[string]string{}
	for _, item := range resp.Data.([]any) {
		fe := item.(map[string]any)
		got[fe["field"].(string)] = fe["message"].(string)
	}
	want := map[string]string{
		"steps":        "must be an integer",
		"width":        "must be less than or equal to 2048",
		"sampler_name": "PLMS isn't supported anymore.",
		"seed":         "can't be blank",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Fatalf("%s: expected %q, got %q (all: %v)", field, msg, got[field], got)
		}
	}

	var count int64
	f.db.Model(&model.PromptTask{}).Count(&count)
	if count != 0 {
		t.Fatal("invalid task must not be stored")
	}
}

func TestSubmitOnlyOnce(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t)

	w, resp := f.do(t, http.MethodPost, "/api/tasks/"+itoa(id)+"/submit", f.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d, body %s", w.Code, w.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "submitting" || !service.IsTrackID(data["unique_track_id"].(string)) {
		t.Fatalf("unexpected task after submit %v", data)
	}

	if w, _ := f.do(t, http.MethodPost, "/api/tasks/"+itoa(id)+"/submit", f.token, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPut, "/api/tasks/"+itoa(id), f.token, validBody()); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when editing a submitted task, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodDelete, "/api/tasks/"+itoa(id), f.token, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when deleting an in-flight task, got %d", w.Code)
	}
	if f.queue.n != 1 {
		t.Fatalf("expected one enqueue, got %d", f.queue.n)
	}
}

func TestSubmitEnqueueFailureIsServerError(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t)
	f.queue.fail = true

	if w, _ := f.do(t, http.MethodPost, "/api/tasks/"+itoa(id)+"/submit", f.token, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var task model.PromptTask
	f.db.First(&task, id)
	if task.Status != model.TaskStatusSubmitting {
		t.Fatalf("expected task to stay submitting, got %s", task.Status)
	}
}

func TestUpdatePendingTask(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t)

	body := validBody()
	body["steps"] = 30
	body["hires_fix"] = true
	w, resp := f.do(t, http.MethodPut, "/api/tasks/"+itoa(id), f.token, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing hires fields, got %d", w.Code)
	}
	if len(resp.Data.([]any)) != 4 {
		t.Fatalf("expected four hires errors, got %v", resp.Data)
	}

	body["hires_fix_upscaler_name"] = "Latent"
	body["hires_fix_upscale"] = 2
	body["hires_fix_steps"] = 10
	body["hires_fix_denoising"] = 0.4
	w, resp = f.do(t, http.MethodPut, "/api/tasks/"+itoa(id), f.token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", w.Code, w.Body.String())
	}
	if data := resp.Data.(map[string]any); data["steps"].(float64) != 30 || data["hires_fix"] != true {
		t.Fatalf("update not applied: %v", data)
	}
}

func TestHiresStepsIgnoredWhenHiresDisabled(t *testing.T) {
	f := newFixture(t)

	body := validBody()
	body["hires_fix"] = false
	body["hires_fix_steps"] = 1.5
	w, resp := f.do(t, http.MethodPost, "/api/tasks", f.token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	first := resp.Data.(map[string]any)
	if first["hires_fix_steps"] != nil {
		t.Fatalf("fractional hires_fix_steps must not be stored, got %v", first["hires_fix_steps"])
	}

	body["hires_fix_steps"] = 12
	w, resp = f.do(t, http.MethodPost, "/api/tasks", f.token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["hires_fix_steps"] != float64(12) {
		t.Fatalf("whole hires_fix_steps should be kept, got %v", data["hires_fix_steps"])
	}

	var task model.PromptTask
	f.db.First(&task, uint(first["id"].(float64)))
	if task.HiresFixSteps != nil {
		t.Fatalf("stored hires_fix_steps = %d, want nil", *task.HiresFixSteps)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	f.createTask(t)
	id := f.createTask(t)
	f.do(t, http.MethodPost, "/api/tasks/"+itoa(id)+"/submit", f.token, nil)

	w, resp := f.do(t, http.MethodGet, "/api/tasks?status=submitting", f.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	page := resp.Data.(map[string]any)
	if page["total"].(float64) != 1 {
		t.Fatalf("expected one submitting task, got %v", page)
	}

	if w, _ := f.do(t, http.MethodGet, "/api/tasks?status=drafting", f.token, nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d", w.Code)
	}
}

func TestWorkerCallbackFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t)
	f.do(t, http.MethodPost, "/api/tasks/"+itoa(id)+"/submit", f.token, nil)

	w, resp := f.do(t, http.MethodGet, "/worker/tasks/"+itoa(id), workerToken, nil)
	if w.Code != http.StatusOK || resp.Data.(map[string]any)["prompt"] != "a lighthouse at dusk" {
		t.Fatalf("worker get: status %d, body %s", w.Code, w.Body.String())
	}

	if w, _ := f.do(t, http.MethodPost, "/worker/tasks/"+itoa(id)+"/status", workerToken, map[string]any{"status": "pending"}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for reserved status, got %d", w.Code)
	}

	w, resp = f.do(t, http.MethodPost, "/worker/tasks/"+itoa(id)+"/status", workerToken, map[string]any{"status": "processed", "result": "success"})
	if w.Code != http.StatusOK {
		t.Fatalf("worker update: status %d, body %s", w.Code, w.Body.String())
	}
	if data := resp.Data.(map[string]any); data["status"] != "processed" || data["result"] != "success" {
		t.Fatalf("unexpected task %v", data)
	}

	// 非数据库队列不支持领取
	if w, _ := f.do(t, http.MethodPost, "/worker/jobs/claim", workerToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-database queue, got %d", w.Code)
	}
}

func TestClaimFromDatabaseQueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testsupport.OpenDB(t)
	log := logger.NewNop()
	q := jobqueue.NewDatabaseQueue(db, log)
	tasks := service.NewPromptTaskService(db, service.StaticSettings(testsupport.GenerationSettings()), log)
	h := handler.NewWorkerHandler(db, tasks, q, log)

	r := gin.New()
	r.POST("/claim", h.ClaimJob)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/claim", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on empty queue, got %d", w.Code)
	}

	if err := q.Enqueue(context.Background(), 5); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/claim", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data model.GenerationJob `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.PromptTaskID != 5 || resp.Data.Status != model.JobStatusDelivered {
		t.Fatalf("unexpected job %+v", resp.Data)
	}
}

func TestMetaPromptInUseCannotBeDeleted(t *testing.T) {
	f := newFixture(t)

	if w, _ := f.do(t, http.MethodPost, "/api/meta-prompts", f.token, map[string]string{"name": " "}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank name, got %d", w.Code)
	}
	w, resp := f.do(t, http.MethodPost, "/api/meta-prompts", f.token, map[string]string{"name": "portrait", "body": "soft light"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create meta prompt: %d", w.Code)
	}
	mpID := uint(resp.Data.(map[string]any)["id"].(float64))

	body := validBody()
	body["meta_prompt_id"] = mpID
	if w, _ := f.do(t, http.MethodPost, "/api/tasks", f.token, body); w.Code != http.StatusCreated {
		t.Fatalf("create task with meta prompt: %d", w.Code)
	}

	if w, _ := f.do(t, http.MethodDelete, "/api/meta-prompts/"+itoa(mpID), f.token, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while referenced, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPut, "/api/meta-prompts/"+itoa(mpID), f.token, map[string]string{"name": "portrait v2"}); w.Code != http.StatusOK {
		t.Fatalf("update meta prompt: %d", w.Code)
	}
}
