package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/task"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

type fakeEvaluator struct {
	verdict *types.Verdict
	err     error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *types.GuardRequest) (*types.Verdict, error) {
	return f.verdict, f.err
}

type fakeGenerator struct {
	gen   *task.Generation
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ *types.GuardRequest) (*task.Generation, error) {
	f.calls++
	return f.gen, f.err
}

func newTestRouter(eval task.Evaluator, gen task.Generator) *chi.Mux {
	store := task.NewMemStore()
	queue := task.NewMemQueue(16)
	svc := task.NewService(store, queue, nil)

	cfg := config.DefaultConfig()
	h := NewHandler(svc, eval, gen, func() *config.Config { return cfg })

	r := chi.NewRouter()
	r.Post("/v1/generations", h.CreateGeneration)
	r.Get("/v1/generations/{id}", h.GetGeneration)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req_test")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateGeneration_Async(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	w := postJSON(t, r, "/v1/generations", map[string]string{
		"kind":   "text",
		"prompt": "a stack of blueberry pancakes",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "queued" {
		t.Errorf("state = %q, want queued", resp.State)
	}

	// The task must be durable and pollable immediately.
	req := httptest.NewRequest(http.MethodGet, "/v1/generations/"+resp.ID, nil)
	get := httptest.NewRecorder()
	r.ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Fatalf("poll status = %d: %s", get.Code, get.Body.String())
	}
}

func TestCreateGeneration_SyncAllow(t *testing.T) {
	gen := &fakeGenerator{gen: &task.Generation{ImageB64: "cGl4"}}
	r := newTestRouter(&fakeEvaluator{
		verdict: &types.Verdict{Decision: types.DecisionAllow, Reason: "keyword_match:pancakes"},
	}, gen)

	w := postJSON(t, r, "/v1/generations?mode=sync", map[string]string{
		"kind":   "text",
		"prompt": "a stack of blueberry pancakes",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Verdict == nil || !resp.Verdict.Allowed() {
		t.Errorf("verdict = %+v", resp.Verdict)
	}
	if resp.GeneratedImage != "cGl4" {
		t.Errorf("generated image = %q", resp.GeneratedImage)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestCreateGeneration_SyncDenied(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(&fakeEvaluator{
		verdict: &types.Verdict{Decision: types.DecisionDeny, Reason: "keyword_match:nude"},
	}, gen)

	w := postJSON(t, r, "/v1/generations?mode=sync", map[string]string{
		"kind":   "text",
		"prompt": "something blocked",
	})

	if w.Code != 451 {
		t.Fatalf("status = %d, want 451: %s", w.Code, w.Body.String())
	}
	if gen.calls != 0 {
		t.Error("generator must not run for a denied request")
	}
}

func TestCreateGeneration_SyncLimitDenial(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{
		verdict: &types.Verdict{Decision: types.DecisionDeny, Reason: "PayloadTooLarge"},
	}, nil)

	w := postJSON(t, r, "/v1/generations?mode=sync", map[string]string{
		"kind":   "text",
		"prompt": "pretend this is huge",
	})

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", w.Code, w.Body.String())
	}
}

func TestCreateGeneration_SyncPipelineDown(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{err: types.ErrModelUnavailable}, nil)

	w := postJSON(t, r, "/v1/generations?mode=sync", map[string]string{
		"kind":   "text",
		"prompt": "anything",
	})

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", w.Code, w.Body.String())
	}
}

func TestCreateGeneration_BadKind(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	w := postJSON(t, r, "/v1/generations", map[string]string{
		"kind":   "video",
		"prompt": "nope",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateGeneration_MissingPrompt(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	w := postJSON(t, r, "/v1/generations", map[string]string{"kind": "text"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateGeneration_Multipart(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("kind", "image")
	mw.WriteField("prompt", "my lunch")
	fw, err := mw.CreateFormFile("image", "lunch.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
}

func TestGetGeneration_NotFound(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/5b8f1c9e-0000-4000-8000-000000000000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetGeneration_BadID(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateGeneration_InvalidJSON(t *testing.T) {
	r := newTestRouter(&fakeEvaluator{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
