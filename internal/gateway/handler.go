package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/httputil"
	"github.com/af-corp/foodguard-gateway/internal/task"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	svc    *task.Service
	engine task.Evaluator
	gen    task.Generator
	cfg    func() *config.Config
}

func NewHandler(svc *task.Service, engine task.Evaluator, gen task.Generator, cfg func() *config.Config) *Handler {
	return &Handler{svc: svc, engine: engine, gen: gen, cfg: cfg}
}

// CreateGeneration handles POST /v1/generations. The default path queues a
// task and returns 202; ?mode=sync runs the guard pipeline (and, when
// allowed, the provider call) inline.
func (h *Handler) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	req, ok := h.parseRequest(w, r, reqID)
	if !ok {
		return
	}

	if r.URL.Query().Get("mode") == "sync" {
		h.runSync(w, r, reqID, req)
		return
	}

	t, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		slog.Error("task submit failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to queue request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(renderTask(t))
}

// GetGeneration handles GET /v1/generations/{id}.
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "task id must be a UUID")
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, types.ErrTaskNotFound) {
			httputil.WriteNotFoundError(w, reqID, "no such task")
			return
		}
		slog.Error("task lookup failed", "request_id", reqID, "task_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(renderTask(t))
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, reqID string, req *types.GuardRequest) {
	started := time.Now()

	verdict, err := h.engine.Evaluate(r.Context(), req)
	if err != nil {
		slog.Error("pipeline failed", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Guard pipeline unavailable")
		return
	}

	if !verdict.Allowed() {
		httputil.WriteVerdictDenied(w, reqID, verdict.Reason)
		return
	}

	resp := syncResponse{
		Verdict: verdict,
	}
	if h.gen != nil {
		gen, err := h.gen.Generate(r.Context(), req)
		if err != nil {
			slog.Error("generation failed", "request_id", reqID, "error", err)
			httputil.WriteServiceUnavailableError(w, reqID, "Generation provider unavailable")
			return
		}
		resp.GeneratedText = gen.Text
		resp.GeneratedImage = gen.ImageB64
	}

	slog.Info("sync generation completed",
		"request_id", reqID,
		"kind", req.Kind,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// parseRequest accepts either a JSON body or multipart/form-data with an
// "image" file part. It reports false after writing the error response.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request, reqID string) (*types.GuardRequest, bool) {
	cfg := h.cfg()

	// Body cap with slack for base64 and multipart framing; the precise
	// byte limit is the pipeline's call.
	r.Body = http.MaxBytesReader(w, r.Body, cfg.Guard.MaxImageBytes*2+1<<20)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return h.parseMultipart(w, r, reqID)
	}
	return h.parseJSON(w, r, reqID)
}

func (h *Handler) parseJSON(w http.ResponseWriter, r *http.Request, reqID string) (*types.GuardRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WritePayloadTooLargeError(w, reqID, "request body too large")
			return nil, false
		}
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return nil, false
	}
	defer r.Body.Close()

	var wire struct {
		Kind         string `json:"kind"`
		Prompt       string `json:"prompt"`
		ImageB64     string `json:"image_b64"`
		DeclaredMIME string `json:"declared_mime"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return nil, false
	}

	req := &types.GuardRequest{
		RequestID:    reqID,
		Prompt:       wire.Prompt,
		DeclaredMIME: wire.DeclaredMIME,
		ReceivedAt:   time.Now(),
	}

	kind, ok := types.ParseRequestKind(wire.Kind)
	if !ok {
		httputil.WriteBadRequestError(w, reqID, `kind must be "text" or "image"`)
		return nil, false
	}
	req.Kind = kind

	if wire.ImageB64 != "" {
		data, err := base64.StdEncoding.DecodeString(wire.ImageB64)
		if err != nil {
			httputil.WriteBadRequestError(w, reqID, "image_b64 is not valid base64")
			return nil, false
		}
		req.ImageBytes = data
	}

	return h.validate(w, reqID, req)
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request, reqID string) (*types.GuardRequest, bool) {
	if err := r.ParseMultipartForm(h.cfg().Guard.MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WritePayloadTooLargeError(w, reqID, "request body too large")
			return nil, false
		}
		httputil.WriteBadRequestError(w, reqID, "Invalid multipart form: "+err.Error())
		return nil, false
	}

	req := &types.GuardRequest{
		RequestID:  reqID,
		Prompt:     r.FormValue("prompt"),
		ReceivedAt: time.Now(),
	}

	kind, ok := types.ParseRequestKind(r.FormValue("kind"))
	if !ok {
		httputil.WriteBadRequestError(w, reqID, `kind must be "text" or "image"`)
		return nil, false
	}
	req.Kind = kind

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			httputil.WriteBadRequestError(w, reqID, "Failed to read image part")
			return nil, false
		}
		req.ImageBytes = data
		req.DeclaredMIME = header.Header.Get("Content-Type")
	}

	return h.validate(w, reqID, req)
}

func (h *Handler) validate(w http.ResponseWriter, reqID string, req *types.GuardRequest) (*types.GuardRequest, bool) {
	switch req.Kind {
	case types.KindText:
		if strings.TrimSpace(req.Prompt) == "" {
			httputil.WriteBadRequestError(w, reqID, "prompt is required for text requests")
			return nil, false
		}
	case types.KindImage:
		if len(req.ImageBytes) == 0 {
			httputil.WriteBadRequestError(w, reqID, "image is required for image requests")
			return nil, false
		}
	}
	return req, true
}

type taskResponse struct {
	ID             string         `json:"id"`
	State          string         `json:"state"`
	Verdict        *types.Verdict `json:"verdict,omitempty"`
	ErrorKind      string         `json:"error_kind,omitempty"`
	GeneratedText  string         `json:"generated_text,omitempty"`
	GeneratedImage string         `json:"generated_image,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type syncResponse struct {
	Verdict        *types.Verdict `json:"verdict"`
	GeneratedText  string         `json:"generated_text,omitempty"`
	GeneratedImage string         `json:"generated_image,omitempty"`
}

func renderTask(t *types.Task) taskResponse {
	return taskResponse{
		ID:             t.ID.String(),
		State:          string(t.State),
		Verdict:        t.Verdict,
		ErrorKind:      string(t.ErrorKind),
		GeneratedText:  t.GeneratedText,
		GeneratedImage: t.GeneratedImage,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
