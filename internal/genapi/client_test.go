package genapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

func testClient(baseURL string) *Client {
	return NewClient(config.GenerationConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		Timeout: 2 * time.Second,
	})
}

func TestGenerate_TextAndImage(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "a plate of gyoza" {
			t.Errorf("prompt not forwarded: %+v", req.Contents)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"text": "here you go"},
						{"inline_data": map[string]string{"mime_type": "image/png", "data": "cGl4ZWxz"}},
					},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	gen, err := c.Generate(context.Background(), &types.GuardRequest{
		Kind:   types.KindText,
		Prompt: "a plate of gyoza",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gen.Text != "here you go" {
		t.Errorf("text = %q", gen.Text)
	}
	if gen.ImageB64 != "cGl4ZWxz" {
		t.Errorf("image = %q", gen.ImageB64)
	}
}

func TestGenerate_ForwardsUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[1].InlineData == nil {
			t.Errorf("upload not forwarded as inline data: %+v", parts)
		} else if parts[1].InlineData.MIMEType != "image/jpeg" {
			t.Errorf("mime = %q", parts[1].InlineData.MIMEType)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{{"text": "ok"}}},
			}},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Generate(context.Background(), &types.GuardRequest{
		Kind:         types.KindImage,
		Prompt:       "make this fancier",
		ImageBytes:   []byte{0xff, 0xd8, 0xff},
		DeclaredMIME: "image/jpeg",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_ServerErrorIsModelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Generate(context.Background(), &types.GuardRequest{Kind: types.KindText, Prompt: "soup"})
	if !errors.Is(err, types.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestGenerate_CircuitOpensAfterFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	req := &types.GuardRequest{Kind: types.KindText, Prompt: "soup"}

	for i := 0; i < circuitFailureThreshold; i++ {
		if _, err := c.Generate(context.Background(), req); err == nil {
			t.Fatal("expected failure")
		}
	}
	if c.Circuit().State() != StateOpen {
		t.Fatalf("circuit state = %s, want open", c.Circuit().State())
	}

	before := hits
	_, err := c.Generate(context.Background(), req)
	if !errors.Is(err, types.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable from open circuit, got %v", err)
	}
	if hits != before {
		t.Error("open circuit must not reach the provider")
	}
}

func TestCircuitBreaker_ProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 10*time.Millisecond)
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", cb.State())
	}
	if !cb.Allow() {
		t.Error("half-open circuit must allow a probe")
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed after successful probe", cb.State())
	}
}
