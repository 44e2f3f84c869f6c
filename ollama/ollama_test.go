package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zombar/tracker/models"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var req models.OllamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("expected streaming to be disabled")
		}
		if req.Prompt != "extract keywords" {
			t.Errorf("prompt = %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(models.OllamaResponse{
			Model:    req.Model,
			Response: "esp32 wifi embedded",
			Done:     true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "llama3.2")
	got, err := client.Generate(context.Background(), "extract keywords")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "esp32 wifi embedded" {
		t.Errorf("response = %q, want %q", got, "esp32 wifi embedded")
	}
}

func TestGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "nope")
	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestGenerateServerDown(t *testing.T) {
	// A closed server simulates Ollama not running, the common case the
	// caller must degrade gracefully from.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Error("expected error when server is unreachable")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("", "")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
	if client.model != DefaultModel {
		t.Errorf("model = %q, want %q", client.model, DefaultModel)
	}
}
