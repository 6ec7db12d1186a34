package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newOllamaTestServer(t *testing.T, requests *int64, respond func(w http.ResponseWriter, req ollamaRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(requests, 1)
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		respond(w, req)
	}))
}

func TestOllamaEmbed(t *testing.T) {
	var requests int64
	srv := newOllamaTestServer(t, &requests, func(w http.ResponseWriter, req ollamaRequest) {
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.25, -0.5, 1.0}})
	})
	defer srv.Close()

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	vector, err := emb.Embed(context.Background(), "react starter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float32{0.25, -0.5, 1.0}
	if len(vector) != len(want) {
		t.Fatalf("expected %d components, got %d", len(want), len(vector))
	}
	for i := range want {
		if vector[i] != want[i] {
			t.Errorf("component %d: expected %f, got %f", i, want[i], vector[i])
		}
	}
}

func TestOllamaEmbed_EmptyTextNoRequest(t *testing.T) {
	var requests int64
	srv := newOllamaTestServer(t, &requests, func(w http.ResponseWriter, req ollamaRequest) {
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{1}})
	})
	defer srv.Close()

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := emb.Embed(context.Background(), text); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("text %q: expected ErrInvalidInput, got %v", text, err)
		}
	}
	if n := atomic.LoadInt64(&requests); n != 0 {
		t.Errorf("expected no HTTP requests for invalid input, got %d", n)
	}
}

func TestOllamaEmbed_ServerErrorIsUnavailable(t *testing.T) {
	var requests int64
	srv := newOllamaTestServer(t, &requests, func(w http.ResponseWriter, req ollamaRequest) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})
	defer srv.Close()

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	if _, err := emb.Embed(context.Background(), "react starter"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaEmbed_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens on the URL anymore

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	if _, err := emb.Embed(context.Background(), "react starter"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaEmbed_EmptyEmbeddingIsUnavailable(t *testing.T) {
	var requests int64
	srv := newOllamaTestServer(t, &requests, func(w http.ResponseWriter, req ollamaRequest) {
		json.NewEncoder(w).Encode(ollamaResponse{})
	})
	defer srv.Close()

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	if _, err := emb.Embed(context.Background(), "react starter"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaEmbedBatch_PreservesOrder(t *testing.T) {
	var requests int64
	srv := newOllamaTestServer(t, &requests, func(w http.ResponseWriter, req ollamaRequest) {
		// Encode the prompt length so each text gets a distinguishable vector
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{float64(len(req.Prompt))}})
	})
	defer srv.Close()

	emb := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, BatchConcurrency: 2})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := emb.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, text := range texts {
		if vectors[i][0] != float32(len(text)) {
			t.Errorf("index %d: expected vector for %q, got %v", i, text, vectors[i])
		}
	}
	if n := atomic.LoadInt64(&requests); n != int64(len(texts)) {
		t.Errorf("expected %d requests, got %d", len(texts), n)
	}
}

func TestOllamaEmbedBatch_EmptyInput(t *testing.T) {
	emb := NewOllamaEmbedder(OllamaConfig{})

	vectors, err := emb.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected empty result, got %d", len(vectors))
	}
}

func TestOllamaDefaults(t *testing.T) {
	emb := NewOllamaEmbedder(OllamaConfig{})

	if emb.ModelName() != DefaultOllamaModel {
		t.Errorf("expected default model %q, got %q", DefaultOllamaModel, emb.ModelName())
	}
	if emb.Dimension() != 768 {
		t.Errorf("expected nomic-embed-text dimension 768, got %d", emb.Dimension())
	}
}
