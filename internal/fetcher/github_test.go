package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListTemplates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/getstacklabs/templates/contents/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name": "react-vite-starter", "path": "react-vite-starter", "type": "dir", "html_url": "https://github.com/getstacklabs/templates/tree/main/react-vite-starter"},
			{"name": "README.md", "path": "README.md", "type": "file", "html_url": "https://github.com/getstacklabs/templates/blob/main/README.md"},
			{"name": "go-chi-api", "path": "go-chi-api", "type": "dir", "html_url": "https://github.com/getstacklabs/templates/tree/main/go-chi-api"},
			{"name": ".github", "path": ".github", "type": "dir", "html_url": "https://github.com/getstacklabs/templates/tree/main/.github"}
		]`))
	}))
	defer srv.Close()

	f := New("getstacklabs", "templates", srv.Client())
	f.apiBase = srv.URL

	entries, err := f.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"react-vite-starter", "go-chi-api"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d template directories, got %d: %+v", len(want), len(entries), entries)
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("entry %d: expected %q, got %q", i, name, entries[i].Name)
		}
	}
}

func TestListTemplates_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "API rate limit exceeded"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	f := New("getstacklabs", "templates", srv.Client())
	f.apiBase = srv.URL

	if _, err := f.ListTemplates(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestTemplateExists_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	f := New("getstacklabs", "templates", srv.Client())
	f.apiBase = srv.URL

	err := f.templateExists(context.Background(), "no-such-template")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestCopyTemplate_ValidatesArguments(t *testing.T) {
	f := New("getstacklabs", "templates", nil)

	if _, err := f.CopyTemplate(context.Background(), "", t.TempDir()); err == nil {
		t.Error("expected error for empty template name")
	}
	if _, err := f.CopyTemplate(context.Background(), "react-vite-starter", ""); err == nil {
		t.Error("expected error for empty target folder")
	}
}

func TestCopyTemplate_MissingTemplateSkipsClone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	f := New("getstacklabs", "templates", srv.Client())
	f.apiBase = srv.URL

	_, err := f.CopyTemplate(context.Background(), "no-such-template", t.TempDir())
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound before cloning, got %v", err)
	}
}
