package vectorstore

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Filters
		wantErr bool
	}{
		{
			name: "all recognized keys",
			raw: map[string]any{
				"tags":     []any{"react", "vite"},
				"language": "typescript",
				"category": "frontend",
			},
			want: Filters{
				Tags:     []string{"react", "vite"},
				Language: "typescript",
				Category: "frontend",
			},
		},
		{
			name: "native string slice tags",
			raw:  map[string]any{"tags": []string{"go"}},
			want: Filters{Tags: []string{"go"}},
		},
		{
			name: "empty map",
			raw:  map[string]any{},
			want: Filters{},
		},
		{
			name:    "unrecognized key",
			raw:     map[string]any{"langauge": "go"},
			wantErr: true,
		},
		{
			name:    "tags not a list",
			raw:     map[string]any{"tags": "react"},
			wantErr: true,
		},
		{
			name:    "tag element not a string",
			raw:     map[string]any{"tags": []any{"react", 42}},
			wantErr: true,
		},
		{
			name:    "language not a string",
			raw:     map[string]any{"language": 7},
			wantErr: true,
		},
		{
			name:    "category not a string",
			raw:     map[string]any{"category": true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilters(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFilter) {
					t.Fatalf("expected ErrInvalidFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestFiltersNormalized(t *testing.T) {
	f := Filters{
		Tags:     []string{" Vite", "react", "REACT", "", "vite "},
		Language: " TypeScript ",
		Category: "Frontend",
	}

	got := f.Normalized()

	wantTags := []string{"react", "vite"}
	if !reflect.DeepEqual(got.Tags, wantTags) {
		t.Errorf("expected tags %v, got %v", wantTags, got.Tags)
	}
	if got.Language != "typescript" {
		t.Errorf("expected language %q, got %q", "typescript", got.Language)
	}
	if got.Category != "frontend" {
		t.Errorf("expected category %q, got %q", "frontend", got.Category)
	}

	// The receiver is untouched
	if f.Tags[0] != " Vite" || f.Language != " TypeScript " {
		t.Error("Normalized must not mutate the receiver")
	}
}

func TestFiltersIsZero(t *testing.T) {
	tests := []struct {
		name string
		f    Filters
		want bool
	}{
		{"zero value", Filters{}, true},
		{"tags set", Filters{Tags: []string{"go"}}, false},
		{"language set", Filters{Language: "go"}, false},
		{"category set", Filters{Category: "backend"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}
