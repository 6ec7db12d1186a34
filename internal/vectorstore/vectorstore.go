// Package vectorstore provides interfaces and implementations for vector
// similarity search over template embeddings.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors.
var (
	// ErrUnavailable indicates the backing store could not be reached or the
	// query failed. It is never retried inside this package; retry policy
	// belongs to the caller.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrInvalidFilter indicates a malformed or unrecognized filter.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrDimensionMismatch indicates the query vector dimensionality does not
	// match the collection. This is a configuration error, not a per-query one.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Candidate represents a search hit from the vector index: a template
// reference with its raw similarity score and a snapshot of the stored
// metadata payload.
type Candidate struct {
	TemplateID string
	Name       string
	Score      float32
	Tags       []string
	Language   string
	Category   string
	UpdatedAt  string // RFC 3339, as stored in the payload
}

// Filters narrows a search by template metadata. Tags use AND semantics;
// Language and Category are exact matches when non-empty.
type Filters struct {
	Tags     []string
	Language string
	Category string
}

// filterKeys are the recognized keys for ParseFilters.
var filterKeys = map[string]bool{
	"tags":     true,
	"language": true,
	"category": true,
}

// ParseFilters builds Filters from a loosely-typed key/value map, as received
// from protocol layers. Unrecognized keys are rejected with ErrInvalidFilter.
func ParseFilters(raw map[string]any) (Filters, error) {
	var f Filters
	for key, value := range raw {
		if !filterKeys[key] {
			return Filters{}, fmt.Errorf("%w: unrecognized key %q", ErrInvalidFilter, key)
		}
		switch key {
		case "tags":
			tags, err := toStringSlice(value)
			if err != nil {
				return Filters{}, fmt.Errorf("%w: tags: %v", ErrInvalidFilter, err)
			}
			f.Tags = tags
		case "language":
			s, ok := value.(string)
			if !ok {
				return Filters{}, fmt.Errorf("%w: language must be a string", ErrInvalidFilter)
			}
			f.Language = s
		case "category":
			s, ok := value.(string)
			if !ok {
				return Filters{}, fmt.Errorf("%w: category must be a string", ErrInvalidFilter)
			}
			f.Category = s
		}
	}
	return f, nil
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings")
}

// Normalized returns a copy with tags lower-cased, deduplicated and sorted,
// and language/category lower-cased. Used for cache keys and filter
// push-down so equivalent filter sets compare equal.
func (f Filters) Normalized() Filters {
	out := Filters{
		Language: strings.ToLower(strings.TrimSpace(f.Language)),
		Category: strings.ToLower(strings.TrimSpace(f.Category)),
	}
	if len(f.Tags) > 0 {
		seen := make(map[string]bool, len(f.Tags))
		for _, tag := range f.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" && !seen[tag] {
				seen[tag] = true
				out.Tags = append(out.Tags, tag)
			}
		}
		sort.Strings(out.Tags)
	}
	return out
}

// IsZero reports whether no filter predicate is set.
func (f Filters) IsZero() bool {
	return len(f.Tags) == 0 && f.Language == "" && f.Category == ""
}

// TemplatePoint is a template embedding with its payload, as written by the
// sync pipeline.
type TemplatePoint struct {
	TemplateID string
	Name       string
	Vector     []float32
	Tags       []string
	Language   string
	Category   string
	UpdatedAt  string
}

// VectorIndex defines the interface for vector index operations. Any backend
// satisfying Search is interchangeable from the retrieval service's point of
// view.
type VectorIndex interface {
	// Search returns up to k candidates nearest to vector, most similar
	// first, with no duplicate template identifiers. The store may return
	// fewer than k.
	Search(ctx context.Context, vector []float32, k int, filters Filters) ([]Candidate, error)

	// Upsert inserts or replaces template points.
	Upsert(ctx context.Context, points []TemplatePoint) error

	// EnsureCollection creates the collection if missing and verifies its
	// dimensionality matches the embedder's.
	EnsureCollection(ctx context.Context, dimension int) error
}
