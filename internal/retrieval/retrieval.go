// Package retrieval orchestrates query embedding, vector search, ranking and
// result caching behind a single Search operation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getstacklabs/stackhub/internal/cache"
	"github.com/getstacklabs/stackhub/internal/embedder"
	"github.com/getstacklabs/stackhub/internal/ranker"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// Common errors.
var (
	// ErrInvalidInput indicates bad caller input. Never retried, surfaced
	// immediately before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is the final escalation after the local retry budget is
	// exhausted. Callers receive it as a hard failure; there is no silent
	// fallback to empty or stale results.
	ErrUnavailable = errors.New("retrieval unavailable")
)

const (
	// minFetch is the smallest candidate request issued to the index,
	// giving the ranker room to deduplicate without starving the final count.
	minFetch = 20

	// fetchMultiplier scales the caller's k into the index request size.
	fetchMultiplier = 3

	// DefaultCacheTTL bounds how long a ranked result list is served without
	// re-embedding and re-searching.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultTimeout bounds each embedder and index network call.
	DefaultTimeout = 5 * time.Second
)

// Service orchestrates the retrieval pipeline. Concurrent Search calls are
// independent; the result cache is the only shared mutable state.
type Service struct {
	embedder embedder.Embedder
	index    vectorstore.VectorIndex
	ranker   *ranker.Ranker
	results  *cache.ResultCache

	cacheTTL time.Duration
	timeout  time.Duration
	retry    RetryPolicy
	logger   *slog.Logger
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithCacheTTL sets how long ranked results are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithTimeout sets the per-call network timeout for collaborators.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithRetryPolicy sets the bounded retry policy for transient collaborator
// failures.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Service) {
		s.retry = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a retrieval Service.
func NewService(emb embedder.Embedder, index vectorstore.VectorIndex, rank *ranker.Ranker, results *cache.ResultCache, opts ...Option) *Service {
	s := &Service{
		embedder: emb,
		index:    index,
		ranker:   rank,
		results:  results,
		cacheTTL: DefaultCacheTTL,
		timeout:  DefaultTimeout,
		retry:    DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search turns a natural-language query into an ordered template result list.
//
// The cache is consulted before the embedder is invoked; a hit returns
// without any collaborator call. On a miss the query is embedded, the index
// is asked for more candidates than requested so deduplication cannot starve
// the final count, and the ranked list is written through to the cache.
//
// An empty result list is a successful outcome, distinct from the error
// returns: ErrInvalidInput for bad input, vectorstore.ErrInvalidFilter for
// malformed filters, ErrUnavailable once the retry budget is exhausted.
func (s *Service) Search(ctx context.Context, query string, filters vectorstore.Filters, k int) ([]ranker.RankedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}

	key := cache.NewKey(query, filters, k)
	if cached, ok := s.results.Get(key); ok {
		s.logger.Debug("cache hit", "query", query, "results", len(cached))
		return cached, nil
	}

	start := time.Now()

	vector, err := withRetry(ctx, s.retry, isTransient, func(ctx context.Context) ([]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.embedder.Embed(callCtx, query)
	})
	if err != nil {
		return nil, classify(err, "failed to embed query")
	}

	fetchK := k * fetchMultiplier
	if fetchK < minFetch {
		fetchK = minFetch
	}

	candidates, err := withRetry(ctx, s.retry, isTransient, func(ctx context.Context) ([]vectorstore.Candidate, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.index.Search(callCtx, vector, fetchK, filters)
	})
	if err != nil {
		return nil, classify(err, "failed to search index")
	}

	results := s.ranker.Rank(candidates, filters, k)

	// A cancelled call must not populate the cache.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.results.Put(key, results, s.cacheTTL)

	s.logger.Debug("search completed",
		"query", query,
		"candidates", len(candidates),
		"results", len(results),
		"duration", time.Since(start),
	)

	return results, nil
}

// isTransient reports whether an error is worth another attempt. Input and
// configuration errors are permanent; so is a context cancellation.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, embedder.ErrInvalidInput),
		errors.Is(err, vectorstore.ErrInvalidFilter),
		errors.Is(err, vectorstore.ErrDimensionMismatch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// classify maps collaborator errors onto the caller-facing taxonomy. Input
// and filter errors pass through unchanged; transient failures escalate to
// ErrUnavailable after the retry budget is spent.
func classify(err error, msg string) error {
	switch {
	case errors.Is(err, embedder.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, vectorstore.ErrInvalidFilter):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, msg, err)
}
