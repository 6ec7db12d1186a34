// Package ranker orders vector search candidates by combining raw similarity
// with bounded metadata boosts.
//
// Ranking is deterministic: the same candidate set always produces the same
// ordered output, including tie-break order. That property is what makes
// cached results reusable and test output stable, so the ranker never calls
// out to a model or any other nondeterministic scorer.
package ranker

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// Default weights. Exposed as configuration rather than hard-coded so tuning
// does not require a rebuild; the values below were picked so that metadata
// boosts can reorder near-ties but never override a clear similarity winner.
const (
	// DefaultSimilarityWeight multiplies the raw similarity score.
	DefaultSimilarityWeight = 1.0

	// DefaultTagBoostPerMatch is added per filter tag present on a candidate.
	DefaultTagBoostPerMatch = 0.05

	// DefaultTagBoostCap bounds the total tag overlap boost.
	DefaultTagBoostCap = 0.15

	// DefaultRecencyBoostMax is the boost for a template updated just now;
	// it decays with the candidate's age.
	DefaultRecencyBoostMax = 0.10

	// DefaultRecencyHalfLife is the age at which the recency boost halves.
	DefaultRecencyHalfLife = 90 * 24 * time.Hour
)

// Weights holds the scoring configuration.
type Weights struct {
	SimilarityWeight float64
	TagBoostPerMatch float64
	TagBoostCap      float64
	RecencyBoostMax  float64
	RecencyHalfLife  time.Duration
}

// DefaultWeights returns the documented default scoring configuration.
func DefaultWeights() Weights {
	return Weights{
		SimilarityWeight: DefaultSimilarityWeight,
		TagBoostPerMatch: DefaultTagBoostPerMatch,
		TagBoostCap:      DefaultTagBoostCap,
		RecencyBoostMax:  DefaultRecencyBoostMax,
		RecencyHalfLife:  DefaultRecencyHalfLife,
	}
}

// Breakdown records how a final score was composed, so results are
// explainable to the caller.
type Breakdown struct {
	Similarity   float64 `json:"similarity"`
	TagBoost     float64 `json:"tag_boost"`
	RecencyBoost float64 `json:"recency_boost"`
}

// RankedResult is a candidate with its final score, rank position and score
// breakdown. Immutable once produced.
type RankedResult struct {
	vectorstore.Candidate
	FinalScore float64   `json:"final_score"`
	Rank       int       `json:"rank"`
	Breakdown  Breakdown `json:"breakdown"`
}

// Ranker merges similarity scores with metadata signals, deduplicates and
// orders candidates.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock injects the time source used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) {
		r.now = now
	}
}

// New creates a Ranker. Zero-valued weight fields fall back to defaults.
func New(weights Weights, opts ...Option) *Ranker {
	defaults := DefaultWeights()
	if weights.SimilarityWeight == 0 {
		weights.SimilarityWeight = defaults.SimilarityWeight
	}
	if weights.TagBoostPerMatch == 0 {
		weights.TagBoostPerMatch = defaults.TagBoostPerMatch
	}
	if weights.TagBoostCap == 0 {
		weights.TagBoostCap = defaults.TagBoostCap
	}
	if weights.RecencyBoostMax == 0 {
		weights.RecencyBoostMax = defaults.RecencyBoostMax
	}
	if weights.RecencyHalfLife == 0 {
		weights.RecencyHalfLife = defaults.RecencyHalfLife
	}

	r := &Ranker{
		weights: weights,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores, deduplicates, orders and truncates candidates, returning at
// most k results. An empty candidate set yields an empty result, not an
// error. Duplicate template identifiers keep the occurrence with the higher
// raw similarity. Ties on final score break by template identifier ascending.
func (r *Ranker) Rank(candidates []vectorstore.Candidate, filters vectorstore.Filters, k int) []RankedResult {
	if len(candidates) == 0 {
		return []RankedResult{}
	}

	// Deduplicate by template identifier, keeping the higher raw similarity.
	// Near-duplicates can appear when the index serves shards independently.
	best := make(map[string]vectorstore.Candidate, len(candidates))
	for _, c := range candidates {
		if prev, ok := best[c.TemplateID]; !ok || c.Score > prev.Score {
			best[c.TemplateID] = c
		}
	}

	filterTags := make(map[string]bool, len(filters.Tags))
	for _, tag := range filters.Normalized().Tags {
		filterTags[tag] = true
	}

	now := r.now()
	results := make([]RankedResult, 0, len(best))
	for _, c := range best {
		breakdown := Breakdown{
			Similarity:   r.weights.SimilarityWeight * float64(c.Score),
			TagBoost:     r.tagBoost(c.Tags, filterTags),
			RecencyBoost: r.recencyBoost(c.UpdatedAt, now),
		}
		results = append(results, RankedResult{
			Candidate:  c,
			FinalScore: breakdown.Similarity + breakdown.TagBoost + breakdown.RecencyBoost,
			Breakdown:  breakdown,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].TemplateID < results[j].TemplateID
	})

	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}

// tagBoost counts overlap between candidate tags and filter tags, bounded by
// the configured cap. Candidate tags are normalized the same way filter tags
// are, so casing differences between stored metadata and filters never cost
// a match.
func (r *Ranker) tagBoost(tags []string, filterTags map[string]bool) float64 {
	if len(filterTags) == 0 {
		return 0
	}

	matches := 0
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if filterTags[tag] && !seen[tag] {
			seen[tag] = true
			matches++
		}
	}

	boost := float64(matches) * r.weights.TagBoostPerMatch
	if boost > r.weights.TagBoostCap {
		boost = r.weights.TagBoostCap
	}
	return boost
}

// recencyBoost decays exponentially with template age; an unparseable or
// missing timestamp contributes nothing.
func (r *Ranker) recencyBoost(updatedAt string, now time.Time) float64 {
	if updatedAt == "" {
		return 0
	}
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return 0
	}

	age := now.Sub(ts)
	if age < 0 {
		age = 0
	}

	halfLives := age.Hours() / r.weights.RecencyHalfLife.Hours()
	return r.weights.RecencyBoostMax * math.Pow(0.5, halfLives)
}
