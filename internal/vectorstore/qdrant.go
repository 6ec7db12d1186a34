package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements VectorIndex using Qdrant.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantIndex creates a new Qdrant index client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantIndex(ctx context.Context, url, collection string) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantIndex{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the template collection if it does not exist and
// records the expected dimensionality for later search-time checks. An
// existing collection whose vector size differs from dimension fails with
// ErrDimensionMismatch, so an embedding-model switch is caught at startup
// rather than on every search.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension)
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: failed to check collection existence: %v", ErrUnavailable, err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("%w: failed to read collection info: %v", ErrUnavailable, err)
		}
		if err := verifyVectorSize(info, dimension); err != nil {
			return err
		}
	} else {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to create collection: %v", ErrUnavailable, err)
		}
	}

	s.dimension = dimension
	return nil
}

// verifyVectorSize checks a collection's stored vector size against the
// embedder's dimension.
func verifyVectorSize(info *qdrant.CollectionInfo, dimension int) error {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		// Named-vector collections are never created by this service
		return fmt.Errorf("%w: collection uses an unexpected vector configuration", ErrDimensionMismatch)
	}
	if size := int(params.GetSize()); size != dimension {
		return fmt.Errorf("%w: collection stores %d-dimensional vectors, embedder produces %d",
			ErrDimensionMismatch, size, dimension)
	}
	return nil
}

// pointID derives a stable UUID for a template identifier. Qdrant point IDs
// must be UUIDs or integers, while template identifiers are slugs; the SHA-1
// namespace mapping keeps upserts idempotent.
func pointID(templateID string) *qdrant.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("stackhub:template:"+templateID))
	return qdrant.NewIDUUID(id.String())
}

// Upsert inserts or replaces template points.
func (s *QdrantIndex) Upsert(ctx context.Context, points []TemplatePoint) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if s.dimension > 0 && len(p.Vector) != s.dimension {
			return fmt.Errorf("%w: template %s has dimension %d, collection expects %d",
				ErrDimensionMismatch, p.TemplateID, len(p.Vector), s.dimension)
		}

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      pointID(p.TemplateID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(pointPayload(p)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upsert points: %v", ErrUnavailable, err)
	}

	return nil
}

// pointPayload builds the stored payload for a template point. Tags, language
// and category are normalized the same way search filters are, so a filter
// value always matches the payload it was ingested from regardless of casing
// in the registry.
func pointPayload(p TemplatePoint) map[string]any {
	meta := Filters{Tags: p.Tags, Language: p.Language, Category: p.Category}.Normalized()

	tags := make([]any, len(meta.Tags))
	for i, tag := range meta.Tags {
		tags[i] = tag
	}

	return map[string]any{
		"template_id": p.TemplateID,
		"name":        p.Name,
		"tags":        tags,
		"language":    meta.Language,
		"category":    meta.Category,
		"updated_at":  p.UpdatedAt,
	}
}

// Search performs similarity search with optional metadata filter push-down.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, k int, filters Filters) ([]Candidate, error) {
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter := buildFilter(filters); filter != nil {
		query.Filter = filter
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search: %v", ErrUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(response))
	for _, point := range response {
		candidates = append(candidates, candidateFromPayload(point))
	}

	return candidates, nil
}

// buildFilter translates Filters into a qdrant filter. Each tag becomes its
// own must-match condition, giving AND semantics over the tag list payload.
func buildFilter(filters Filters) *qdrant.Filter {
	f := filters.Normalized()
	if f.IsZero() {
		return nil
	}

	var must []*qdrant.Condition
	for _, tag := range f.Tags {
		must = append(must, qdrant.NewMatch("tags", tag))
	}
	if f.Language != "" {
		must = append(must, qdrant.NewMatch("language", f.Language))
	}
	if f.Category != "" {
		must = append(must, qdrant.NewMatch("category", f.Category))
	}

	return &qdrant.Filter{Must: must}
}

func candidateFromPayload(point *qdrant.ScoredPoint) Candidate {
	c := Candidate{Score: point.Score}

	payload := point.Payload
	if payload == nil {
		return c
	}

	if v, ok := payload["template_id"]; ok {
		c.TemplateID = v.GetStringValue()
	}
	if v, ok := payload["name"]; ok {
		c.Name = v.GetStringValue()
	}
	if v, ok := payload["language"]; ok {
		c.Language = v.GetStringValue()
	}
	if v, ok := payload["category"]; ok {
		c.Category = v.GetStringValue()
	}
	if v, ok := payload["updated_at"]; ok {
		c.UpdatedAt = v.GetStringValue()
	}
	if v, ok := payload["tags"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			if tag := item.GetStringValue(); tag != "" {
				c.Tags = append(c.Tags, tag)
			}
		}
	}

	return c
}

// Ensure QdrantIndex implements VectorIndex
var _ VectorIndex = (*QdrantIndex)(nil)
