package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bull/docchat/internal/domain"
)

// vectorName is the named vector every point stores its embedding under.
const vectorName = "content"

// upsertBatchSize bounds the points sent per Upsert call.
const upsertBatchSize = 100

// QdrantBackend stores collections in Qdrant over gRPC.
type QdrantBackend struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantBackend connects to Qdrant and waits for it to report healthy.
// It fails fast when Qdrant stays unreachable.
func NewQdrantBackend(ctx context.Context, host string, port int) (*QdrantBackend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	b := &QdrantBackend{client: client, host: host, port: port}

	if err := retry(ctx, func() error { return b.Health(ctx) }); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return b, nil
}

// retry runs op with exponential backoff: 500ms initial, 10s max interval, 30s total.
func retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(op, backoff.WithContext(eb, ctx))
}

// Health performs a single health check against Qdrant.
func (b *QdrantBackend) Health(ctx context.Context) error {
	result, err := b.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (b *QdrantBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// CreateCollection creates a cosine-distance collection. It fails with
// ErrCollectionExists if the name is taken.
func (b *QdrantBackend) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = b.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "origin",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field origin: %w", err)
	}
	return nil
}

// DeleteCollection drops a collection. Missing collections are not an error.
func (b *QdrantBackend) DeleteCollection(ctx context.Context, name string) error {
	if err := b.client.DeleteCollection(ctx, name); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// ListCollections returns the names of all collections.
func (b *QdrantBackend) ListCollections(ctx context.Context) ([]string, error) {
	names, err := b.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// Upsert stores points in batches of 100, retrying each batch with backoff.
func (b *QdrantBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-i)
		for _, p := range points[i:end] {
			batch = append(batch, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(p.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(p.Vector...),
				}),
				Payload: qdrant.NewValueMap(toPayload(p)),
			})
		}

		err := retry(ctx, func() error {
			_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: collection,
				Wait:           qdrant.PtrOf(true),
				Points:         batch,
			})
			if isNotFound(err) {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrCollectionNotFound, collection))
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Search runs a nearest-neighbour query on the named content vector.
func (b *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Point, error) {
	using := vectorName
	results, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	points := make([]Point, 0, len(results))
	for _, r := range results {
		p := fromPayload(r.Payload)
		p.ID = r.Id.GetUuid()
		p.Score = r.Score
		points = append(points, p)
	}
	return points, nil
}

// Sample scrolls a single point to read the document stamp.
func (b *QdrantBackend) Sample(ctx context.Context, collection string) (*Point, error) {
	results, err := b.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayloadInclude("document_name", "created_at"),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, fmt.Errorf("failed to scroll collection: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	p := fromPayload(results[0].Payload)
	p.ID = results[0].Id.GetUuid()
	return &p, nil
}

// Count returns the exact number of points in collection.
func (b *QdrantBackend) Count(ctx context.Context, collection string) (uint64, error) {
	n, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

func toPayload(p Point) map[string]any {
	return map[string]any{
		"content":       p.Unit.Content,
		"page":          int64(p.Unit.Page),
		"source":        p.Unit.Source,
		"origin":        string(p.Unit.Origin),
		"sequence_hint": int64(p.Unit.SequenceHint),
		"image_index":   int64(p.Unit.ImageIndex),
		"document_name": p.Stamp.DocumentName,
		"created_at":    p.Stamp.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func fromPayload(payload map[string]*qdrant.Value) Point {
	createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())
	if err != nil {
		createdAt = time.Time{}
	}
	return Point{
		Unit: domain.TextUnit{
			Content:      payload["content"].GetStringValue(),
			Page:         int(payload["page"].GetIntegerValue()),
			Source:       payload["source"].GetStringValue(),
			Origin:       domain.Origin(payload["origin"].GetStringValue()),
			SequenceHint: int(payload["sequence_hint"].GetIntegerValue()),
			ImageIndex:   int(payload["image_index"].GetIntegerValue()),
		},
		Stamp: Stamp{
			DocumentName: payload["document_name"].GetStringValue(),
			CreatedAt:    createdAt,
		},
	}
}

func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}
