package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusVectorStore keeps frame embeddings in a Milvus collection with an
// HNSW cosine index. Upserts delete-then-insert to stay idempotent.
type MilvusVectorStore struct {
	mc   client.Client
	coll string
	dim  int
}

func NewMilvusVectorStore(ctx context.Context, addr string, dim int) (*MilvusVectorStore, error) {
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "frame_embeddings"
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &MilvusVectorStore{mc: mc, coll: coll, dim: dim}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusVectorStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("ts").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func escapeExpr(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

func (s *MilvusVectorStore) Upsert(ctx context.Context, videoID string, timestamp float64, vec []float32) error {
	expr := fmt.Sprintf(`video_id == "%s" && ts == %f`, escapeExpr(videoID), timestamp)
	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return fmt.Errorf("delete stale vector: %w", err)
	}
	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", []string{videoID}),
		entity.NewColumnDouble("ts", []float64{timestamp}),
		entity.NewColumnFloatVector("vector", s.dim, [][]float32{vec}),
	)
	if err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return nil
}

func (s *MilvusVectorStore) Search(ctx context.Context, videoID string, vec []float32, topK int) ([]Hit, error) {
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	filter := fmt.Sprintf(`video_id == "%s"`, escapeExpr(videoID))
	res, err := s.mc.Search(ctx, s.coll, []string{}, filter, []string{"ts"},
		[]entity.Vector{entity.FloatVector(vec)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search milvus: %w", err)
	}
	var hits []Hit
	for _, r := range res {
		var tsCol *entity.ColumnDouble
		for _, c := range r.Fields {
			if c.Name() == "ts" {
				tsCol, _ = c.(*entity.ColumnDouble)
			}
		}
		if tsCol == nil {
			continue
		}
		data := tsCol.Data()
		for i := 0; i < r.ResultCount && i < len(data); i++ {
			hits = append(hits, Hit{Timestamp: data[i], Score: float64(r.Scores[i])})
		}
	}
	return hits, nil
}

func (s *MilvusVectorStore) IndexedTimestamps(ctx context.Context, videoID string) ([]float64, error) {
	expr := fmt.Sprintf(`video_id == "%s"`, escapeExpr(videoID))
	res, err := s.mc.Query(ctx, s.coll, []string{}, expr, []string{"ts"})
	if err != nil {
		return nil, fmt.Errorf("query milvus: %w", err)
	}
	var out []float64
	for _, c := range res {
		if c.Name() != "ts" {
			continue
		}
		if col, ok := c.(*entity.ColumnDouble); ok {
			out = append(out, col.Data()...)
		}
	}
	return out, nil
}

func (s *MilvusVectorStore) DeleteVideo(ctx context.Context, videoID string) error {
	expr := fmt.Sprintf(`video_id == "%s"`, escapeExpr(videoID))
	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return fmt.Errorf("delete video vectors: %w", err)
	}
	return nil
}
