package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// CollectionName 知识分块集合名
const CollectionName = "knowledge_chunks"

// Store Qdrant 向量存储
type Store struct {
	client *qdrant.Client
	logger *slog.Logger
}

// ScoredChunkRef 向量检索命中结果
type ScoredChunkRef struct {
	ChunkID     string
	DocumentID  string
	ContentType knowledge.ContentType
	Section     string
	SourcePath  string
	Score       float64
}

// NewStore 连接 Qdrant 并创建向量存储
func NewStore(host string, port int) (*Store, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &Store{
		client: client,
		logger: log.NewModuleLogger("vector", "store"),
	}, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection 确保集合存在
func (s *Store) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range existing {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", CollectionName, err)
	}

	s.logger.Info("Created qdrant collection",
		"collection", CollectionName,
		"vector_size", vectorSize,
	)

	return nil
}

// UpsertChunks 写入分块向量
func (s *Store) UpsertChunks(ctx context.Context, chunks []*knowledge.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		vectorArgs := make([]float32, len(vectors[i]))
		copy(vectorArgs, vectors[i])

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(vectorArgs...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id":     chunk.ID,
				"document_id":  chunk.DocumentID,
				"content_type": string(chunk.ContentType),
				"section":      chunk.Section,
				"source_path":  chunk.SourcePath,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: CollectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search 向量检索，返回按相似度降序的命中列表
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]*ScoredChunkRef, error) {
	limitU := uint64(limit)

	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	results := make([]*ScoredChunkRef, 0, len(resp))
	for _, hit := range resp {
		ref := &ScoredChunkRef{
			Score: float64(hit.Score),
		}
		if payload := hit.GetPayload(); payload != nil {
			ref.ChunkID = extractStringValue(payload["chunk_id"])
			ref.DocumentID = extractStringValue(payload["document_id"])
			ref.ContentType = knowledge.ContentType(extractStringValue(payload["content_type"]))
			ref.Section = extractStringValue(payload["section"])
			ref.SourcePath = extractStringValue(payload["source_path"])
		}
		results = append(results, ref)
	}

	return results, nil
}

// DeleteByDocument 删除文档的全部向量
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("document_id", documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for document %s: %w", documentID, err)
	}
	return nil
}

// DropCollection 删除整个集合（清空知识库）
func (s *Store) DropCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Count 集合中的向量数量
func (s *Store) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	if s, ok := val.GetKind().(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}
