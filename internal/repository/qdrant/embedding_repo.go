package qdrant

import (
	"context"

	"github.com/DRSN-tech/garment-search/internal/cfg"
	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo выгружает посчитанные векторы каталога в коллекцию Qdrant.
// Поиск по коллекции сервис не выполняет.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет векторы партиции. ID точки детерминирован по партиции и id товара.
func (q *EmbeddingRepo) Upsert(ctx context.Context, partition string, items []domain.ProductEmbedding) error {
	if len(items) == 0 {
		return nil
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         ToPoints(partition, items),
	})
	if err != nil {
		return e.Storage(whereami.WhereAmI(), err)
	}

	return nil
}

// ToPoints строит точки Qdrant из эмбеддингов партиции.
func ToPoints(partition string, items []domain.ProductEmbedding) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		point := domain.NewEmbeddingPoint(partition, item)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(point.Payload),
		})
	}

	return points
}
