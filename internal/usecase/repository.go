package usecase

import (
	"context"

	"github.com/DRSN-tech/garment-search/internal/domain"
)

// CatalogRepository — доступ к партициям каталога (по одной таблице на магазин).
type CatalogRepository interface {
	// ListPending возвращает строки без эмбеддинга (или с устаревшим), а при includePopulated — все строки с image_url.
	ListPending(ctx context.Context, partition string, includePopulated bool) ([]domain.PendingItem, error)
	// WriteEmbeddings идемпотентно записывает векторы одной транзакцией и возвращает число обновлённых строк.
	WriteEmbeddings(ctx context.Context, partition string, items []domain.ProductEmbedding) (int, error)
	ScanAll(ctx context.Context, partition string) ([]domain.ProductRecord, error)
	// ListByCategory возвращает строки, у которых категория содержит одно из написаний. Векторы не читаются.
	ListByCategory(ctx context.Context, partition string, aliases []string) ([]domain.ProductRecord, error)
}

// EmbeddingMirrorRepository — внешнее зеркало посчитанных векторов (Qdrant). Поиск по нему не выполняется.
type EmbeddingMirrorRepository interface {
	Upsert(ctx context.Context, partition string, items []domain.ProductEmbedding) error
}

// CacheRepository кэширует результаты поиска. Поколение каталога увеличивается после каждой записи эмбеддингов.
type CacheRepository interface {
	Generation(ctx context.Context) (int64, error)
	BumpGeneration(ctx context.Context) error
	GetMatches(ctx context.Context, generation int64, key string) ([]domain.Match, bool, error)
	SetMatches(ctx context.Context, generation int64, key string, matches []domain.Match) error
}
