package usecase

import (
	"context"

	"github.com/DRSN-tech/garment-search/internal/domain"
)

type EmbeddingUC interface {
	Run(ctx context.Context, req *RunEmbeddingReq) (*domain.BatchRun, error)
}

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	Partitions() []string
}

type CatalogUC interface {
	Browse(ctx context.Context, req *BrowseReq) ([]domain.CatalogItem, error)
}
