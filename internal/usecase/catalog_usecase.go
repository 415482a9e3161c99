package usecase

import (
	"context"
	"strings"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

// CatalogUseCase отдаёт товары выбранных партиций по категории.
type CatalogUseCase struct {
	catalog    CatalogRepository
	partitions []string
	logger     logger.Logger
}

func NewCatalogUC(catalog CatalogRepository, partitions []string, logger logger.Logger) *CatalogUseCase {
	return &CatalogUseCase{
		catalog:    catalog,
		partitions: partitions,
		logger:     logger,
	}
}

// Browse возвращает товары запрошенных партиций, категория которых совпадает с одним из
// написаний основной категории. Партиции вне конфигурации отбрасываются, порядок результата
// совпадает с порядком запроса, внутри партиции — по id.
func (c *CatalogUseCase) Browse(ctx context.Context, req *BrowseReq) ([]domain.CatalogItem, error) {
	const op = "CatalogUseCase.Browse"

	category := strings.TrimSpace(req.Category)
	if category == "" || len(req.Partitions) == 0 {
		return nil, e.Wrap(op, e.ErrMissingBrowseParams)
	}

	partitions := c.allowed(req.Partitions)
	if len(partitions) == 0 {
		return nil, e.Wrap(op, e.ErrNoValidPartitions)
	}

	aliases := domain.CategoryAliases(category)
	items := make([]domain.CatalogItem, 0)
	for _, p := range partitions {
		records, err := c.catalog.ListByCategory(ctx, p, aliases)
		if err != nil {
			return nil, e.Storage(op, err)
		}
		for i := range records {
			items = append(items, domain.NewCatalogItem(&records[i]))
		}
	}

	c.logger.Debugf("browse %s in %v: %d items", category, partitions, len(items))
	return items, nil
}

// allowed оставляет только сконфигурированные партиции без повторов.
func (c *CatalogUseCase) allowed(requested []string) []string {
	known := make(map[string]struct{}, len(c.partitions))
	for _, p := range c.partitions {
		known[p] = struct{}{}
	}

	out := make([]string, 0, len(requested))
	for _, p := range requested {
		p = strings.TrimSpace(p)
		if _, ok := known[p]; !ok {
			continue
		}
		delete(known, p)
		out = append(out, p)
	}

	return out
}
