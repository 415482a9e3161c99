package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

// SearchUseCase ищет товары, похожие на предмет одежды с пользовательского фото,
// полным перебором всех сохранённых эмбеддингов.
type SearchUseCase struct {
	catalog    CatalogRepository
	decoder    ImageDecoder
	localizer  Localizer
	embedder   Embedder
	cache      CacheRepository
	partitions []string
	opts       SearchOptions
	logger     logger.Logger
}

func NewSearchUC(
	catalog CatalogRepository,
	decoder ImageDecoder,
	localizer Localizer,
	embedder Embedder,
	cache CacheRepository,
	partitions []string,
	opts SearchOptions,
	logger logger.Logger,
) *SearchUseCase {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	return &SearchUseCase{
		catalog:    catalog,
		decoder:    decoder,
		localizer:  localizer,
		embedder:   embedder,
		cache:      cache,
		partitions: partitions,
		opts:       opts,
		logger:     logger,
	}
}

// Partitions возвращает партиции в порядке сканирования.
func (s *SearchUseCase) Partitions() []string {
	return append([]string(nil), s.partitions...)
}

// Search возвращает до TopK товаров по убыванию похожести. При равной похожести
// сохраняется порядок сканирования (порядок партиций, затем порядок строк).
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	if len(req.Image) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyImage)
	}

	cacheKey := imageKey(req.Image)
	generation, cached, hit := s.lookupCache(ctx, cacheKey)
	if hit {
		return NewSearchRes(cached, true), nil
	}

	img, err := s.decoder.Decode(req.Image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	region, found, err := s.localizer.Locate(ctx, img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if !found {
		return nil, e.Wrap(op, e.ErrNoObjectDetected)
	}

	query, err := s.embedder.Embed(ctx, region.Crop(img))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	matches, err := s.rank(ctx, query)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	s.storeCache(ctx, generation, cacheKey, matches)

	return NewSearchRes(matches, false), nil
}

// rank сканирует все партиции и возвращает топ совпадений.
// Записи с вектором другой размерности пропускаются.
func (s *SearchUseCase) rank(ctx context.Context, query domain.Vector) ([]domain.Match, error) {
	const op = "SearchUseCase.rank"

	var (
		candidates []domain.Match
		mismatched int
	)
	for _, partition := range s.partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := s.catalog.ScanAll(ctx, partition)
		if err != nil {
			return nil, e.Storage(op, err)
		}

		for i := range records {
			record := &records[i]
			if !record.HasEmbedding() {
				continue
			}
			if record.Embedding.Dim() != query.Dim() {
				mismatched++
				continue
			}
			candidates = append(candidates, domain.NewMatch(record, query.Dot(*record.Embedding)))
		}
	}

	if mismatched > 0 {
		s.logger.Warnf("%v: skipped %d records, query dimension %d", e.ErrDimensionMismatch, mismatched, query.Dim())
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if len(candidates) > s.opts.TopK {
		candidates = candidates[:s.opts.TopK:s.opts.TopK]
	}
	if candidates == nil {
		candidates = []domain.Match{}
	}

	return candidates, nil
}

// lookupCache возвращает поколение каталога и закэшированный результат, если он есть.
// Ошибки кэша не влияют на поиск.
func (s *SearchUseCase) lookupCache(ctx context.Context, key string) (int64, []domain.Match, bool) {
	if s.cache == nil {
		return 0, nil, false
	}

	generation, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warnf("search cache unavailable: %v", err)
		return -1, nil, false
	}

	matches, ok, err := s.cache.GetMatches(ctx, generation, key)
	if err != nil {
		s.logger.Warnf("search cache read failed: %v", err)
		return generation, nil, false
	}

	return generation, matches, ok
}

func (s *SearchUseCase) storeCache(ctx context.Context, generation int64, key string, matches []domain.Match) {
	if s.cache == nil || generation < 0 {
		return
	}

	if err := s.cache.SetMatches(ctx, generation, key, matches); err != nil {
		s.logger.Warnf("search cache write failed: %v", err)
	}
}

func imageKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
