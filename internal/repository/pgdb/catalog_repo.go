package pgdb

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/DRSN-tech/garment-search/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CatalogRepo реализует доступ к партициям каталога поверх PostgreSQL.
// Каждая партиция — отдельная таблица магазина с одинаковой схемой.
type CatalogRepo struct {
	pool   *pgxpool.Pool
	conv   converter.CatalogConverter
	logger logger.Logger
}

func NewCatalogRepo(pool *pgxpool.Pool, logger logger.Logger) *CatalogRepo {
	return &CatalogRepo{
		pool:   pool,
		logger: logger,
	}
}

// ListPending возвращает строки, которым нужен эмбеддинг, в порядке id.
func (c *CatalogRepo) ListPending(ctx context.Context, partition string, includePopulated bool) ([]domain.PendingItem, error) {
	rows, err := c.pool.Query(ctx, pendingQuery(partition), includePopulated)
	if err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	items := make([]domain.PendingItem, 0)
	for rows.Next() {
		var item domain.PendingItem
		if err := rows.Scan(&item.ID, &item.ImageURL); err != nil {
			return nil, e.Storage(whereami.WhereAmI(), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}

	return items, nil
}

// WriteEmbeddings записывает чекпоинт одной транзакцией. Повторная запись того же id перезаписывает вектор.
func (c *CatalogRepo) WriteEmbeddings(ctx context.Context, partition string, items []domain.ProductEmbedding) (n int, err error) {
	const op = "CatalogRepo.WriteEmbeddings"

	if len(items) == 0 {
		return 0, nil
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.pool)
	if err != nil {
		return 0, e.Storage(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = tr.WithTx(ctx, tx.Transaction())

	n, err = c.updateEmbeddings(ctx, partition, items)
	if err != nil {
		return 0, e.Storage(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, e.Storage(op, err)
	}

	return n, nil
}

// updateEmbeddings отправляет UPDATE всех строк одним батчем внутри транзакции из контекста.
func (c *CatalogRepo) updateEmbeddings(ctx context.Context, partition string, items []domain.ProductEmbedding) (int, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	query := updateQuery(partition)
	batch := &pgx.Batch{}
	for i := range items {
		model, err := c.conv.ToEmbeddingModel(&items[i])
		if err != nil {
			return 0, e.Wrap(whereami.WhereAmI(), err)
		}
		batch.Queue(query, model.FeatureVector, model.EmbeddedImageURL, model.ID)
	}

	br := tx.SendBatch(ctx, batch)
	updated := 0
	for range items {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, e.Wrap(whereami.WhereAmI(), err)
		}
		updated += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return updated, nil
}

// ScanAll читает все строки партиции. Строки с повреждённым вектором возвращаются без эмбеддинга.
func (c *CatalogRepo) ScanAll(ctx context.Context, partition string) ([]domain.ProductRecord, error) {
	rows, err := c.pool.Query(ctx, scanQuery(partition))
	if err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	records := make([]domain.ProductRecord, 0)
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(&model.ID, &model.Name, &model.Price, &model.ImageURL, &model.ProductLink, &model.Category, &model.FeatureVector); err != nil {
			return nil, e.Storage(whereami.WhereAmI(), err)
		}

		records = append(records, *c.toRecord(partition, &model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}

	return records, nil
}

// ListByCategory возвращает товары партиции, у которых категория содержит одно из написаний (без учёта регистра).
// Векторы не читаются.
func (c *CatalogRepo) ListByCategory(ctx context.Context, partition string, aliases []string) ([]domain.ProductRecord, error) {
	if len(aliases) == 0 {
		return []domain.ProductRecord{}, nil
	}

	rows, err := c.pool.Query(ctx, categoryQuery(partition), domain.LikePatterns(aliases))
	if err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	records := make([]domain.ProductRecord, 0)
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(&model.ID, &model.Name, &model.Price, &model.ImageURL, &model.ProductLink, &model.Category); err != nil {
			return nil, e.Storage(whereami.WhereAmI(), err)
		}

		records = append(records, *c.toRecord(partition, &model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}

	return records, nil
}

// toRecord конвертирует строку; ошибки разбора отдельных полей только логируются.
func (c *CatalogRepo) toRecord(partition string, model *converter.ProductModel) *domain.ProductRecord {
	record, err := c.conv.ToRecord(partition, model)
	if err != nil {
		c.logger.Warnf("%s: %v", partition, err)
	}

	return record
}

func table(partition string) string {
	return pgx.Identifier{partition}.Sanitize()
}

func pendingQuery(partition string) string {
	return fmt.Sprintf(`
		SELECT id, image_url
		FROM %s
		WHERE image_url IS NOT NULL AND image_url <> ''
		  AND (
			$1::boolean
			OR feature_vector IS NULL
			OR (embedded_image_url IS NOT NULL AND embedded_image_url <> image_url)
		  )
		ORDER BY id
	`, table(partition))
}

func updateQuery(partition string) string {
	return fmt.Sprintf(`
		UPDATE %s
		SET feature_vector = $1::jsonb,
			embedded_image_url = $2,
			embedded_at = NOW()
		WHERE id = $3
	`, table(partition))
}

func scanQuery(partition string) string {
	return fmt.Sprintf(`
		SELECT id, COALESCE(name, ''), COALESCE(price::text, ''), COALESCE(image_url, ''),
			COALESCE(product_link, ''), COALESCE(category, ''), feature_vector::text
		FROM %s
		ORDER BY id
	`, table(partition))
}

func categoryQuery(partition string) string {
	return fmt.Sprintf(`
		SELECT id, COALESCE(name, ''), COALESCE(price::text, ''), COALESCE(image_url, ''),
			COALESCE(product_link, ''), COALESCE(category, '')
		FROM %s
		WHERE category ILIKE ANY($1::text[])
		ORDER BY id
	`, table(partition))
}
