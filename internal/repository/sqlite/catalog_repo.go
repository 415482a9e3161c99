// Package sqlite — каталог в одном файле SQLite для локального запуска и тестов.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/jimlawless/whereami"
	_ "modernc.org/sqlite"
)

// CatalogRepo реализует доступ к партициям каталога поверх SQLite.
// Схема таблиц совпадает с PostgreSQL, вектор хранится JSON-текстом.
type CatalogRepo struct {
	db     *sql.DB
	conv   converter.CatalogConverter
	logger logger.Logger
}

// Open открывает (или создаёт) файл каталога.
func Open(path string, logger logger.Logger) (*CatalogRepo, error) {
	const op = "sqlite.Open"

	if path == "" {
		return nil, e.Wrap(op, fmt.Errorf("%w: sqlite path required", e.ErrIncorrectEnvVariable))
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, e.Storage(op, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, e.Storage(op, err)
	}
	// Одно соединение: запись из пайплайна и чтение из поиска не конкурируют за блокировку файла
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, e.Storage(op, err)
	}

	return &CatalogRepo{db: db, logger: logger}, nil
}

func (c *CatalogRepo) Close() error {
	return c.db.Close()
}

// EnsurePartition создаёт таблицу партиции, если её нет.
func (c *CatalogRepo) EnsurePartition(ctx context.Context, partition string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '0',
			image_url TEXT,
			category TEXT,
			feature_vector TEXT,
			embedded_image_url TEXT,
			embedded_at TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`, table(partition))

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return e.Storage(whereami.WhereAmI(), err)
	}

	// Файлы, созданные до появления product_link
	alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN product_link TEXT`, table(partition))
	if _, err := c.db.ExecContext(ctx, alter); err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return e.Storage(whereami.WhereAmI(), err)
	}

	return nil
}

// ListPending возвращает строки, которым нужен эмбеддинг, в порядке id.
func (c *CatalogRepo) ListPending(ctx context.Context, partition string, includePopulated bool) ([]domain.PendingItem, error) {
	query := fmt.Sprintf(`
		SELECT id, image_url
		FROM %s
		WHERE image_url IS NOT NULL AND image_url <> ''
		  AND (
			? = 1
			OR feature_vector IS NULL
			OR (embedded_image_url IS NOT NULL AND embedded_image_url <> image_url)
		  )
		ORDER BY id`, table(partition))

	flag := 0
	if includePopulated {
		flag = 1
	}

	rows, err := c.db.QueryContext(ctx, query, flag)
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

// WriteEmbeddings записывает чекпоинт одной транзакцией.
func (c *CatalogRepo) WriteEmbeddings(ctx context.Context, partition string, items []domain.ProductEmbedding) (int, error) {
	const op = "sqlite.CatalogRepo.WriteEmbeddings"

	if len(items) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, e.Storage(op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET feature_vector = ?, embedded_image_url = ?, embedded_at = ?
		WHERE id = ?`, table(partition)))
	if err != nil {
		return 0, e.Storage(op, err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	updated := 0
	for i := range items {
		model, err := c.conv.ToEmbeddingModel(&items[i])
		if err != nil {
			return 0, e.Storage(op, err)
		}

		res, err := stmt.ExecContext(ctx, model.FeatureVector, model.EmbeddedImageURL, now, model.ID)
		if err != nil {
			return 0, e.Storage(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, e.Storage(op, err)
		}
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, e.Storage(op, err)
	}

	return updated, nil
}

// ScanAll читает все строки партиции. Строки с повреждённым вектором возвращаются без эмбеддинга.
func (c *CatalogRepo) ScanAll(ctx context.Context, partition string) ([]domain.ProductRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(name, ''), COALESCE(CAST(price AS TEXT), ''), COALESCE(image_url, ''),
			COALESCE(product_link, ''), COALESCE(category, ''), feature_vector
		FROM %s
		ORDER BY id`, table(partition))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	records := make([]domain.ProductRecord, 0)
	for rows.Next() {
		var (
			model  converter.ProductModel
			vector sql.NullString
		)
		if err := rows.Scan(&model.ID, &model.Name, &model.Price, &model.ImageURL, &model.ProductLink, &model.Category, &vector); err != nil {
			return nil, e.Storage(whereami.WhereAmI(), err)
		}
		if vector.Valid {
			model.FeatureVector = &vector.String
		}

		records = append(records, *c.toRecord(partition, &model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Storage(whereami.WhereAmI(), err)
	}

	return records, nil
}

// ListByCategory возвращает товары партиции, у которых категория содержит одно из написаний.
// LIKE в SQLite не учитывает регистр для ASCII.
func (c *CatalogRepo) ListByCategory(ctx context.Context, partition string, aliases []string) ([]domain.ProductRecord, error) {
	if len(aliases) == 0 {
		return []domain.ProductRecord{}, nil
	}

	patterns := domain.LikePatterns(aliases)
	conditions := make([]string, len(patterns))
	args := make([]any, len(patterns))
	for i, p := range patterns {
		conditions[i] = `category LIKE ? ESCAPE '\'`
		args[i] = p
	}

	query := fmt.Sprintf(`
		SELECT id, COALESCE(name, ''), COALESCE(CAST(price AS TEXT), ''), COALESCE(image_url, ''),
			COALESCE(product_link, ''), COALESCE(category, '')
		FROM %s
		WHERE %s
		ORDER BY id`, table(partition), strings.Join(conditions, " OR "))

	rows, err := c.db.QueryContext(ctx, query, args...)
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
	return `"` + strings.ReplaceAll(partition, `"`, `""`) + `"`
}
