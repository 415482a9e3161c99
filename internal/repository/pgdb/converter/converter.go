package converter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/shopspring/decimal"
)

// CatalogConverter преобразует строки партиций каталога между доменом и моделями SQL.
// Используется и PostgreSQL, и SQLite реализациями.
type CatalogConverter struct{}

// ToRecord собирает запись каталога и всегда возвращает её. Нечитаемая цена заменяется нулём,
// нечитаемый вектор отбрасывается; ошибки возвращаются вместе с записью для логирования.
func (CatalogConverter) ToRecord(partition string, model *ProductModel) (*domain.ProductRecord, error) {
	var errs []error

	price, err := ParsePrice(model.Price)
	if err != nil {
		errs = append(errs, fmt.Errorf("product %d: unparsable price %q: %w", model.ID, model.Price, err))
		price = decimal.Zero
	}

	record := domain.NewProductRecord(model.ID, partition, model.Name, price, model.ImageURL, nil)
	record.ProductLink = model.ProductLink
	record.Category = model.Category

	if model.FeatureVector != nil && strings.TrimSpace(*model.FeatureVector) != "" {
		vector, err := domain.UnmarshalVector(*model.FeatureVector)
		if err != nil {
			errs = append(errs, fmt.Errorf("product %d: undecodable feature_vector: %w", model.ID, err))
		} else {
			record.Embedding = &vector
		}
	}

	return record, errors.Join(errs...)
}

func (CatalogConverter) ToEmbeddingModel(emb *domain.ProductEmbedding) (*EmbeddingModel, error) {
	raw, err := domain.MarshalVector(emb.Vector)
	if err != nil {
		return nil, err
	}

	return &EmbeddingModel{
		ID:               emb.ID,
		FeatureVector:    raw,
		EmbeddedImageURL: emb.ImageURL,
	}, nil
}

// ParsePrice разбирает цену. Пустая цена считается нулевой.
func ParsePrice(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}

	return decimal.NewFromString(raw)
}
