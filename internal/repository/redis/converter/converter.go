package converter

import (
	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/shopspring/decimal"
)

// MatchConverter переводит результаты поиска между доменом и моделью кэша.
type MatchConverter struct{}

func (MatchConverter) ToRedisModel(m *domain.Match) *MatchRedisModel {
	return &MatchRedisModel{
		ID:          m.ID,
		Partition:   m.Partition,
		Name:        m.Name,
		Price:       m.Price.String(),
		ImageURL:    m.ImageURL,
		ProductLink: m.ProductLink,
		Similarity:  m.Similarity,
	}
}

func (MatchConverter) ToDomain(model *MatchRedisModel) (*domain.Match, error) {
	price, err := decimal.NewFromString(model.Price)
	if err != nil {
		return nil, err
	}

	return &domain.Match{
		ID:          model.ID,
		Partition:   model.Partition,
		Name:        model.Name,
		Price:       price,
		ImageURL:    model.ImageURL,
		ProductLink: model.ProductLink,
		Similarity:  model.Similarity,
	}, nil
}

func (c MatchConverter) ToArrRedisModel(matches []domain.Match) []MatchRedisModel {
	out := make([]MatchRedisModel, len(matches))
	for i := range matches {
		out[i] = *c.ToRedisModel(&matches[i])
	}
	return out
}

func (c MatchConverter) ToArrDomain(models []MatchRedisModel) ([]domain.Match, error) {
	out := make([]domain.Match, len(models))
	for i := range models {
		m, err := c.ToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		out[i] = *m
	}
	return out, nil
}
