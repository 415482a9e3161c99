package vision

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/pkg/e"
)

// DefaultScoreThreshold — минимальная уверенность детектора (строго больше).
const DefaultScoreThreshold = 0.7

// Localizer выбирает на изображении один регион с предметом одежды.
type Localizer struct {
	runtime   *Runtime
	threshold float64
}

func NewLocalizer(runtime *Runtime, threshold float64) *Localizer {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}

	return &Localizer{
		runtime:   runtime,
		threshold: threshold,
	}
}

// Locate возвращает регион кандидата с максимальной уверенностью выше порога.
// При равной уверенности побеждает кандидат большей площади.
func (l *Localizer) Locate(ctx context.Context, img image.Image) (domain.Region, bool, error) {
	const op = "Localizer.Locate"

	data, err := infrastructure.EncodeJPEG(img)
	if err != nil {
		return domain.Region{}, false, e.Model(op, fmt.Errorf("%w: %w", e.ErrLocalization, err))
	}

	detections, err := l.runtime.detect(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Region{}, false, e.Wrap(op, ctx.Err())
		}
		return domain.Region{}, false, e.Model(op, fmt.Errorf("%w: %w", e.ErrLocalization, err))
	}

	region, found := SelectRegion(detections, img.Bounds(), l.threshold)
	return region, found, nil
}

// SelectRegion применяет правило выбора к кандидатам детектора.
// Координаты кандидатов отсчитываются от левого верхнего угла изображения.
func SelectRegion(detections []domain.Detection, bounds image.Rectangle, threshold float64) (domain.Region, bool) {
	var (
		best     domain.Region
		bestDet  domain.Detection
		selected bool
	)

	for _, d := range detections {
		if math.IsNaN(d.Score) || d.Score <= threshold {
			continue
		}

		region := toRegion(d, bounds)
		if !region.Valid() {
			continue
		}

		if !selected || d.Score > bestDet.Score || (d.Score == bestDet.Score && region.Area() > best.Area()) {
			best, bestDet, selected = region, d, true
		}
	}

	return best, selected
}

// toRegion переводит рамку в пиксели изображения с началом в bounds.Min и обрезает по границам.
// Координаты ограничиваются ещё в float64, чтобы ±Inf и огромные значения не попадали в int.
func toRegion(d domain.Detection, bounds image.Rectangle) domain.Region {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	return domain.NewRegion(
		bounds.Min.X+int(clampCoord(math.Floor(d.X1), w)),
		bounds.Min.Y+int(clampCoord(math.Floor(d.Y1), h)),
		bounds.Min.X+int(clampCoord(math.Ceil(d.X2), w)),
		bounds.Min.Y+int(clampCoord(math.Ceil(d.Y2), h)),
	).Clamp(bounds)
}

// clampCoord ограничивает координату отрезком [0, limit]. NaN превращается в 0.
func clampCoord(v, limit float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > limit:
		return limit
	default:
		return v
	}
}
