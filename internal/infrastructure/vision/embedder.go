package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/pkg/e"
)

// Embedder превращает изображения в L2-нормированные векторы.
type Embedder struct {
	runtime *Runtime
}

func NewEmbedder(runtime *Runtime) *Embedder {
	return &Embedder{runtime: runtime}
}

func (m *Embedder) Embed(ctx context.Context, img image.Image) (domain.Vector, error) {
	const op = "Embedder.Embed"

	vectors, err := m.EmbedBatch(ctx, []image.Image{img})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vectors[0], nil
}

// EmbedBatch векторизует изображения одним вызовом модели.
// Каждый вектор нормируется отдельно, поэтому результат совпадает с поштучными вызовами.
func (m *Embedder) EmbedBatch(ctx context.Context, imgs []image.Image) ([]domain.Vector, error) {
	const op = "Embedder.EmbedBatch"

	if len(imgs) == 0 {
		return []domain.Vector{}, nil
	}

	payload := make([][]byte, len(imgs))
	for i, img := range imgs {
		data, err := infrastructure.EncodeJPEG(img)
		if err != nil {
			return nil, e.Model(op, err)
		}
		payload[i] = data
	}

	raw, err := m.runtime.embed(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, e.Wrap(op, ctx.Err())
		}
		return nil, e.Model(op, err)
	}
	if len(raw) != len(imgs) {
		return nil, e.Wrap(op, fmt.Errorf("%w: got %d, want %d", e.ErrVectorCount, len(raw), len(imgs)))
	}

	vectors := make([]domain.Vector, len(raw))
	for i, r := range raw {
		if len(r) == 0 {
			return nil, e.Wrap(op, fmt.Errorf("%w: image %d", e.ErrEmptyVectors, i))
		}
		if len(r) != len(raw[0]) {
			return nil, e.Wrap(op, fmt.Errorf("%w: dimension %d differs from %d", e.ErrMalformedResult, len(r), len(raw[0])))
		}

		v, err := domain.Vector(r).Normalize()
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("%w: image %d", e.ErrZeroVector, i))
		}
		vectors[i] = v
	}

	return vectors, nil
}
