// Package vision содержит локализатор одежды и модель эмбеддингов поверх внешнего ML-сервиса.
package vision

import (
	"context"

	"github.com/DRSN-tech/garment-search/internal/domain"
)

// ModelClient — вызовы ML-сервиса. Реализуется ml_service.MLService.
type ModelClient interface {
	Detect(ctx context.Context, jpeg []byte) ([]domain.Detection, error)
	Embed(ctx context.Context, jpegs [][]byte) ([][]float32, error)
}

// Runtime — общий ресурс модели: все вызовы детектора и эмбеддера выполняются по одному.
// Создаётся один раз на процесс и передаётся в NewLocalizer и NewEmbedder.
type Runtime struct {
	client ModelClient
	gate   chan struct{}
}

func NewRuntime(client ModelClient) *Runtime {
	return &Runtime{
		client: client,
		gate:   make(chan struct{}, 1),
	}
}

func (r *Runtime) acquire(ctx context.Context) error {
	select {
	case r.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) release() {
	<-r.gate
}

func (r *Runtime) detect(ctx context.Context, jpeg []byte) ([]domain.Detection, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	return r.client.Detect(ctx, jpeg)
}

func (r *Runtime) embed(ctx context.Context, jpegs [][]byte) ([][]float32, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	return r.client.Embed(ctx, jpegs)
}
