package usecase

import (
	"context"
	"image"

	"github.com/DRSN-tech/garment-search/internal/domain"
)

// Localizer находит регион с одним предметом одежды. found=false, если подходящего региона нет.
type Localizer interface {
	Locate(ctx context.Context, img image.Image) (region domain.Region, found bool, err error)
}

// Embedder превращает изображение в нормированный вектор.
// EmbedBatch численно эквивалентен поштучным вызовам Embed.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) (domain.Vector, error)
	EmbedBatch(ctx context.Context, imgs []image.Image) ([]domain.Vector, error)
}

// ImageDownloader скачивает и декодирует изображение каталога.
type ImageDownloader interface {
	Download(ctx context.Context, url string) (image.Image, error)
}

// ImageDecoder декодирует байты пользовательского изображения.
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// ReportPublisher публикует отчёт по партиции после прогона.
type ReportPublisher interface {
	PublishReport(ctx context.Context, runID string, report domain.PartitionReport) error
}
