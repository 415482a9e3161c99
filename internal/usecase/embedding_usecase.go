package usecase

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EmbeddingUseCase заполняет эмбеддинги каталога: скачивание, (опционально) локализация,
// векторизация батчами и запись чекпоинтами.
type EmbeddingUseCase struct {
	catalog    CatalogRepository
	downloader ImageDownloader
	localizer  Localizer
	embedder   Embedder
	mirror     EmbeddingMirrorRepository
	cache      CacheRepository
	publisher  ReportPublisher
	partitions []string
	opts       EmbeddingOptions
	logger     logger.Logger
	now        func() time.Time
}

func NewEmbeddingUC(
	catalog CatalogRepository,
	downloader ImageDownloader,
	localizer Localizer,
	embedder Embedder,
	mirror EmbeddingMirrorRepository,
	cache CacheRepository,
	publisher ReportPublisher,
	partitions []string,
	opts EmbeddingOptions,
	logger logger.Logger,
) *EmbeddingUseCase {
	return &EmbeddingUseCase{
		catalog:    catalog,
		downloader: downloader,
		localizer:  localizer,
		embedder:   embedder,
		mirror:     mirror,
		cache:      cache,
		publisher:  publisher,
		partitions: partitions,
		opts:       normalizeEmbeddingOptions(opts),
		logger:     logger,
		now:        time.Now,
	}
}

// preparedImage — скачанное (и, возможно, обрезанное) изображение строки каталога.
type preparedImage struct {
	item domain.PendingItem
	img  image.Image
}

// Run выполняет один прогон по всем партициям. Ошибки отдельных строк и партиций попадают в отчёт;
// ошибка возвращается только при отмене контекста.
func (u *EmbeddingUseCase) Run(ctx context.Context, req *RunEmbeddingReq) (*domain.BatchRun, error) {
	const op = "EmbeddingUseCase.Run"

	run := domain.NewBatchRun(uuid.NewString(), req.FullRefresh, u.now())
	u.logger.Infof("embedding run %s started, full_refresh=%t, partitions=%v", run.ID, req.FullRefresh, u.partitions)

	for _, partition := range u.partitions {
		if err := ctx.Err(); err != nil {
			run.FinishedAt = u.now()
			return run, e.Wrap(op, err)
		}

		report := u.runPartition(ctx, partition, req.FullRefresh)
		run.Partitions = append(run.Partitions, report)

		if report.Error != "" {
			u.logger.Warnf("partition %s failed after %d persisted: %s", partition, report.Persisted, report.Error)
		} else {
			u.logger.Infof("partition %s done: considered=%d downloaded=%d skipped=%d embedded=%d failed=%d persisted=%d",
				partition, report.Considered, report.Downloaded, report.Skipped, report.Embedded, report.Failed, report.Persisted)
		}

		u.afterPartition(ctx, run.ID, report)
	}

	run.FinishedAt = u.now()
	if err := ctx.Err(); err != nil {
		return run, e.Wrap(op, err)
	}

	return run, nil
}

// runPartition обрабатывает одну партицию окнами размера чекпоинта, чтобы в памяти
// одновременно находилось не больше одного окна декодированных изображений.
func (u *EmbeddingUseCase) runPartition(ctx context.Context, partition string, fullRefresh bool) domain.PartitionReport {
	const op = "EmbeddingUseCase.runPartition"

	started := u.now()
	report := domain.PartitionReport{Partition: partition}
	defer func() {
		report.Duration = u.now().Sub(started)
	}()

	items, err := u.catalog.ListPending(ctx, partition, fullRefresh)
	if err != nil {
		report.Error = e.Storage(op, err).Error()
		return report
	}
	report.Considered = len(items)
	if len(items) == 0 {
		return report
	}

	buffer := make([]domain.ProductEmbedding, 0, u.opts.CheckpointSize)
	window := u.opts.CheckpointSize

	for start := 0; start < len(items); start += window {
		if err := ctx.Err(); err != nil {
			report.Error = e.Wrap(op, err).Error()
			return report
		}

		end := min(start+window, len(items))

		prepared := u.download(ctx, items[start:end])
		report.Downloaded += len(prepared)
		report.Skipped += (end - start) - len(prepared)

		if u.opts.UseLocalizer {
			prepared = u.localize(ctx, prepared, &report)
		}

		embedded, err := u.embed(ctx, prepared, &report)
		if err != nil {
			report.Error = e.Wrap(op, err).Error()
			return report
		}

		for _, emb := range embedded {
			buffer = append(buffer, emb)
			if len(buffer) >= u.opts.CheckpointSize {
				if err := u.flush(ctx, partition, buffer, &report); err != nil {
					report.Error = err.Error()
					return report
				}
				buffer = buffer[:0]
			}
		}
	}

	if len(buffer) > 0 {
		if err := u.flush(ctx, partition, buffer, &report); err != nil {
			report.Error = err.Error()
		}
	}

	return report
}

// download параллельно скачивает изображения ограниченным пулом воркеров.
// Каждый воркер пишет только в свою ячейку results, поэтому порядок строк сохраняется.
func (u *EmbeddingUseCase) download(ctx context.Context, items []domain.PendingItem) []preparedImage {
	results := make([]image.Image, len(items))

	var g errgroup.Group
	g.SetLimit(u.opts.DownloadWorkers)
	for i, item := range items {
		g.Go(func() error {
			img, err := u.downloader.Download(ctx, item.ImageURL)
			if err != nil {
				u.logger.Debugf("skip product %d: %v", item.ID, err)
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = g.Wait()

	prepared := make([]preparedImage, 0, len(items))
	for i, img := range results {
		if img != nil {
			prepared = append(prepared, preparedImage{item: items[i], img: img})
		}
	}

	return prepared
}

// localize последовательно обрезает изображения по найденному региону.
// При ошибке или отсутствии региона остаётся полное изображение.
func (u *EmbeddingUseCase) localize(ctx context.Context, prepared []preparedImage, report *domain.PartitionReport) []preparedImage {
	for i := range prepared {
		if ctx.Err() != nil {
			return prepared
		}

		region, found, err := u.localizer.Locate(ctx, prepared[i].img)
		if err != nil {
			u.logger.Warnf("localization failed for product %d, using full image: %v", prepared[i].item.ID, err)
			report.LocalizationFallbacks++
			continue
		}
		if !found {
			report.LocalizationFallbacks++
			continue
		}

		prepared[i].img = region.Pad(u.opts.CropPadding, prepared[i].img.Bounds()).Crop(prepared[i].img)
		report.Localized++
	}

	return prepared
}

// embed векторизует изображения батчами. Если батч падает, его элементы векторизуются по одному,
// чтобы ошибка одной строки не теряла остальные.
func (u *EmbeddingUseCase) embed(ctx context.Context, prepared []preparedImage, report *domain.PartitionReport) ([]domain.ProductEmbedding, error) {
	out := make([]domain.ProductEmbedding, 0, len(prepared))

	for start := 0; start < len(prepared); start += u.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		chunk := prepared[start:min(start+u.opts.BatchSize, len(prepared))]
		imgs := make([]image.Image, len(chunk))
		for i, p := range chunk {
			imgs[i] = p.img
		}

		vectors, err := u.embedder.EmbedBatch(ctx, imgs)
		if err == nil && len(vectors) != len(chunk) {
			err = e.ErrVectorCount
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			u.logger.Warnf("batch of %d failed, embedding one by one: %v", len(chunk), err)
			vectors = u.embedOneByOne(ctx, chunk)
		}

		for i, vector := range vectors {
			if vector == nil {
				report.Failed++
				continue
			}
			out = append(out, domain.NewProductEmbedding(chunk[i].item.ID, chunk[i].item.ImageURL, vector))
			report.Embedded++
		}
	}

	return out, nil
}

func (u *EmbeddingUseCase) embedOneByOne(ctx context.Context, chunk []preparedImage) []domain.Vector {
	vectors := make([]domain.Vector, len(chunk))
	for i, p := range chunk {
		vector, err := u.embedder.Embed(ctx, p.img)
		if err != nil {
			u.logger.Warnf("embedding failed for product %d: %v", p.item.ID, err)
			continue
		}
		vectors[i] = vector
	}

	return vectors
}

// flush записывает чекпоинт. Незаписанный буфер при отмене теряется и будет обработан следующим прогоном.
func (u *EmbeddingUseCase) flush(ctx context.Context, partition string, buffer []domain.ProductEmbedding, report *domain.PartitionReport) error {
	const op = "EmbeddingUseCase.flush"

	if err := ctx.Err(); err != nil {
		return e.Wrap(op, err)
	}

	n, err := u.catalog.WriteEmbeddings(ctx, partition, buffer)
	if err != nil {
		return e.Storage(op, err)
	}
	report.Persisted += n
	report.Checkpoints++

	if u.mirror != nil {
		if err := u.mirror.Upsert(ctx, partition, buffer); err != nil {
			u.logger.Warnf("failed to mirror checkpoint of %s: %v", partition, e.Wrap(op, err))
		}
	}

	return nil
}

// afterPartition сбрасывает кэш поиска и публикует отчёт. Обе операции необязательны.
func (u *EmbeddingUseCase) afterPartition(ctx context.Context, runID string, report domain.PartitionReport) {
	const op = "EmbeddingUseCase.afterPartition"

	// Отчёт публикуется и после отмены прогона
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if report.Persisted > 0 && u.cache != nil {
		if err := u.cache.BumpGeneration(bgCtx); err != nil {
			u.logger.Warnf("failed to invalidate search cache: %v", e.Wrap(op, err))
		}
	}

	if u.publisher != nil {
		if err := u.publisher.PublishReport(bgCtx, runID, report); err != nil && !errors.Is(err, context.Canceled) {
			u.logger.Warnf("failed to publish report for %s: %v", report.Partition, e.Wrap(op, err))
		}
	}
}

func normalizeEmbeddingOptions(opts EmbeddingOptions) EmbeddingOptions {
	const (
		defaultWorkers        = 16
		defaultBatchSize      = 64
		defaultCheckpointSize = 800
	)

	if opts.DownloadWorkers <= 0 {
		opts.DownloadWorkers = defaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.CheckpointSize <= 0 {
		opts.CheckpointSize = defaultCheckpointSize
	}
	if opts.CropPadding < 0 {
		opts.CropPadding = 0
	}

	return opts
}
