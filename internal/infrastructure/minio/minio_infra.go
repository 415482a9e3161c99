package minio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/pkg/jitter"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

// ImageObjectRepository — хранилище объектов (MinIO).
type ImageObjectRepository interface {
	Upload(ctx context.Context, image *domain.ImageObject) (string, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// MinioInfrastructure хранит копии скачанных изображений каталога, чтобы повторные прогоны
// не ходили на CDN магазинов. Запись выполняется в фоне.
type MinioInfrastructure struct {
	repo        ImageObjectRepository
	bucket      string
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
	maxAttempts int
}

func NewMinioInfrastructure(repo ImageObjectRepository, bucket string, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		repo:        repo,
		bucket:      bucket,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		maxAttempts: 3,
	}
}

// ObjectKey возвращает ключ объекта для URL изображения.
func ObjectKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "catalog/" + hex.EncodeToString(sum[:])
}

// Lookup возвращает сохранённую копию изображения. Ошибки хранилища считаются промахом.
func (m *MinioInfrastructure) Lookup(ctx context.Context, url string) ([]byte, bool) {
	const op = "MinioInfrastructure.Lookup"

	data, found, err := m.repo.Get(ctx, ObjectKey(url))
	if err != nil {
		m.logger.Debugf("%s: mirror miss for %s: %v", op, url, err)
		return nil, false
	}

	return data, found && len(data) > 0
}

// Store запускает фоновую запись копии изображения с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) Store(url string, data []byte, contentType string) {
	if _, err := infrastructure.GetExtensionFromMIME(contentType); err != nil {
		return
	}

	m.wg.Add(1)
	go m.upload(domain.NewImageObject(m.bucket, ObjectKey(url), data, contentType))
}

func (m *MinioInfrastructure) upload(image *domain.ImageObject) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.upload"

	// Создаём контекст с таймаутом на основе shutdownCtx
	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		_, err := m.repo.Upload(ctx, image)
		if err == nil {
			return
		}

		if attempt == m.maxAttempts-1 {
			m.logger.Warnf("%s: giving up on %s: %v", op, image.ObjectKey, err)
			return
		}

		if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 10*time.Second, attempt, jitter.DefaultJitter)); err != nil {
			m.logger.Warnf("%s: interrupted by shutdown, key=%s", op, image.ObjectKey)
			return
		}
	}
}

// WaitForUploads ожидает завершения фоновых записей с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForUploads(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio uploads timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
