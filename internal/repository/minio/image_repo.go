package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует хранилище копий изображений каталога поверх MinIO.
// Объекты больше maxObjectSize не читаются и считаются отсутствующими.
type ImageRepo struct {
	mc            *minio.Client
	bucket        string
	maxObjectSize int64
}

func NewImageRepo(mc *minio.Client, bucket string, maxObjectSize int64) *ImageRepo {
	if maxObjectSize <= 0 {
		maxObjectSize = 15 << 20
	}

	return &ImageRepo{
		mc:            mc,
		bucket:        bucket,
		maxObjectSize: maxObjectSize,
	}
}

// Upload загружает изображение в MinIO и возвращает ключ объекта.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.ImageObject) (string, error) {
	reader := bytes.NewReader(image.Bytes)

	info, err := i.mc.PutObject(ctx, i.bucket, image.ObjectKey, reader, int64(len(image.Bytes)), minio.PutObjectOptions{
		ContentType: image.ContentType,
	})
	if err != nil {
		return "", e.Storage(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Get читает объект. found=false, если объекта нет или он больше maxObjectSize.
func (i *ImageRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := i.mc.GetObject(ctx, i.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, e.Storage(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	return readLimited(obj, i.maxObjectSize)
}

func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, e.Storage(whereami.WhereAmI(), err)
	}
	if int64(len(data)) > limit {
		return nil, false, nil
	}

	return data, true, nil
}
