// Package downloader скачивает изображения каталога по URL.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/jitter"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

// ImageMirror — локальная копия скачанных изображений (MinIO).
type ImageMirror interface {
	Lookup(ctx context.Context, url string) ([]byte, bool)
	Store(url string, data []byte, contentType string)
}

type Options struct {
	Timeout   time.Duration // на одну попытку
	Retries   int           // дополнительные попытки для временных ошибок
	MaxBytes  int64
	UserAgent string
}

// Downloader скачивает и декодирует изображения. Безопасен для параллельного использования.
type Downloader struct {
	client *http.Client
	mirror ImageMirror
	opts   Options
	logger logger.Logger
}

// New создаёт загрузчик. mirror может быть nil.
func New(client *http.Client, mirror ImageMirror, opts Options, logger logger.Logger) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 15 << 20
	}

	return &Downloader{
		client: client,
		mirror: mirror,
		opts:   opts,
		logger: logger,
	}
}

// retryableError помечает ошибки, после которых имеет смысл повторить запрос.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

func (d *Downloader) Download(ctx context.Context, url string) (image.Image, error) {
	const op = "Downloader.Download"

	if img, ok := d.lookupMirror(ctx, url); ok {
		return img, nil
	}

	data, err := d.fetchWithRetries(ctx, url)
	if err != nil {
		return nil, e.Download(op, err)
	}

	img, format, err := infrastructure.DecodeImage(data)
	if err != nil {
		return nil, e.Download(op, err)
	}

	if d.mirror != nil {
		d.mirror.Store(url, data, format)
	}

	return img, nil
}

// lookupMirror ищет копию в зеркале с тем же таймаутом, что и одна попытка скачивания.
// Копия больше MaxBytes или нечитаемая считается промахом.
func (d *Downloader) lookupMirror(ctx context.Context, url string) (image.Image, bool) {
	if d.mirror == nil {
		return nil, false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	data, ok := d.mirror.Lookup(lookupCtx, url)
	if !ok || int64(len(data)) > d.opts.MaxBytes {
		return nil, false
	}

	img, _, err := infrastructure.DecodeImage(data)
	if err != nil {
		d.logger.Debugf("mirror copy of %s is unreadable: %v", url, err)
		return nil, false
	}

	return img, true
}

func (d *Downloader) fetchWithRetries(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= d.opts.Retries; attempt++ {
		data, err := d.fetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) || attempt == d.opts.Retries {
			break
		}

		sleepTime := jitter.ExponentialBackoff(250*time.Millisecond, 2*time.Second, attempt, jitter.DefaultJitter)
		d.logger.Debugf("download %s failed, retrying in %v: %v", url, sleepTime, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: %d", e.ErrBadStatus, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err: err}
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.opts.MaxBytes+1))
	if err != nil {
		return nil, &retryableError{err: err}
	}
	if int64(len(data)) > d.opts.MaxBytes {
		return nil, e.ErrImageTooLarge
	}

	return data, nil
}
