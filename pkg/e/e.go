package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Категории ошибок
	ErrInput             = errors.New("invalid input")
	ErrStorage           = errors.New("storage failure")
	ErrModel             = errors.New("model failure")
	ErrDownload          = errors.New("download failed")
	ErrLocalization      = errors.New("localization failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// 400 Bad Request
	ErrNoObjectDetected     = fmt.Errorf("%w: no garment detected in image", ErrInput)
	ErrUnreadableImage      = fmt.Errorf("%w: unreadable image", ErrInput)
	ErrEmptyImage           = fmt.Errorf("%w: image is empty", ErrInput)
	ErrImageTooLarge        = fmt.Errorf("%w: image is too large", ErrInput)
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrInput)
	ErrMissingBrowseParams  = fmt.Errorf("%w: tables and category are required", ErrInput)
	ErrNoValidPartitions    = fmt.Errorf("%w: no valid tables selected", ErrInput)

	// Ошибки модели
	ErrZeroVector      = fmt.Errorf("%w: model returned zero vector", ErrModel)
	ErrVectorCount     = fmt.Errorf("%w: vector count does not match image count", ErrModel)
	ErrEmptyVectors    = fmt.Errorf("%w: empty vectors", ErrModel)
	ErrMalformedResult = fmt.Errorf("%w: malformed model response", ErrModel)

	// Ошибки загрузки изображений
	ErrBadStatus = fmt.Errorf("%w: unexpected status code", ErrDownload)

	// Конфигурация
	ErrIncorrectEnvVariable = errors.New("incorrect env variable")
	ErrInvalidPartition     = errors.New("invalid partition name")
	ErrNoPartitions         = errors.New("no catalog partitions configured")

	// 500 Internal Server Error
	ErrInternalServerError = errors.New("internal server error")
)

// Category — категория ошибки для внешних потребителей.
type Category string

const (
	CategoryInput    Category = "InputError"
	CategoryStorage  Category = "StorageError"
	CategoryModel    Category = "ModelError"
	CategoryInternal Category = "InternalError"
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Storage помечает ошибку как ошибку хранилища.
func Storage(op string, err error) error {
	if err == nil || errors.Is(err, ErrStorage) {
		return wrapNil(op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Model помечает ошибку как ошибку ML-модели.
func Model(op string, err error) error {
	if err == nil || errors.Is(err, ErrModel) {
		return wrapNil(op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrModel, err)
}

// Download помечает ошибку как ошибку загрузки изображения.
func Download(op string, err error) error {
	if err == nil || errors.Is(err, ErrDownload) {
		return wrapNil(op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDownload, err)
}

// CategoryOf определяет категорию ошибки. Ошибки ввода проверяются первыми.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return CategoryInput
	case errors.Is(err, ErrStorage):
		return CategoryStorage
	case errors.Is(err, ErrModel), errors.Is(err, ErrLocalization):
		return CategoryModel
	default:
		return CategoryInternal
	}
}

func wrapNil(op string, err error) error {
	if err == nil {
		return nil
	}
	return Wrap(op, err)
}
