package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/jimlawless/whereami"
)

// ErrorResponse — тело ответа с ошибкой. Code — категория ошибки.
type ErrorResponse struct {
	Code  e.Category `json:"code"`
	Error string     `json:"error"`
}

func NewErrorResponse(code e.Category, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:  code,
		Error: message,
	}
}

// ToHTTPResponse переводит ошибку в HTTP-статус и тело ответа.
// Ошибки ввода отдаются клиенту как есть, остальные скрываются за общим сообщением.
func ToHTTPResponse(err error) (int, *ErrorResponse) {
	category := e.CategoryOf(err)

	switch category {
	case e.CategoryInput:
		return http.StatusBadRequest, NewErrorResponse(category, inputMessage(err))
	case e.CategoryStorage, e.CategoryModel:
		return http.StatusInternalServerError, NewErrorResponse(category, e.ErrInternalServerError.Error())
	default:
		return http.StatusInternalServerError, NewErrorResponse(e.CategoryInternal, e.ErrInternalServerError.Error())
	}
}

// inputMessage возвращает текст ошибки ввода без цепочки операций.
func inputMessage(err error) string {
	for _, known := range []error{
		e.ErrNoObjectDetected,
		e.ErrUnreadableImage,
		e.ErrEmptyImage,
		e.ErrImageTooLarge,
		e.ErrUnsupportedMediaType,
		e.ErrMissingBrowseParams,
		e.ErrNoValidPartitions,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return e.ErrInput.Error()
}

func WriteError(w http.ResponseWriter, err error) {
	code, body := ToHTTPResponse(err)
	WriteSuccess(w, code, body)
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// readImage читает изображение из multipart-поля image или из тела запроса целиком.
func readImage(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, error) {
	const (
		multipartOverhead = 1 << 20
		maxMemory         = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err = readMultipartImage(r, maxSize, maxMemory)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageTooLarge)
		}
		return nil, err
	}

	if len(data) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrEmptyImage)
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	if _, err := infrastructure.GetExtensionFromMIME(mimeType); err != nil {
		return nil, e.Wrap(mimeType, err)
	}

	return data, nil
}

func readMultipartImage(r *http.Request, maxSize, maxMemory int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrUnreadableImage)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrEmptyImage)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrUnreadableImage)
	}

	return data, nil
}
