package ml_service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/jitter"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Полные имена методов ML-сервиса. Сообщения передаются как google.protobuf.Struct.
const (
	DetectMethod = "/ml.GarmentModel/Detect"
	EmbedMethod  = "/ml.GarmentModel/Embed"
)

// MLService клиент для взаимодействия с внешним ML-сервисом (детектор одежды и модель эмбеддингов)
type MLService struct {
	conn           grpc.ClientConnInterface
	maxRetries     int
	requestTimeout time.Duration
	logger         logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, maxRetries int, requestTimeout time.Duration, logger logger.Logger) *MLService {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &MLService{
		conn:           conn,
		maxRetries:     maxRetries,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Detect возвращает рамки-кандидаты для одного JPEG-изображения.
func (m *MLService) Detect(ctx context.Context, jpeg []byte) ([]domain.Detection, error) {
	const op = "MLService.Detect"

	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(jpeg),
	})
	if err != nil {
		return nil, e.Model(op, err)
	}

	res, err := m.invoke(ctx, DetectMethod, req)
	if err != nil {
		return nil, e.Model(op, err)
	}

	detections, err := parseDetections(res)
	if err != nil {
		return nil, e.Model(op, err)
	}

	return detections, nil
}

// Embed возвращает по одному ненормированному вектору на каждое изображение в порядке запроса.
func (m *MLService) Embed(ctx context.Context, jpegs [][]byte) ([][]float32, error) {
	const op = "MLService.Embed"

	images := make([]any, len(jpegs))
	for i, img := range jpegs {
		images[i] = base64.StdEncoding.EncodeToString(img)
	}

	req, err := structpb.NewStruct(map[string]any{"images": images})
	if err != nil {
		return nil, e.Model(op, err)
	}

	res, err := m.invoke(ctx, EmbedMethod, req)
	if err != nil {
		return nil, e.Model(op, err)
	}

	vectors, err := parseVectors(res)
	if err != nil {
		return nil, e.Model(op, err)
	}
	if len(vectors) != len(jpegs) {
		return nil, e.Model(op, fmt.Errorf("%w: got %d, want %d", e.ErrVectorCount, len(vectors), len(jpegs)))
	}

	return vectors, nil
}

// invoke выполняет unary-вызов с retry-логикой и экспоненциальной задержкой.
// Повторяются только временные ошибки транспорта.
func (m *MLService) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	const (
		op         = "MLService.invoke"
		baseJitter = 200 * time.Millisecond
		maxJitter  = 5 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		res, err := m.call(ctx, method, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !retryable(err) || attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(baseJitter, maxJitter, attempt, jitter.DefaultJitter)
		m.logger.Warnf("%s failed, retrying in %v (attempt %d): %v", method, sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	return nil, e.Wrap(op, lastErr)
}

func (m *MLService) call(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}

	res := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, method, req, res); err != nil {
		return nil, err
	}

	return res, nil
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// parseDetections разбирает ответ вида {"detections": [{"x1","y1","x2","y2","score"}]}.
func parseDetections(res *structpb.Struct) ([]domain.Detection, error) {
	field, ok := res.GetFields()["detections"]
	if !ok {
		return nil, nil
	}

	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: detections is not a list", e.ErrMalformedResult)
	}

	detections := make([]domain.Detection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		box := v.GetStructValue()
		if box == nil {
			return nil, fmt.Errorf("%w: detection %d is not an object", e.ErrMalformedResult, i)
		}

		var d domain.Detection
		for name, dst := range map[string]*float64{"x1": &d.X1, "y1": &d.Y1, "x2": &d.X2, "y2": &d.Y2, "score": &d.Score} {
			num, ok := box.GetFields()[name]
			if !ok {
				return nil, fmt.Errorf("%w: detection %d has no %s", e.ErrMalformedResult, i, name)
			}
			*dst = num.GetNumberValue()
		}
		detections = append(detections, d)
	}

	return detections, nil
}

// parseVectors разбирает ответ вида {"vectors": [[...], ...]}.
func parseVectors(res *structpb.Struct) ([][]float32, error) {
	list := res.GetFields()["vectors"].GetListValue()
	if list == nil {
		return nil, e.ErrEmptyVectors
	}

	vectors := make([][]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		values := v.GetListValue()
		if values == nil || len(values.GetValues()) == 0 {
			return nil, fmt.Errorf("%w: vector %d", e.ErrEmptyVectors, i)
		}

		vector := make([]float32, len(values.GetValues()))
		for j, x := range values.GetValues() {
			vector[j] = float32(x.GetNumberValue())
		}
		vectors[i] = vector
	}

	return vectors, nil
}
