package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// pointNamespace — пространство имён для детерминированных UUID точек зеркала.
var pointNamespace = uuid.MustParse("6f1d7c52-3b8e-4a51-9a0e-2f4c1b7d9e60")

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// EmbeddingPoint — вектор товара в зеркале (Qdrant). ID детерминирован по партиции и id товара,
// поэтому повторная выгрузка перезаписывает ту же точку.
type EmbeddingPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbeddingPoint(partition string, emb ProductEmbedding) *EmbeddingPoint {
	return &EmbeddingPoint{
		ID:      PointID(partition, emb.ID),
		Vector:  emb.Vector,
		Payload: NewPayload(partition, emb.ID, emb.ImageURL),
	}
}

// PointID возвращает UUID точки для товара партиции.
func PointID(partition string, productID int64) string {
	return uuid.NewSHA1(pointNamespace, []byte(partition+":"+strconv.FormatInt(productID, 10))).String()
}

func NewPayload(partition string, productID int64, imageURL string) Payload {
	return Payload{
		"partition":   partition,
		"product_id":  productID,
		"image_url":   imageURL,
		"embedded_at": time.Now().UTC().UnixNano(),
	}
}
