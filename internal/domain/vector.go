package domain

import (
	"encoding/json"
	"errors"
	"math"
)

// ErrZeroNorm возвращается при нормализации нулевого (или нечислового) вектора.
var ErrZeroNorm = errors.New("vector has zero or non-finite norm")

// Vector — эмбеддинг изображения фиксированной размерности D.
// Хранимые и поисковые векторы нормированы по L2, поэтому косинусная близость равна скалярному произведению.
type Vector []float32

// Dim возвращает размерность вектора.
func (v Vector) Dim() int {
	return len(v)
}

// Norm возвращает евклидову норму вектора.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

// Normalize возвращает новый вектор единичной длины.
func (v Vector) Normalize() (Vector, error) {
	norm := v.Norm()
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrZeroNorm
	}

	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}

	return out, nil
}

// Dot — скалярное произведение. Вызывающий обязан проверить совпадение размерностей.
func (v Vector) Dot(other Vector) float64 {
	var sum float64
	for i := range v {
		sum += float64(v[i]) * float64(other[i])
	}

	return sum
}

// MarshalVector кодирует вектор в JSON-массив (формат хранения в каталоге).
func MarshalVector(v Vector) (string, error) {
	data, err := json.Marshal([]float32(v))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// UnmarshalVector декодирует JSON-массив чисел в вектор.
func UnmarshalVector(raw string) (Vector, error) {
	var v []float32
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}

	return v, nil
}
