package domain

import (
	"fmt"
	"image"
	"image/draw"
)

// Region — прямоугольник (X1,Y1)-(X2,Y2) внутри изображения, X1<X2, Y1<Y2.
type Region struct {
	X1, Y1, X2, Y2 int
}

// Detection — кандидат детектора: рамка и уверенность модели.
type Detection struct {
	X1, Y1, X2, Y2 float64
	Score          float64
}

func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Rect переводит регион в image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Area возвращает площадь региона в пикселях.
func (r Region) Area() int {
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

// Valid проверяет инвариант X1<X2, Y1<Y2.
func (r Region) Valid() bool {
	return r.X1 < r.X2 && r.Y1 < r.Y2
}

// Within проверяет, что регион целиком лежит в bounds.
func (r Region) Within(bounds image.Rectangle) bool {
	return r.Valid() && r.Rect().In(bounds)
}

// Clamp обрезает регион по bounds.
func (r Region) Clamp(bounds image.Rectangle) Region {
	return Region{
		X1: max(r.X1, bounds.Min.X),
		Y1: max(r.Y1, bounds.Min.Y),
		X2: min(r.X2, bounds.Max.X),
		Y2: min(r.Y2, bounds.Max.Y),
	}
}

// Pad расширяет регион на pad пикселей с каждой стороны и обрезает по bounds.
func (r Region) Pad(pad int, bounds image.Rectangle) Region {
	return Region{X1: r.X1 - pad, Y1: r.Y1 - pad, X2: r.X2 + pad, Y2: r.Y2 + pad}.Clamp(bounds)
}

// Crop вырезает регион из изображения. Регион предварительно обрезается по границам изображения.
func (r Region) Crop(img image.Image) image.Image {
	rect := r.Clamp(img.Bounds()).Rect()
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}
