package infrastructure

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/DRSN-tech/garment-search/pkg/e"
	"golang.org/x/image/webp"
)

// JPEGQuality — качество JPEG, с которым изображения отправляются в ML-сервис.
const JPEGQuality = 92

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp, gif. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// DecodeImage декодирует jpeg, png, gif или webp. Формат определяется по сигнатуре, а не по расширению.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", e.ErrEmptyImage
	}

	var (
		img    image.Image
		format string
		err    error
	)
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		format = "image/jpeg"
		img, err = jpeg.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		format = "image/png"
		img, err = png.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("GIF8")):
		format = "image/gif"
		img, err = gif.Decode(bytes.NewReader(data))
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		format = "image/webp"
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		return nil, "", e.ErrUnreadableImage
	}
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", e.ErrUnreadableImage, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, e.ErrUnreadableImage
	}

	return img, format, nil
}

// ToRGB переводит изображение в 8-битный RGBA с началом координат в (0,0).
// Альфа-канал накладывается на белый фон.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	return dst
}

// EncodeJPEG кодирует изображение в JPEG для передачи в ML-сервис.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ToRGB(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ImageDecoder декодирует пользовательские изображения с ограничением размера.
type ImageDecoder struct {
	maxBytes int64
}

func NewImageDecoder(maxBytes int64) *ImageDecoder {
	return &ImageDecoder{maxBytes: maxBytes}
}

func (d *ImageDecoder) Decode(data []byte) (image.Image, error) {
	const op = "ImageDecoder.Decode"

	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, e.Wrap(op, e.ErrImageTooLarge)
	}

	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return img, nil
}
