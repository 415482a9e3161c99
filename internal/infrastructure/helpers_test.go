package infrastructure

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/garment-search/pkg/e"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, format, err := DecodeImage(pngBytes(t, 4, 3))
	if err != nil {
		t.Fatalf("DecodeImage() error: %v", err)
	}
	if format != "image/png" || img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("format=%s bounds=%v", format, img.Bounds())
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, _, err := DecodeImage([]byte("definitely not an image"))
	if !errors.Is(err, e.ErrUnreadableImage) {
		t.Fatalf("DecodeImage() = %v, want ErrUnreadableImage", err)
	}

	_, _, err = DecodeImage([]byte("\x89PNG\r\n\x1a\ntruncated"))
	if !errors.Is(err, e.ErrUnreadableImage) {
		t.Fatalf("DecodeImage(truncated) = %v, want ErrUnreadableImage", err)
	}
}

func TestEncodeJPEGDropsAlpha(t *testing.T) {
	src, _, err := DecodeImage(pngBytes(t, 8, 8))
	if err != nil {
		t.Fatal(err)
	}

	data, err := EncodeJPEG(src)
	if err != nil {
		t.Fatalf("EncodeJPEG() error: %v", err)
	}

	img, format, err := DecodeImage(data)
	if err != nil || format != "image/jpeg" {
		t.Fatalf("round trip: format=%s err=%v", format, err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
		t.Fatalf("transparent pixel must become white, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestImageDecoderLimit(t *testing.T) {
	d := NewImageDecoder(16)
	if _, err := d.Decode(pngBytes(t, 4, 4)); !errors.Is(err, e.ErrImageTooLarge) {
		t.Fatalf("Decode() = %v, want ErrImageTooLarge", err)
	}
	if e.CategoryOf(e.ErrImageTooLarge) != e.CategoryInput {
		t.Fatal("too large image must be an input error")
	}
}

func TestGetExtensionFromMIME(t *testing.T) {
	if ext, err := GetExtensionFromMIME("image/webp"); err != nil || ext != "webp" {
		t.Fatalf("webp: %s %v", ext, err)
	}
	if _, err := GetExtensionFromMIME("text/html"); !errors.Is(err, e.ErrUnsupportedMediaType) {
		t.Fatalf("text/html: %v", err)
	}
}
