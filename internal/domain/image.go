package domain

// ImageObject описывает изображение каталога в зеркале S3.
type ImageObject struct {
	Bucket      string
	ObjectKey   string
	Bytes       []byte
	ContentType string
}

func NewImageObject(bucket string, objectKey string, data []byte, contentType string) *ImageObject {
	return &ImageObject{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		ContentType: contentType,
	}
}
