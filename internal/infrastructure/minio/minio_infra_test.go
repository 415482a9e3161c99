package minio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

type memObjects struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	uploads  int
}

func (m *memObjects) Upload(_ context.Context, image *domain.ImageObject) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	if m.failures > 0 {
		m.failures--
		return "", errors.New("slow down")
	}
	m.objects[image.ObjectKey] = image.Bytes
	return image.ObjectKey, nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	return data, ok, nil
}

func TestStoreThenLookup(t *testing.T) {
	repo := &memObjects{objects: make(map[string][]byte)}
	mirror := NewMinioInfrastructure(repo, "catalog-images", logger.NewDiscardLogger(), context.Background())
	url := "https://cdn.example.com/a.jpg"

	if _, found := mirror.Lookup(context.Background(), url); found {
		t.Fatal("empty mirror must miss")
	}

	mirror.Store(url, []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mirror.WaitForUploads(ctx); err != nil {
		t.Fatal(err)
	}

	data, found := mirror.Lookup(context.Background(), url)
	if !found || len(data) != 3 {
		t.Fatalf("Lookup() = %v, %v", data, found)
	}
}

func TestStoreSkipsUnsupportedTypes(t *testing.T) {
	repo := &memObjects{objects: make(map[string][]byte)}
	mirror := NewMinioInfrastructure(repo, "catalog-images", logger.NewDiscardLogger(), context.Background())

	mirror.Store("https://cdn.example.com/a.html", []byte("<html>"), "text/html")
	if err := mirror.WaitForUploads(context.Background()); err != nil {
		t.Fatal(err)
	}
	if repo.uploads != 0 {
		t.Fatalf("uploads = %d, want 0", repo.uploads)
	}
}

func TestObjectKeyIsStable(t *testing.T) {
	a := ObjectKey("https://cdn.example.com/a.jpg")
	if a != ObjectKey("https://cdn.example.com/a.jpg") || a == ObjectKey("https://cdn.example.com/b.jpg") {
		t.Fatal("object keys must be deterministic per url")
	}
}
