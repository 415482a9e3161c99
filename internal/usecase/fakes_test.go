package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/shopspring/decimal"
)

// memRow — строка in-memory каталога.
type memRow struct {
	id          int64
	name        string
	price       decimal.Decimal
	imageURL    string
	productLink string
	category    string
	embedding   *domain.Vector
	embeddedURL string
}

// memCatalog реализует CatalogRepository в памяти с той же семантикой, что и SQL-реализации.
type memCatalog struct {
	mu         sync.Mutex
	partitions map[string][]*memRow
	writes     int
	writeCalls int
	listErr    map[string]error
	writeErr   func(call int) error
	scanErr    error
	browseErr  error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		partitions: make(map[string][]*memRow),
		listErr:    make(map[string]error),
	}
}

func (m *memCatalog) add(partition string, id int64, url string, embedding domain.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := &memRow{id: id, name: "product", price: decimal.RequireFromString("199.90"), imageURL: url}
	if embedding != nil {
		v := embedding
		row.embedding = &v
		row.embeddedURL = url
	}
	m.partitions[partition] = append(m.partitions[partition], row)
}

func (m *memCatalog) ListPending(_ context.Context, partition string, includePopulated bool) ([]domain.PendingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.listErr[partition]; err != nil {
		return nil, err
	}

	var out []domain.PendingItem
	for _, r := range m.partitions[partition] {
		if r.imageURL == "" {
			continue
		}
		stale := r.embeddedURL != "" && r.embeddedURL != r.imageURL
		if includePopulated || r.embedding == nil || stale {
			out = append(out, domain.PendingItem{ID: r.id, ImageURL: r.imageURL})
		}
	}

	return out, nil
}

func (m *memCatalog) WriteEmbeddings(_ context.Context, partition string, items []domain.ProductEmbedding) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++
	if m.writeErr != nil {
		if err := m.writeErr(m.writeCalls); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, item := range items {
		for _, r := range m.partitions[partition] {
			if r.id == item.ID {
				v := append(domain.Vector(nil), item.Vector...)
				r.embedding = &v
				r.embeddedURL = item.ImageURL
				n++
			}
		}
	}
	m.writes += n

	return n, nil
}

func (m *memCatalog) ScanAll(_ context.Context, partition string) ([]domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scanErr != nil {
		return nil, m.scanErr
	}

	out := make([]domain.ProductRecord, 0, len(m.partitions[partition]))
	for _, r := range m.partitions[partition] {
		rec := domain.NewProductRecord(r.id, partition, r.name, r.price, r.imageURL, r.embedding)
		rec.ProductLink = r.productLink
		rec.Category = r.category
		out = append(out, *rec)
	}

	return out, nil
}

// addCategorized добавляет строку без эмбеддинга с категорией и ссылкой на товар.
func (m *memCatalog) addCategorized(partition string, id int64, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partitions[partition] = append(m.partitions[partition], &memRow{
		id:          id,
		name:        "product",
		price:       decimal.RequireFromString("199.90"),
		imageURL:    "img.jpg",
		productLink: "https://shop.example/p/" + strconv.FormatInt(id, 10),
		category:    category,
	})
}

func (m *memCatalog) ListByCategory(_ context.Context, partition string, aliases []string) ([]domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browseErr != nil {
		return nil, m.browseErr
	}

	out := make([]domain.ProductRecord, 0)
	for _, r := range m.partitions[partition] {
		for _, a := range aliases {
			if strings.Contains(strings.ToLower(r.category), strings.ToLower(a)) {
				rec := domain.NewProductRecord(r.id, partition, r.name, r.price, r.imageURL, nil)
				rec.ProductLink = r.productLink
				rec.Category = r.category
				out = append(out, *rec)
				break
			}
		}
	}

	return out, nil
}

// taggedImage кодирует числовой тег в цвете пикселя, чтобы фейки могли отличать изображения.
func taggedImage(tag uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: tag, G: 1, B: 1, A: 255})
		}
	}

	return img
}

func imageTag(img image.Image) uint8 {
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	return uint8(r >> 8)
}

// fakeDownloader отдаёт изображение по URL или ошибку для URL из failing.
type fakeDownloader struct {
	mu      sync.Mutex
	images  map[string]uint8
	failing map[string]bool
	calls   int
}

func (f *fakeDownloader) Download(ctx context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failing[url] {
		return nil, e.Download("fakeDownloader.Download", errors.New("404"))
	}

	return taggedImage(f.images[url]), nil
}

// fakeEmbedder строит вектор из тега изображения. Теги из bad ломают векторизацию.
type fakeEmbedder struct {
	mu         sync.Mutex
	dim        int
	bad        map[uint8]bool
	batchCalls int
	singleCall int
	vectors    map[uint8]domain.Vector
}

func (f *fakeEmbedder) vectorFor(img image.Image) (domain.Vector, error) {
	tag := imageTag(img)
	if f.bad[tag] {
		return nil, e.ErrZeroVector
	}
	if v, ok := f.vectors[tag]; ok {
		return v.Normalize()
	}

	v := make(domain.Vector, f.dim)
	for i := range v {
		v[i] = float32((int(tag)+i)%7 + 1)
	}

	return v.Normalize()
}

func (f *fakeEmbedder) Embed(ctx context.Context, img image.Image) (domain.Vector, error) {
	f.mu.Lock()
	f.singleCall++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return f.vectorFor(img)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, imgs []image.Image) ([]domain.Vector, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Vector, len(imgs))
	for i, img := range imgs {
		v, err := f.vectorFor(img)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

// fakeLocalizer возвращает результат по тегу изображения.
type fakeLocalizer struct {
	calls    int
	notFound map[uint8]bool
	failing  map[uint8]bool
	region   domain.Region
}

func (f *fakeLocalizer) Locate(_ context.Context, img image.Image) (domain.Region, bool, error) {
	f.calls++

	tag := imageTag(img)
	if f.failing[tag] {
		return domain.Region{}, false, e.Model("fakeLocalizer.Locate", e.ErrLocalization)
	}
	if f.notFound[tag] {
		return domain.Region{}, false, nil
	}
	if f.region.Valid() {
		return f.region, true, nil
	}

	return domain.NewRegion(2, 2, 10, 10), true, nil
}

// fakeDecoder декодирует первый байт как тег изображения.
type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 || data[0] == 0 {
		return nil, e.ErrUnreadableImage
	}

	return taggedImage(data[0]), nil
}

// memCache — in-memory CacheRepository.
type memCache struct {
	generation int64
	entries    map[string][]domain.Match
	bumps      int
	failing    bool
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]domain.Match)}
}

func (c *memCache) Generation(context.Context) (int64, error) {
	if c.failing {
		return 0, errors.New("redis down")
	}
	return c.generation, nil
}

func (c *memCache) BumpGeneration(context.Context) error {
	c.generation++
	c.bumps++
	return nil
}

func (c *memCache) GetMatches(_ context.Context, generation int64, key string) ([]domain.Match, bool, error) {
	m, ok := c.entries[cacheEntryKey(generation, key)]
	return m, ok, nil
}

func (c *memCache) SetMatches(_ context.Context, generation int64, key string, matches []domain.Match) error {
	c.entries[cacheEntryKey(generation, key)] = matches
	return nil
}

func cacheEntryKey(generation int64, key string) string {
	return decimal.NewFromInt(generation).String() + ":" + key
}

// recordingPublisher запоминает опубликованные отчёты.
type recordingPublisher struct {
	reports []domain.PartitionReport
}

func (p *recordingPublisher) PublishReport(_ context.Context, _ string, report domain.PartitionReport) error {
	p.reports = append(p.reports, report)
	return nil
}

// recordingMirror запоминает выгруженные в зеркало векторы.
type recordingMirror struct {
	points int
	err    error
}

func (m *recordingMirror) Upsert(_ context.Context, _ string, items []domain.ProductEmbedding) error {
	if m.err != nil {
		return m.err
	}
	m.points += len(items)
	return nil
}
