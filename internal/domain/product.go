package domain

import "github.com/shopspring/decimal"

// ProductRecord описывает товар из партиции каталога (таблица одного магазина).
// Embedding == nil означает, что эмбеддинг ещё не посчитан.
type ProductRecord struct {
	ID          int64
	Partition   string
	Name        string
	Price       decimal.Decimal
	ImageURL    string
	ProductLink string // страница товара у магазина
	Category    string
	Embedding   *Vector
}

func NewProductRecord(id int64, partition string, name string, price decimal.Decimal, imageURL string, embedding *Vector) *ProductRecord {
	return &ProductRecord{
		ID:        id,
		Partition: partition,
		Name:      name,
		Price:     price,
		ImageURL:  imageURL,
		Embedding: embedding,
	}
}

// HasEmbedding сообщает, есть ли у записи сохранённый вектор.
func (p *ProductRecord) HasEmbedding() bool {
	return p.Embedding != nil && len(*p.Embedding) > 0
}

// PendingItem — строка каталога, которой нужен (новый) эмбеддинг.
type PendingItem struct {
	ID       int64
	ImageURL string
}

// ProductEmbedding — посчитанный вектор для записи, готовый к сохранению.
type ProductEmbedding struct {
	ID       int64
	ImageURL string // URL, по которому скачано изображение
	Vector   Vector
}

func NewProductEmbedding(id int64, imageURL string, vector Vector) ProductEmbedding {
	return ProductEmbedding{
		ID:       id,
		ImageURL: imageURL,
		Vector:   vector,
	}
}

// Match — результат поиска похожих товаров.
type Match struct {
	ID          int64           `json:"id"`
	Partition   string          `json:"partition"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	ProductLink string          `json:"product_link"`
	Similarity  float64         `json:"similarity"`
}

func NewMatch(record *ProductRecord, similarity float64) Match {
	return Match{
		ID:          record.ID,
		Partition:   record.Partition,
		Name:        record.Name,
		Price:       record.Price,
		ImageURL:    record.ImageURL,
		ProductLink: record.ProductLink,
		Similarity:  similarity,
	}
}

// CatalogItem — товар в выдаче просмотра каталога по категории.
type CatalogItem struct {
	ID          int64           `json:"id"`
	Partition   string          `json:"partition"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	ProductLink string          `json:"product_link"`
	Category    string          `json:"category"`
}

func NewCatalogItem(record *ProductRecord) CatalogItem {
	return CatalogItem{
		ID:          record.ID,
		Partition:   record.Partition,
		Name:        record.Name,
		Price:       record.Price,
		ImageURL:    record.ImageURL,
		ProductLink: record.ProductLink,
		Category:    record.Category,
	}
}
