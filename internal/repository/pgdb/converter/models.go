package converter

// ProductModel — строка партиции каталога. Цена и вектор читаются как текст.
type ProductModel struct {
	ID            int64
	Name          string
	Price         string
	ImageURL      string
	ProductLink   string
	Category      string
	FeatureVector *string // JSON-массив или NULL
}

// EmbeddingModel — параметры UPDATE одной строки при записи чекпоинта.
type EmbeddingModel struct {
	ID               int64
	FeatureVector    string
	EmbeddedImageURL string
}
