package converter

// MatchRedisModel — результат поиска в кэше. Цена хранится строкой, чтобы не терять точность.
type MatchRedisModel struct {
	ID          int64   `json:"id"`
	Partition   string  `json:"partition"`
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	ImageURL    string  `json:"image_url"`
	ProductLink string  `json:"product_link"`
	Similarity  float64 `json:"similarity"`
}
