package usecase

import "github.com/DRSN-tech/garment-search/internal/domain"

// EMBEDDING USECASE

// RunEmbeddingReq — запрос на прогон пакетной генерации эмбеддингов.
// FullRefresh=false обрабатывает только строки без вектора, true — все строки.
type RunEmbeddingReq struct {
	FullRefresh bool
}

// EmbeddingOptions — параметры пайплайна.
type EmbeddingOptions struct {
	DownloadWorkers int
	BatchSize       int
	CheckpointSize  int
	UseLocalizer    bool
	CropPadding     int
}

// SEARCH USECASE

// SearchReq — запрос поиска похожих товаров по фото.
type SearchReq struct {
	Image []byte
}

// SearchRes — найденные товары в порядке убывания похожести.
type SearchRes struct {
	Matches []domain.Match
	Cached  bool
}

// SearchOptions — параметры поиска.
type SearchOptions struct {
	TopK int
}

// CATALOG USECASE

// BrowseReq — просмотр каталога: партиции и основная категория.
type BrowseReq struct {
	Partitions []string
	Category   string
}

// MAPPERS
func NewRunEmbeddingReq(fullRefresh bool) *RunEmbeddingReq {
	return &RunEmbeddingReq{FullRefresh: fullRefresh}
}

func NewSearchReq(image []byte) *SearchReq {
	return &SearchReq{Image: image}
}

func NewSearchRes(matches []domain.Match, cached bool) *SearchRes {
	return &SearchRes{
		Matches: matches,
		Cached:  cached,
	}
}

func NewBrowseReq(partitions []string, category string) *BrowseReq {
	return &BrowseReq{Partitions: partitions, Category: category}
}
