package http

import (
	"net/http"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/usecase"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	maxImageSize  int64
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, maxImageSize int64, logger logger.Logger) *SearchHandler {
	if maxImageSize <= 0 {
		maxImageSize = 15 << 20
	}

	return &SearchHandler{searchUsecase: searchUsecase, maxImageSize: maxImageSize, logger: logger}
}

// search
//
//	@Summary		Поиск похожих товаров по фото
//	@Description	Находит предмет одежды на фото и возвращает до 10 самых похожих товаров каталога
//	@Tags			search
//	@Accept			multipart/form-data
//	@Accept			image/jpeg
//	@Produce		json
//	@Param			image	formData	file			false	"Фото с предметом одежды"
//	@Success		200		{array}		domain.Match	"Найденные товары по убыванию похожести"
//	@Failure		400		{object}	ErrorResponse	"Некорректное изображение или одежда не найдена"
//	@Failure		500		{object}	ErrorResponse	"Ошибка хранилища или модели"
//	@Router			/api/v1/search [post]
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	data, err := readImage(w, r, h.maxImageSize)
	if err != nil {
		h.logger.Warnf("%d search request rejected: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	res, err := h.searchUsecase.Search(r.Context(), usecase.NewSearchReq(data))
	if err != nil {
		code, _ := ToHTTPResponse(err)
		if code >= http.StatusInternalServerError {
			h.logger.Errorf(err, "search failed")
		} else {
			h.logger.Infof("search rejected: %v", err)
		}
		WriteError(w, err)
		return
	}

	cache := "MISS"
	if res.Cached {
		cache = "HIT"
	}
	w.Header().Set("X-Cache", cache)

	h.logger.Debugf("search returned %d matches in %v (cache %s)", len(res.Matches), time.Since(started), cache)
	WriteSuccess(w, http.StatusOK, matchesOrEmpty(res.Matches))
}

// partitions
//
//	@Summary	Партиции каталога
//	@Tags		search
//	@Produce	json
//	@Success	200	{array}	string	"Партиции в порядке сканирования"
//	@Router		/api/v1/partitions [get]
func (h *SearchHandler) partitions(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.searchUsecase.Partitions())
}

func matchesOrEmpty(matches []domain.Match) []domain.Match {
	if matches == nil {
		return []domain.Match{}
	}
	return matches
}
