package http

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/garment-search/internal/usecase"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

type CatalogHandler struct {
	catalogUsecase usecase.CatalogUC
	logger         logger.Logger
}

func NewCatalogHandler(catalogUsecase usecase.CatalogUC, logger logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalogUsecase: catalogUsecase, logger: logger}
}

// products
//
//	@Summary		Товары по категории
//	@Description	Возвращает товары выбранных партиций, категория которых совпадает с одним из написаний основной категории
//	@Tags			catalog
//	@Produce		json
//	@Param			tables		query		string					true	"Партиции через запятую"
//	@Param			category	query		string					true	"Основная категория, например Hoodie"
//	@Success		200			{array}		domain.CatalogItem
//	@Failure		400			{object}	ErrorResponse	"Не заданы параметры или нет допустимых партиций"
//	@Failure		500			{object}	ErrorResponse	"Ошибка хранилища"
//	@Router			/api/v1/products [get]
func (h *CatalogHandler) products(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var tables []string
	if raw := query.Get("tables"); raw != "" {
		tables = strings.Split(raw, ",")
	}

	items, err := h.catalogUsecase.Browse(r.Context(), usecase.NewBrowseReq(tables, query.Get("category")))
	if err != nil {
		code, _ := ToHTTPResponse(err)
		if code >= http.StatusInternalServerError {
			h.logger.Errorf(err, "browse failed")
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, items)
}
