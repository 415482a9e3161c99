package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/usecase"
	"github.com/DRSN-tech/garment-search/pkg/e"
)

type fakeCatalogUC struct {
	items []domain.CatalogItem
	err   error
	got   *usecase.BrowseReq
}

func (f *fakeCatalogUC) Browse(_ context.Context, req *usecase.BrowseReq) ([]domain.CatalogItem, error) {
	f.got = req
	return f.items, f.err
}

func TestProductsPassesQuery(t *testing.T) {
	uc := &fakeCatalogUC{items: []domain.CatalogItem{{ID: 3, Partition: "zara_products", ProductLink: "https://zara.example/p/3", Category: "hoodie"}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?tables=zara_products,hm_products&category=Hoodie", nil)
	newTestRouterWithCatalog(&fakeSearchUC{}, uc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if uc.got == nil || uc.got.Category != "Hoodie" || len(uc.got.Partitions) != 2 || uc.got.Partitions[0] != "zara_products" {
		t.Fatalf("request = %+v", uc.got)
	}

	var items []domain.CatalogItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ProductLink != "https://zara.example/p/3" {
		t.Fatalf("items = %+v", items)
	}
}

func TestProductsMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing params", e.Wrap("CatalogUseCase.Browse", e.ErrMissingBrowseParams), http.StatusBadRequest, e.ErrMissingBrowseParams.Error()},
		{"no valid tables", e.Wrap("CatalogUseCase.Browse", e.ErrNoValidPartitions), http.StatusBadRequest, e.ErrNoValidPartitions.Error()},
		{"storage", e.Storage("CatalogUseCase.Browse", errors.New("conn reset")), http.StatusInternalServerError, e.ErrInternalServerError.Error()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			newTestRouterWithCatalog(&fakeSearchUC{}, &fakeCatalogUC{err: tc.err}, nil).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if body := decodeError(t, rec); body.Error != tc.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tc.wantError)
			}
		})
	}
}
