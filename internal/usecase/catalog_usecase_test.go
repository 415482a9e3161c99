package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

func newTestCatalogUC(catalog *memCatalog) *CatalogUseCase {
	return NewCatalogUC(catalog, []string{"hm_products", "zara_products"}, logger.NewDiscardLogger())
}

func TestBrowseMapsCategoryAliases(t *testing.T) {
	catalog := newMemCatalog()
	catalog.addCategorized("hm_products", 1, "Hoodiessweatshirts")
	catalog.addCategorized("hm_products", 2, "Jeans")
	catalog.addCategorized("zara_products", 3, "hoodie")
	catalog.addCategorized("zara_products", 4, "Tshirt")

	items, err := newTestCatalogUC(catalog).Browse(context.Background(), NewBrowseReq([]string{"zara_products", "hm_products"}, "Hoodie"))
	if err != nil {
		t.Fatalf("Browse() error: %v", err)
	}

	if len(items) != 2 || items[0].ID != 3 || items[1].ID != 1 {
		t.Fatalf("items = %+v, want ids 3,1 in requested partition order", items)
	}
	if items[0].Partition != "zara_products" || items[0].ProductLink != "https://shop.example/p/3" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestBrowseUnknownCategoryIsLiteral(t *testing.T) {
	catalog := newMemCatalog()
	catalog.addCategorized("hm_products", 1, "Kjole")
	catalog.addCategorized("hm_products", 2, "Jeans")

	items, err := newTestCatalogUC(catalog).Browse(context.Background(), NewBrowseReq([]string{"hm_products"}, "Kjole"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestBrowseSkipsUnknownAndDuplicatePartitions(t *testing.T) {
	catalog := newMemCatalog()
	catalog.addCategorized("hm_products", 1, "Jeans")
	catalog.addCategorized("secret_table", 2, "Jeans")

	items, err := newTestCatalogUC(catalog).Browse(context.Background(),
		NewBrowseReq([]string{"secret_table", " hm_products ", "hm_products"}, "Jeans"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestBrowseErrors(t *testing.T) {
	cases := []struct {
		name    string
		req     *BrowseReq
		scanErr error
		want    error
		cat     e.Category
	}{
		{"no category", NewBrowseReq([]string{"hm_products"}, " "), nil, e.ErrMissingBrowseParams, e.CategoryInput},
		{"no tables", NewBrowseReq(nil, "Jeans"), nil, e.ErrMissingBrowseParams, e.CategoryInput},
		{"only unknown tables", NewBrowseReq([]string{"users"}, "Jeans"), nil, e.ErrNoValidPartitions, e.CategoryInput},
		{"storage", NewBrowseReq([]string{"hm_products"}, "Jeans"), errors.New("conn reset"), e.ErrStorage, e.CategoryStorage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := newMemCatalog()
			catalog.browseErr = tc.scanErr

			items, err := newTestCatalogUC(catalog).Browse(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if e.CategoryOf(err) != tc.cat || items != nil {
				t.Fatalf("category = %q, items = %v", e.CategoryOf(err), items)
			}
		})
	}
}

func TestBrowseEmptyResultIsNotNil(t *testing.T) {
	items, err := newTestCatalogUC(newMemCatalog()).Browse(context.Background(), NewBrowseReq([]string{"hm_products"}, "Jeans"))
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("items = %#v, want empty slice", items)
	}
}
