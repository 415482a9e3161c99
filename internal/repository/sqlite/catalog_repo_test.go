package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/logger"
)

func newTestRepo(t *testing.T, partitions ...string) *CatalogRepo {
	t.Helper()

	repo, err := Open(filepath.Join(t.TempDir(), "catalog.db"), logger.NewDiscardLogger())
	if err != nil {
		t.Skip("sqlite not available:", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	for _, p := range partitions {
		if err := repo.EnsurePartition(context.Background(), p); err != nil {
			t.Fatalf("EnsurePartition(%s) error: %v", p, err)
		}
	}

	return repo
}

func insert(t *testing.T, repo *CatalogRepo, partition string, id int64, imageURL any, vector any) {
	t.Helper()

	query := fmt.Sprintf(`INSERT INTO %s (id, name, price, image_url, feature_vector, embedded_image_url) VALUES (?, ?, ?, ?, ?, ?)`, table(partition))
	var embeddedURL any
	if vector != nil {
		embeddedURL = imageURL
	}
	if _, err := repo.db.Exec(query, id, fmt.Sprintf("item %d", id), "1299.50", imageURL, vector, embeddedURL); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestListPendingOnlyMissing(t *testing.T) {
	repo := newTestRepo(t, "hm_products")
	insert(t, repo, "hm_products", 3, "c.jpg", nil)
	insert(t, repo, "hm_products", 1, "a.jpg", nil)
	insert(t, repo, "hm_products", 2, "b.jpg", "[1,0]")
	insert(t, repo, "hm_products", 4, nil, nil)
	insert(t, repo, "hm_products", 5, "", nil)

	ctx := context.Background()
	missing, err := repo.ListPending(ctx, "hm_products", false)
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(missing) != 2 || missing[0].ID != 1 || missing[1].ID != 3 {
		t.Fatalf("missing = %+v, want ids 1,3 in order", missing)
	}

	all, err := repo.ListPending(ctx, "hm_products", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %+v, want 3 rows with image_url", all)
	}
}

func TestWriteEmbeddingsIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, "zara_products")
	insert(t, repo, "zara_products", 1, "a.jpg", nil)
	insert(t, repo, "zara_products", 2, "b.jpg", nil)

	ctx := context.Background()
	items := []domain.ProductEmbedding{
		domain.NewProductEmbedding(1, "a.jpg", domain.Vector{0.6, 0.8}),
		domain.NewProductEmbedding(2, "b.jpg", domain.Vector{1, 0}),
		domain.NewProductEmbedding(99, "ghost.jpg", domain.Vector{0, 1}),
	}

	for i := 0; i < 2; i++ {
		n, err := repo.WriteEmbeddings(ctx, "zara_products", items)
		if err != nil {
			t.Fatalf("WriteEmbeddings() error: %v", err)
		}
		if n != 2 {
			t.Fatalf("updated = %d, want 2", n)
		}
	}

	pending, err := repo.ListPending(ctx, "zara_products", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after write = %+v", pending)
	}

	records, err := repo.ScanAll(ctx, "zara_products")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || !records[0].HasEmbedding() || (*records[0].Embedding)[1] != 0.8 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Price.String() != "1299.5" || records[0].Partition != "zara_products" {
		t.Fatalf("unexpected record fields: %+v", records[0])
	}
}

func TestListPendingDetectsChangedImage(t *testing.T) {
	repo := newTestRepo(t, "hm_products")
	insert(t, repo, "hm_products", 1, "a.jpg", "[1,0]")

	if _, err := repo.db.Exec(`UPDATE "hm_products" SET image_url = 'a-v2.jpg' WHERE id = 1`); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.ListPending(context.Background(), "hm_products", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ImageURL != "a-v2.jpg" {
		t.Fatalf("pending = %+v, want the row with changed image", pending)
	}
}

func TestScanAllSkipsUndecodableVector(t *testing.T) {
	repo := newTestRepo(t, "weekday_products")
	insert(t, repo, "weekday_products", 1, "a.jpg", "{broken")
	insert(t, repo, "weekday_products", 2, "b.jpg", "[0,1]")

	records, err := repo.ScanAll(context.Background(), "weekday_products")
	if err != nil {
		t.Fatalf("ScanAll() error: %v", err)
	}
	if len(records) != 2 || records[0].HasEmbedding() || !records[1].HasEmbedding() {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestMissingPartitionIsStorageError(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.ScanAll(context.Background(), "follestad_products"); err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestScanAllKeepsRowWithBadPrice(t *testing.T) {
	repo := newTestRepo(t, "hm_products")
	insert(t, repo, "hm_products", 1, "a.jpg", "[1,0]")
	insert(t, repo, "hm_products", 2, "b.jpg", "[0,1]")

	if _, err := repo.db.Exec(`UPDATE "hm_products" SET price = '499,-' WHERE id = 2`); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ScanAll(context.Background(), "hm_products")
	if err != nil {
		t.Fatalf("ScanAll() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v, want both rows", records)
	}
	if !records[1].Price.IsZero() || !records[1].HasEmbedding() {
		t.Fatalf("row with bad price must keep its embedding with zero price: %+v", records[1])
	}
}

func TestScanAllReturnsProductLink(t *testing.T) {
	repo := newTestRepo(t, "zara_products")
	insert(t, repo, "zara_products", 1, "a.jpg", "[1,0]")

	if _, err := repo.db.Exec(`UPDATE "zara_products" SET product_link = 'https://zara.example/p/1', category = 'Jacket' WHERE id = 1`); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ScanAll(context.Background(), "zara_products")
	if err != nil {
		t.Fatal(err)
	}
	if records[0].ProductLink != "https://zara.example/p/1" || records[0].Category != "Jacket" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestListByCategory(t *testing.T) {
	repo := newTestRepo(t, "hm_products")
	for id, category := range map[int64]string{1: "Hoodiessweatshirts", 2: "Jeans", 3: "hoodie", 4: "100%_cotton"} {
		insert(t, repo, "hm_products", id, fmt.Sprintf("%d.jpg", id), nil)
		if _, err := repo.db.Exec(`UPDATE "hm_products" SET category = ? WHERE id = ?`, category, id); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	got, err := repo.ListByCategory(ctx, "hm_products", []string{"Hoodie", "Hoodiessweatshirts"})
	if err != nil {
		t.Fatalf("ListByCategory() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("hoodies = %+v, want ids 1,3", got)
	}
	if got[0].HasEmbedding() || got[0].Category != "Hoodiessweatshirts" {
		t.Fatalf("unexpected record: %+v", got[0])
	}

	got, err = repo.ListByCategory(ctx, "hm_products", []string{"%"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 4 {
		t.Fatalf("literal %% must be escaped, got %+v", got)
	}
}

func TestEnsurePartitionIsRepeatable(t *testing.T) {
	repo := newTestRepo(t, "hm_products")

	if err := repo.EnsurePartition(context.Background(), "hm_products"); err != nil {
		t.Fatalf("second EnsurePartition() error: %v", err)
	}
}
