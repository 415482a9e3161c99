package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
)

type fakeModel struct {
	detections []domain.Detection
	detectErr  error
	vectors    [][]float32
	embedErr   error

	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (f *fakeModel) enter() func() {
	n := f.active.Add(1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(f.delay)
	return func() { f.active.Add(-1) }
}

func (f *fakeModel) Detect(context.Context, []byte) ([]domain.Detection, error) {
	defer f.enter()()
	return f.detections, f.detectErr
}

func (f *fakeModel) Embed(_ context.Context, jpegs [][]byte) ([][]float32, error) {
	defer f.enter()()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.vectors != nil {
		return f.vectors, nil
	}

	out := make([][]float32, len(jpegs))
	for i := range out {
		out[i] = []float32{3, 4}
	}
	return out, nil
}

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestSelectRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	cases := []struct {
		name       string
		detections []domain.Detection
		want       domain.Region
		found      bool
	}{
		{
			name:       "highest score wins",
			detections: []domain.Detection{{X1: 0, Y1: 0, X2: 50, Y2: 50, Score: 0.8}, {X1: 10, Y1: 10, X2: 20, Y2: 20, Score: 0.95}},
			want:       domain.NewRegion(10, 10, 20, 20),
			found:      true,
		},
		{
			name:       "tie goes to larger area",
			detections: []domain.Detection{{X1: 10, Y1: 10, X2: 20, Y2: 20, Score: 0.9}, {X1: 0, Y1: 0, X2: 60, Y2: 60, Score: 0.9}},
			want:       domain.NewRegion(0, 0, 60, 60),
			found:      true,
		},
		{
			name:       "threshold is exclusive",
			detections: []domain.Detection{{X1: 0, Y1: 0, X2: 50, Y2: 50, Score: 0.7}},
		},
		{
			name:       "clamped to bounds",
			detections: []domain.Detection{{X1: -5.5, Y1: 90, X2: 120, Y2: 130, Score: 0.99}},
			want:       domain.NewRegion(0, 90, 100, 100),
			found:      true,
		},
		{
			name:       "degenerate after clamping is discarded",
			detections: []domain.Detection{{X1: 120, Y1: 0, X2: 150, Y2: 40, Score: 0.99}, {X1: 1, Y1: 1, X2: 5, Y2: 5, Score: 0.75}},
			want:       domain.NewRegion(1, 1, 5, 5),
			found:      true,
		},
		{
			name:       "infinite coordinates clamp to edges",
			detections: []domain.Detection{{X1: math.Inf(-1), Y1: 40, X2: math.Inf(1), Y2: 1e300, Score: 0.9}},
			want:       domain.NewRegion(0, 40, 100, 100),
			found:      true,
		},
		{
			name:       "nan coordinate collapses the box",
			detections: []domain.Detection{{X1: 10, Y1: 10, X2: math.NaN(), Y2: 50, Score: 0.9}},
		},
		{
			name:       "nan score ignored",
			detections: []domain.Detection{{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: math.NaN()}},
		},
		{name: "no detections"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := SelectRegion(tc.detections, bounds, DefaultScoreThreshold)
			if found != tc.found {
				t.Fatalf("found = %v, want %v", found, tc.found)
			}
			if found && got != tc.want {
				t.Fatalf("region = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLocateOffsetsByImageOrigin(t *testing.T) {
	model := &fakeModel{detections: []domain.Detection{{X1: 1, Y1: 2, X2: 5, Y2: 6, Score: 0.9}}}
	loc := NewLocalizer(NewRuntime(model), 0)

	sub := image.NewRGBA(image.Rect(0, 0, 50, 50)).SubImage(image.Rect(10, 10, 30, 30))
	region, found, err := loc.Locate(context.Background(), sub)
	if err != nil || !found {
		t.Fatalf("Locate() = %v, %v, %v", region, found, err)
	}
	if region != domain.NewRegion(11, 12, 15, 16) {
		t.Fatalf("region = %v", region)
	}
	if !region.Within(sub.Bounds()) {
		t.Fatal("region must be within image bounds")
	}
}

func TestLocateClampsInfiniteBoxOnSubImage(t *testing.T) {
	model := &fakeModel{detections: []domain.Detection{{X1: 5, Y1: math.Inf(-1), X2: math.Inf(1), Y2: 15, Score: 0.9}}}
	loc := NewLocalizer(NewRuntime(model), 0)

	sub := image.NewRGBA(image.Rect(0, 0, 50, 50)).SubImage(image.Rect(10, 10, 30, 30))
	region, found, err := loc.Locate(context.Background(), sub)
	if err != nil || !found {
		t.Fatalf("Locate() = %v, %v, %v", region, found, err)
	}
	if region != domain.NewRegion(15, 10, 30, 25) {
		t.Fatalf("region = %v", region)
	}
}

func TestLocateWrapsModelFailure(t *testing.T) {
	loc := NewLocalizer(NewRuntime(&fakeModel{detectErr: errors.New("unavailable")}), 0.7)

	_, _, err := loc.Locate(context.Background(), testImage(10, 10))
	if !errors.Is(err, e.ErrLocalization) || e.CategoryOf(err) != e.CategoryModel {
		t.Fatalf("Locate() = %v, want localization model error", err)
	}
}

func TestEmbedNormalizes(t *testing.T) {
	emb := NewEmbedder(NewRuntime(&fakeModel{}))

	single, err := emb.Embed(context.Background(), testImage(4, 4))
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if math.Abs(single.Norm()-1) > 1e-6 || math.Abs(float64(single[0])-0.6) > 1e-6 {
		t.Fatalf("vector = %v", single)
	}

	batch, err := emb.EmbedBatch(context.Background(), []image.Image{testImage(4, 4), testImage(8, 8)})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range batch {
		for i := range v {
			if v[i] != single[i] {
				t.Fatalf("batch vector %v differs from single %v", v, single)
			}
		}
	}
}

func TestEmbedRejectsZeroVector(t *testing.T) {
	emb := NewEmbedder(NewRuntime(&fakeModel{vectors: [][]float32{{0, 0, 0}}}))

	_, err := emb.Embed(context.Background(), testImage(4, 4))
	if !errors.Is(err, e.ErrZeroVector) || !errors.Is(err, e.ErrModel) {
		t.Fatalf("Embed() = %v, want ErrZeroVector", err)
	}
}

func TestEmbedBatchChecksCount(t *testing.T) {
	emb := NewEmbedder(NewRuntime(&fakeModel{vectors: [][]float32{{1, 0}}}))

	_, err := emb.EmbedBatch(context.Background(), []image.Image{testImage(2, 2), testImage(2, 2)})
	if !errors.Is(err, e.ErrVectorCount) {
		t.Fatalf("EmbedBatch() = %v, want ErrVectorCount", err)
	}
}

func TestRuntimeSerializesModelCalls(t *testing.T) {
	model := &fakeModel{
		detections: []domain.Detection{{X1: 0, Y1: 0, X2: 2, Y2: 2, Score: 0.9}},
		delay:      5 * time.Millisecond,
	}
	rt := NewRuntime(model)
	loc := NewLocalizer(rt, 0)
	emb := NewEmbedder(rt)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = loc.Locate(context.Background(), testImage(4, 4))
		}()
		go func() {
			defer wg.Done()
			_, _ = emb.Embed(context.Background(), testImage(4, 4))
		}()
	}
	wg.Wait()

	if got := model.maxActive.Load(); got != 1 {
		t.Fatalf("max concurrent model calls = %d, want 1", got)
	}
}

func TestRuntimeHonoursCancellation(t *testing.T) {
	rt := NewRuntime(&fakeModel{})
	if err := rt.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rt.release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewEmbedder(rt).Embed(ctx, testImage(2, 2))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Embed() = %v, want context.DeadlineExceeded", err)
	}
}
