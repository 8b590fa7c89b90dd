package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/models"
)

type flakySearch struct {
	source       models.Source
	pages        [][]RawDoc
	failures     map[int]int // page -> remaining failures
	calls        int
	lastPageSize int
}

func (f *flakySearch) Source() models.Source { return f.source }

func (f *flakySearch) Search(ctx context.Context, term string, page, pageSize int) ([]RawDoc, error) {
	f.calls++
	f.lastPageSize = pageSize
	if f.failures[page] > 0 {
		f.failures[page]--
		return nil, fmt.Errorf("upstream 503")
	}
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func TestFetchPageWithRetry(t *testing.T) {
	ctx := context.Background()
	doc := RawDoc{"publication-number": "1"}

	t.Run("transient failure recovers on retry", func(t *testing.T) {
		conn := &flakySearch{
			source:   models.SourceEU,
			pages:    [][]RawDoc{{doc}},
			failures: map[int]int{1: 1},
		}
		batch, err := fetchPageWithRetry(ctx, conn, "", 1, 50)
		if err != nil {
			t.Fatalf("retry should have recovered: %v", err)
		}
		if len(batch) != 1 {
			t.Errorf("batch = %v", batch)
		}
		if conn.calls != 2 {
			t.Errorf("calls = %d, want 2", conn.calls)
		}
	})

	t.Run("persistent failure stops after one retry", func(t *testing.T) {
		conn := &flakySearch{
			source:   models.SourceEU,
			failures: map[int]int{1: 5},
		}
		_, err := fetchPageWithRetry(ctx, conn, "", 1, 50)
		if err == nil {
			t.Fatal("expected error after exhausted retry")
		}
		if conn.calls != 2 {
			t.Errorf("calls = %d, want exactly 2", conn.calls)
		}
	})
}

func TestFetchConfigOptions(t *testing.T) {
	t.Run("defaults when unset", func(t *testing.T) {
		opts := FetchConfig{}.Options()
		if opts.PageSize != 100 || opts.MaxPages != 50 {
			t.Errorf("opts = %+v", opts)
		}
		if opts.PageDelay != 300*time.Millisecond {
			t.Errorf("PageDelay = %v, want 300ms", opts.PageDelay)
		}
	})

	t.Run("registry values override", func(t *testing.T) {
		opts := FetchConfig{PageDelayMS: 50, PageSize: 10, MaxPages: 3}.Options()
		if opts.PageSize != 10 || opts.MaxPages != 3 || opts.PageDelay != 50*time.Millisecond {
			t.Errorf("opts = %+v", opts)
		}
	})
}

func TestCollectPagesHonorsFetchOptions(t *testing.T) {
	ctx := context.Background()
	doc := RawDoc{"publication-number": "1"}
	imp := NewImporter(nil, nil, nil, nil, zap.NewNop())

	t.Run("max pages caps pagination", func(t *testing.T) {
		conn := &flakySearch{
			source: models.SourceEU,
			pages:  [][]RawDoc{{doc}, {doc}, {doc}},
		}
		items, pages, errStr := imp.collectPages(ctx, conn, models.SourceEU, "", FetchOptions{PageSize: 10, MaxPages: 2})
		if errStr != "" {
			t.Fatalf("unexpected error %q", errStr)
		}
		if pages != 2 || len(items) != 2 {
			t.Errorf("pages = %d items = %d, want 2 and 2", pages, len(items))
		}
		if conn.lastPageSize != 10 {
			t.Errorf("pageSize = %d, want the configured 10", conn.lastPageSize)
		}
	})

	t.Run("empty page ends pagination early", func(t *testing.T) {
		conn := &flakySearch{
			source: models.SourceEU,
			pages:  [][]RawDoc{{doc}},
		}
		items, pages, errStr := imp.collectPages(ctx, conn, models.SourceEU, "", FetchOptions{PageSize: 10, MaxPages: 5})
		if errStr != "" {
			t.Fatalf("unexpected error %q", errStr)
		}
		if pages != 1 || len(items) != 1 {
			t.Errorf("pages = %d items = %d, want 1 and 1", pages, len(items))
		}
	})

	t.Run("failed page keeps earlier pages", func(t *testing.T) {
		conn := &flakySearch{
			source:   models.SourceEU,
			pages:    [][]RawDoc{{doc}, {doc}},
			failures: map[int]int{2: 5},
		}
		items, pages, errStr := imp.collectPages(ctx, conn, models.SourceEU, "", FetchOptions{PageSize: 10, MaxPages: 5})
		if errStr == "" {
			t.Fatal("expected a page-level error")
		}
		if pages != 1 || len(items) != 1 {
			t.Errorf("pages = %d items = %d, want the first page kept", pages, len(items))
		}
	})
}

func TestRicherRaw(t *testing.T) {
	stored := map[string]interface{}{"a": 1, "b": 2, "c": 3}
	incoming := map[string]interface{}{"a": 9, "d": 4}

	t.Run("stored richer payload kept with new keys grafted", func(t *testing.T) {
		got := richerRaw(stored, incoming)
		if len(got) != 4 {
			t.Fatalf("merged = %v", got)
		}
		if got["a"] != 9 {
			t.Errorf("fresh value should win for shared keys, got %v", got["a"])
		}
		if got["c"] != 3 {
			t.Errorf("stored-only key lost: %v", got)
		}
	})

	t.Run("empty incoming never discards stored", func(t *testing.T) {
		got := richerRaw(stored, nil)
		if len(got) != 3 {
			t.Errorf("richerRaw = %v, want stored payload", got)
		}
	})

	t.Run("equal or richer incoming replaces", func(t *testing.T) {
		bigger := map[string]interface{}{"a": 1, "b": 2, "c": 3, "d": 4}
		got := richerRaw(stored, bigger)
		if len(got) != 4 {
			t.Errorf("richerRaw = %v", got)
		}
	})
}
