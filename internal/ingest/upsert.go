package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/models"
)

// Importer drives the upsert pipeline for both sources: fetch pages,
// map items, resolve identity, and write one transaction per batch.
type Importer struct {
	Store          *db.Store
	National       SearchConnector
	NationalDetail DetailConnector
	EU             SearchConnector
	Log            *zap.Logger

	// Fetch holds the per-source pagination knobs from the registry.
	Fetch map[models.Source]FetchOptions
}

func NewImporter(store *db.Store, national SearchConnector, detail DetailConnector, eu SearchConnector, log *zap.Logger) *Importer {
	return &Importer{
		Store:          store,
		National:       national,
		NationalDetail: detail,
		EU:             eu,
		Log:            log,
		Fetch: map[models.Source]FetchOptions{
			models.SourceNational: FetchConfig{}.Options(),
			models.SourceEU:       FetchConfig{}.Options(),
		},
	}
}

// mapItem produces canonical attributes for one raw item. National items
// get a best-effort detail enrichment; a missing detail payload is not an
// error, just a poorer mapping.
func (imp *Importer) mapItem(ctx context.Context, source models.Source, item RawDoc) models.Notice {
	if source == models.SourceEU {
		return MapTED(item)
	}
	var detail RawDoc
	if imp.NationalDetail != nil {
		if nativeID := item.FirstString("publicationWorkspaceId", "publicationId", "id"); nativeID != "" {
			d, err := imp.NationalDetail.Detail(ctx, nativeID)
			if err != nil {
				imp.Log.Warn("detail fetch failed", zap.String("id", nativeID), zap.Error(err))
			} else {
				detail = d
			}
		}
	}
	return MapNational(item, detail)
}

// UpsertBatch runs the identity-resolving upsert for one batch of raw
// items inside a single transaction. Item-level problems are recorded and
// skipped; only a commit failure fails the batch as a whole.
func (imp *Importer) UpsertBatch(ctx context.Context, source models.Source, items []RawDoc) (UpsertResult, error) {
	result := UpsertResult{}

	runID, runErr := imp.Store.CreateImportRun(ctx, source)
	if runErr != nil {
		imp.Log.Warn("failed to create import run", zap.Error(runErr))
	}

	mapped := make([]models.Notice, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, imp.mapItem(ctx, source, item))
	}

	txErr := imp.Store.InTx(ctx, func(tx *db.Store) error {
		for _, n := range mapped {
			if n.SourceID == "" {
				// No natural external key: the row could never be
				// addressed on a later sighting.
				result.Skipped++
				continue
			}
			created, err := upsertOne(ctx, tx, n)
			if err != nil {
				result.Errors = append(result.Errors, ItemError{Identifier: n.SourceID, Message: err.Error()})
				imp.Log.Warn("item upsert failed",
					zap.String("source", string(source)),
					zap.String("source_id", n.SourceID),
					zap.Error(err))
				continue
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if txErr != nil {
		// Full rollback happened: report one batch-level error, no
		// partial counts survive.
		result = UpsertResult{
			Skipped: result.Skipped,
			Errors:  []ItemError{{Identifier: string(source), Message: fmt.Sprintf("batch commit failed: %v", txErr)}},
		}
	}

	if runErr == nil {
		status := "completed"
		if txErr != nil {
			status = "failed"
		}
		if err := imp.Store.CompleteImportRun(ctx, runID, status, result.Created, result.Updated, result.Skipped, len(result.Errors)); err != nil {
			imp.Log.Warn("failed to complete import run", zap.Error(err))
		}
	}

	return result, nil
}

// upsertOne resolves identity and writes one notice. Dossier identity
// outranks the external key: a republication of the same tender under a
// fresh key supersedes the older row instead of duplicating it. Returns
// whether a new row was created.
func upsertOne(ctx context.Context, tx *db.Store, n models.Notice) (bool, error) {
	var existing *models.Notice
	var err error

	if n.DossierID != "" {
		existing, err = tx.GetNoticeByDossier(ctx, n.Source, n.DossierID)
		if err != nil {
			return false, err
		}
	}
	if existing == nil {
		existing, err = tx.GetNoticeBySourceID(ctx, n.Source, n.SourceID)
		if err != nil {
			return false, err
		}
	}

	if existing == nil {
		return true, tx.InsertNotice(ctx, &n)
	}

	if existing.SourceID != n.SourceID {
		// The incoming key may already sit on an earlier dossier-less
		// sighting of the same record. Fold that row away before the
		// update collides with the unique (source, source_id) index.
		stale, err := tx.GetNoticeBySourceID(ctx, n.Source, n.SourceID)
		if err != nil {
			return false, err
		}
		if stale != nil && stale.ID != existing.ID {
			n.RawData = richerRaw(stale.RawData, n.RawData)
			if err := tx.DeleteNotice(ctx, stale.ID); err != nil {
				return false, err
			}
		}
	}

	n.ID = existing.ID
	n.RawData = richerRaw(existing.RawData, n.RawData)
	if err := tx.UpdateNotice(ctx, &n); err != nil {
		return false, err
	}
	return false, tx.ReplaceChildren(ctx, n.ID, n.Lots, n.AdditionalCPVs)
}

// richerRaw keeps the stored payload when the incoming one would lose
// information. raw_data is never discarded, only replaced by a payload of
// the same or greater depth.
func richerRaw(stored, incoming map[string]interface{}) map[string]interface{} {
	if len(incoming) == 0 {
		return stored
	}
	if len(stored) > len(incoming) {
		// The stored payload carries detail enrichment the fresh search
		// hit does not; keep the richer one and graft the new keys on.
		merged := make(map[string]interface{}, len(stored))
		for k, v := range stored {
			merged[k] = v
		}
		for k, v := range incoming {
			merged[k] = v
		}
		return merged
	}
	return incoming
}

// SourceReport is one source's outcome inside a combined import.
type SourceReport struct {
	Result UpsertResult `json:"result"`
	Pages  int          `json:"pages"`
	Err    string       `json:"error,omitempty"`
}

func (imp *Importer) connector(source models.Source) SearchConnector {
	if source == models.SourceNational {
		return imp.National
	}
	return imp.EU
}

func (imp *Importer) fetchOptions(source models.Source) FetchOptions {
	if opts, ok := imp.Fetch[source]; ok {
		return opts
	}
	return FetchConfig{}.Options()
}

// collectPages paginates one source's search. A page fetch is retried
// once; a second failure stops pagination for this run but keeps what was
// already fetched. The inter-page delay honors context cancellation.
func (imp *Importer) collectPages(ctx context.Context, connector SearchConnector, source models.Source, term string, opts FetchOptions) (items []RawDoc, pages int, errStr string) {
	for page := 1; opts.MaxPages <= 0 || page <= opts.MaxPages; page++ {
		batch, err := fetchPageWithRetry(ctx, connector, term, page, opts.PageSize)
		if err != nil {
			errStr = fmt.Sprintf("page %d: %v", page, err)
			imp.Log.Warn("pagination stopped",
				zap.String("source", string(source)),
				zap.Int("page", page),
				zap.Error(err))
			break
		}
		if len(batch) == 0 {
			break
		}
		items = append(items, batch...)
		pages++

		if opts.PageDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.PageDelay):
			}
		}
		if ctx.Err() != nil {
			errStr = ctx.Err().Error()
			break
		}
	}
	return items, pages, errStr
}

// ImportSource paginates one source's search and upserts everything it
// collected as one batch.
func (imp *Importer) ImportSource(ctx context.Context, source models.Source, term string) SourceReport {
	connector := imp.connector(source)
	if connector == nil {
		return SourceReport{Err: fmt.Sprintf("no connector configured for source %s", source)}
	}

	items, pages, errStr := imp.collectPages(ctx, connector, source, term, imp.fetchOptions(source))
	report := SourceReport{Pages: pages, Err: errStr}

	result, err := imp.UpsertBatch(ctx, source, items)
	if err != nil && report.Err == "" {
		report.Err = err.Error()
	}
	report.Result = result
	return report
}

func fetchPageWithRetry(ctx context.Context, connector SearchConnector, term string, page, pageSize int) ([]RawDoc, error) {
	batch, err := connector.Search(ctx, term, page, pageSize)
	if err == nil {
		return batch, nil
	}
	batch, retryErr := connector.Search(ctx, term, page, pageSize)
	if retryErr == nil {
		return batch, nil
	}
	return nil, fmt.Errorf("fetch failed after retry: %w", retryErr)
}

// ImportAll fetches both sources concurrently, each with its own error
// slot so one source failing never starves the other. Database writes
// start only after both fetches have joined; the two batches then run
// one after the other.
func (imp *Importer) ImportAll(ctx context.Context, term string) map[models.Source]SourceReport {
	type fetched struct {
		source models.Source
		items  []RawDoc
		pages  int
		err    string
		ok     bool
	}

	sources := []models.Source{models.SourceNational, models.SourceEU}
	ch := make(chan fetched, len(sources))
	for _, source := range sources {
		go func(src models.Source) {
			connector := imp.connector(src)
			if connector == nil {
				ch <- fetched{source: src, err: fmt.Sprintf("no connector configured for source %s", src)}
				return
			}
			items, pages, errStr := imp.collectPages(ctx, connector, src, term, imp.fetchOptions(src))
			ch <- fetched{source: src, items: items, pages: pages, err: errStr, ok: true}
		}(source)
	}

	collected := make(map[models.Source]fetched, len(sources))
	for range sources {
		f := <-ch
		collected[f.source] = f
	}

	out := make(map[models.Source]SourceReport, len(sources))
	for _, source := range sources {
		f := collected[source]
		report := SourceReport{Pages: f.pages, Err: f.err}
		if f.ok {
			result, err := imp.UpsertBatch(ctx, source, f.items)
			if err != nil && report.Err == "" {
				report.Err = err.Error()
			}
			report.Result = result
		}
		out[source] = report
		imp.Log.Info("source import finished",
			zap.String("source", string(source)),
			zap.Int("created", report.Result.Created),
			zap.Int("updated", report.Result.Updated),
			zap.Int("skipped", report.Result.Skipped),
			zap.Int("errors", len(report.Result.Errors)),
			zap.String("error", report.Err))
	}
	return out
}
