package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/models"
)

// minDescriptionLength is the threshold below which a description gets
// padded out with per-lot summaries.
const minDescriptionLength = 120

// Backfiller re-derives still-empty notice fields from the stored raw
// payloads. It never calls out to the upstream APIs and it never
// overwrites a non-empty value.
type Backfiller struct {
	Store     *db.Store
	Extractor AwardExtractor
	Log       *zap.Logger
}

func NewBackfiller(store *db.Store, extractor AwardExtractor, log *zap.Logger) *Backfiller {
	if extractor == nil {
		extractor = NoopAwardExtractor{}
	}
	return &Backfiller{Store: store, Extractor: extractor, Log: log}
}

// BackfillParams bounds one pass. A zero Limit processes everything; an
// empty Source covers both.
type BackfillParams struct {
	Source models.Source
	Limit  int
}

// Backfill runs one enrichment pass. A single transaction covers the
// whole pass; the search projection is refreshed once at the end, and
// only when at least one field changed.
func (b *Backfiller) Backfill(ctx context.Context, params BackfillParams) (BackfillResult, error) {
	result := BackfillResult{FieldsUpdated: map[string]int{}}

	notices, err := b.Store.ListNoticesWithRaw(ctx, params.Source, params.Limit)
	if err != nil {
		return result, fmt.Errorf("backfill candidate load: %w", err)
	}

	txErr := b.Store.InTx(ctx, func(tx *db.Store) error {
		for i := range notices {
			n := notices[i]
			result.Processed++

			filled, err := b.enrichOne(ctx, tx, &n)
			if err != nil {
				result.Errors = append(result.Errors, ItemError{Identifier: n.SourceID, Message: err.Error()})
				b.Log.Warn("backfill item failed",
					zap.String("source_id", n.SourceID),
					zap.Error(err))
				continue
			}
			if len(filled) > 0 {
				result.Enriched++
				for _, f := range filled {
					result.FieldsUpdated[f]++
				}
			}
		}

		if result.Enriched > 0 {
			return tx.RefreshSearchProjection(ctx)
		}
		return nil
	})
	if txErr != nil {
		return result, fmt.Errorf("backfill pass failed: %w", txErr)
	}

	return result, nil
}

// enrichOne applies every derivation to one notice and persists it when
// anything was filled. Write order: mapper re-derivation, award
// extraction, facet keywords, lot-summary padding.
func (b *Backfiller) enrichOne(ctx context.Context, tx *db.Store, n *models.Notice) ([]string, error) {
	raw := RawDoc(n.RawData)
	if len(raw) == 0 {
		return nil, nil
	}

	var derived models.Notice
	if n.Source == models.SourceEU {
		derived = MapTED(raw)
	} else {
		derived = MapNational(raw, nil)
	}
	// Re-derivation must not disturb identity or the stored payload.
	derived.RawData = nil

	merged, filled := mergeFillEmpty(*n, derived)

	if awardFilled := applyAwardFields(&merged, b.Extractor.ExtractAwardFields(raw)); len(awardFilled) > 0 {
		filled = append(filled, awardFilled...)
	}

	if facets := deriveFacetKeywords(raw); len(facets) > 0 {
		before := len(merged.Keywords)
		merged.Keywords = mergeUniqueFold(merged.Keywords, facets)
		if len(merged.Keywords) > before {
			filled = append(filled, "keywords")
		}
	}

	if padded := padDescriptionWithLots(&merged); padded {
		filled = append(filled, "description")
	}

	if len(filled) == 0 {
		return nil, nil
	}

	if err := tx.UpdateNotice(ctx, &merged); err != nil {
		return nil, err
	}
	if contains(filled, "lots") || contains(filled, "additional_cpvs") {
		if err := tx.ReplaceChildren(ctx, merged.ID, merged.Lots, merged.AdditionalCPVs); err != nil {
			return nil, err
		}
	}
	*n = merged
	return filled, nil
}

// facetPaths are the raw-payload locations of the normalized facet tags
// appended to the keyword list: procurement technique, legal basis, and
// procedure nature, across both source vocabularies.
var facetPaths = []string{
	"procurementTechnique",
	"framework-agreement",
	"legalBasis",
	"legal-basis",
	"procedureType",
	"procedure-type",
	"natureOfContract",
	"contract-nature",
}

func deriveFacetKeywords(raw RawDoc) []string {
	var out []string
	for _, path := range facetPaths {
		for _, v := range raw.Slice(path) {
			if s := stringify(v); s != "" && !strings.EqualFold(s, "none") && !strings.EqualFold(s, "false") {
				out = append(out, strings.ToLower(s))
			}
		}
	}
	return mergeUniqueFold(nil, out)
}

// padDescriptionWithLots concatenates per-lot summaries onto a too-short
// description. Reported as a description fill even though it appends,
// because the combined text is the derived value.
func padDescriptionWithLots(n *models.Notice) bool {
	if len(n.Description) >= minDescriptionLength || len(n.Lots) == 0 {
		return false
	}
	var parts []string
	if n.Description != "" {
		parts = append(parts, n.Description)
	}
	for _, lot := range n.Lots {
		summary := lot.Description
		if summary == "" {
			summary = lot.Title
		}
		if summary == "" {
			continue
		}
		if lot.LotNumber != "" {
			summary = fmt.Sprintf("Lot %s: %s", lot.LotNumber, summary)
		}
		parts = append(parts, summary)
	}
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == n.Description) {
		return false
	}
	combined := strings.Join(parts, " | ")
	if combined == n.Description {
		return false
	}
	n.Description = combined
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
