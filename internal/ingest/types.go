package ingest

import (
	"context"

	"github.com/bverbist/tenderwatch/internal/models"
)

// SearchConnector pages through an upstream source's search results.
// An empty slice signals the end of results.
type SearchConnector interface {
	Search(ctx context.Context, term string, page, pageSize int) ([]RawDoc, error)
	Source() models.Source
}

// DetailConnector fetches the richer per-notice payload the national
// platform exposes. A nil doc with a nil error means "unauthorized or not
// found": no enrichment available, never a failure.
type DetailConnector interface {
	Detail(ctx context.Context, nativeID string) (RawDoc, error)
}

// AwardExtractor is the eForms XML collaborator. Keys it may return:
// award_winner_name, award_value, award_date, number_tenders_received,
// award_criteria_json. An absent key means "not determinable from this
// payload", not zero.
type AwardExtractor interface {
	ExtractAwardFields(raw RawDoc) map[string]interface{}
}

// NoopAwardExtractor is used when no eForms parser is wired in.
type NoopAwardExtractor struct{}

func (NoopAwardExtractor) ExtractAwardFields(RawDoc) map[string]interface{} { return nil }

// ItemError records one malformed or unaddressable record without
// aborting its batch.
type ItemError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// UpsertResult is the per-batch outcome of the upsert engine.
type UpsertResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// BackfillResult reports one enrichment pass over stored raw payloads.
type BackfillResult struct {
	Processed     int            `json:"processed"`
	Enriched      int            `json:"enriched"`
	FieldsUpdated map[string]int `json:"fields_updated"`
	Errors        []ItemError    `json:"errors,omitempty"`
}

// MergeResult reports one orphan-merge pass.
type MergeResult struct {
	Merged      int         `json:"merged"`
	NoParent    int         `json:"no_parent"`
	NoProcedure int         `json:"no_procedure"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// DedupResult reports one duplicate-cleanup pass.
type DedupResult struct {
	Groups  int         `json:"groups"`
	Deleted int         `json:"deleted"`
	DryRun  bool        `json:"dry_run"`
	Victims []string    `json:"victims,omitempty"`
	Errors  []ItemError `json:"errors,omitempty"`
}
