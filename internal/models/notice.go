package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which upstream publication platform a notice came from.
type Source string

const (
	SourceNational Source = "national"
	SourceEU       Source = "eu"
)

// ValidSource reports whether s is one of the two supported sources.
func ValidSource(s Source) bool {
	return s == SourceNational || s == SourceEU
}

// Notice is the canonical record for one real-world procurement tender
// from one publication source.
type Notice struct {
	ID                     uuid.UUID              `json:"id"`
	Source                 Source                 `json:"source"`
	SourceID               string                 `json:"source_id"`
	PublicationWorkspaceID string                 `json:"publication_workspace_id"`
	DossierID              string                 `json:"dossier_id"`
	ProcedureID            string                 `json:"procedure_id"`
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	NoticeType             string                 `json:"notice_type"`
	FormType               string                 `json:"form_type"`
	CPVCode                string                 `json:"cpv_code"`
	NUTSCodes              []string               `json:"nuts_codes"`
	OrganisationNames      map[string]string      `json:"organisation_names"`
	PublicationDate        *time.Time             `json:"publication_date"`
	Deadline               *time.Time             `json:"deadline"`
	EstimatedValue         *float64               `json:"estimated_value"`
	Currency               string                 `json:"currency"`
	URL                    string                 `json:"url"`
	Status                 string                 `json:"status"`
	Keywords               []string               `json:"keywords"`
	AwardWinnerName        string                 `json:"award_winner_name"`
	AwardValue             *float64               `json:"award_value"`
	AwardDate              *time.Time             `json:"award_date"`
	NumberTendersReceived  *int                   `json:"number_tenders_received"`
	AwardCriteria          map[string]interface{} `json:"award_criteria"`
	RawData                map[string]interface{} `json:"raw_data,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`

	// Child collections, persisted in their own tables and replaced
	// wholesale on every upsert.
	Lots           []Lot    `json:"lots,omitempty"`
	AdditionalCPVs []string `json:"additional_cpvs,omitempty"`
}

// OrganisationName resolves the buyer name using the fixed language
// preference order: Dutch, French, English, then whatever is left.
func (n *Notice) OrganisationName() string {
	if len(n.OrganisationNames) == 0 {
		return ""
	}
	for _, lang := range []string{"nl", "fr", "en", "de"} {
		if v, ok := n.OrganisationNames[lang]; ok && v != "" {
			return v
		}
	}
	for _, v := range n.OrganisationNames {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsAwardResult reports whether this notice announces a contract award
// rather than a call for tenders.
func (n *Notice) IsAwardResult() bool {
	switch n.NoticeType {
	case "award", "result", "contractAwardNotice":
		return true
	}
	return false
}

// Lot is a subdivision of a notice, persisted as a child row.
type Lot struct {
	ID          uuid.UUID `json:"id"`
	NoticeID    uuid.UUID `json:"notice_id"`
	LotNumber   string    `json:"lot_number"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// Watchlist is a saved set of match criteria plus a notification target.
type Watchlist struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Keywords       []string   `json:"keywords"`
	CPVPrefixes    []string   `json:"cpv_prefixes"`
	RegionPrefixes []string   `json:"region_prefixes"`
	Sources        []string   `json:"sources"`
	Enabled        bool       `json:"enabled"`
	NotifyEmail    string     `json:"notify_email"`
	LastRefreshAt  *time.Time `json:"last_refresh_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasCriteria reports whether at least one filter category is non-empty.
// A watchlist with no criteria at all must never match anything.
func (w *Watchlist) HasCriteria() bool {
	return len(w.Keywords) > 0 || len(w.CPVPrefixes) > 0 || len(w.RegionPrefixes) > 0
}

// WatchlistMatch is a persisted, deduplicated (watchlist, notice) pair.
type WatchlistMatch struct {
	ID             uuid.UUID `json:"id"`
	WatchlistID    uuid.UUID `json:"watchlist_id"`
	NoticeID       uuid.UUID `json:"notice_id"`
	Explanation    string    `json:"explanation"`
	RelevanceScore int       `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// ImportRun is one row of operational telemetry per batch invocation.
type ImportRun struct {
	ID          uuid.UUID  `json:"id"`
	Source      Source     `json:"source"`
	Status      string     `json:"status"` // running, completed, failed
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
