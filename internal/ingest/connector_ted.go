package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bverbist/tenderwatch/internal/models"
)

// TEDConnector queries the TED v3 search API. The expert query restricting
// results to Belgian tenders comes from the source registry; the caller's
// search term is appended as a free-text clause when present.
type TEDConnector struct {
	Client    *http.Client
	SearchURL string
	BaseQuery string
	Fields    []string
}

func NewTEDConnector(cfg *SourceConfig) *TEDConnector {
	timeout := 30 * time.Second
	if cfg.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	}
	baseQuery := ""
	if len(cfg.SearchTerms) > 0 {
		baseQuery = cfg.SearchTerms[0]
	}
	return &TEDConnector{
		Client:    &http.Client{Timeout: timeout},
		SearchURL: cfg.BaseURL,
		BaseQuery: baseQuery,
		Fields:    cfg.Fields,
	}
}

func (c *TEDConnector) Source() models.Source { return models.SourceEU }

type tedSearchRequest struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields,omitempty"`
	Page   int      `json:"page"`
	Limit  int      `json:"limit"`
	Scope  string   `json:"scope"`
}

type tedSearchResponse struct {
	Notices            []RawDoc `json:"notices"`
	TotalNoticeCount   int      `json:"totalNoticeCount"`
	IterationNextToken string   `json:"iterationNextToken"`
}

// Search fetches one page of notices. Pages are one-based upstream, which
// matches the caller's convention.
func (c *TEDConnector) Search(ctx context.Context, term string, page, pageSize int) ([]RawDoc, error) {
	query := c.BaseQuery
	if term != "" {
		if query != "" {
			query = fmt.Sprintf("%s AND (FT=(%q))", query, term)
		} else {
			query = fmt.Sprintf("FT=(%q)", term)
		}
	}

	body, err := json.Marshal(tedSearchRequest{
		Query:  query,
		Fields: c.Fields,
		Page:   page,
		Limit:  pageSize,
		Scope:  "LATEST",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, string(snippet))
	}

	var out tedSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Notices, nil
}
