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

// NationalConnector talks to the Belgian e-Procurement publication
// workspace API. Search is a POST with a JSON body; detail is a GET per
// workspace id. Token acquisition happens elsewhere, the connector only
// attaches whatever bearer token it was given.
type NationalConnector struct {
	Client    *http.Client
	SearchURL string
	DetailURL string
	Token     string
}

func NewNationalConnector(cfg *SourceConfig) *NationalConnector {
	timeout := 30 * time.Second
	if cfg.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	}
	return &NationalConnector{
		Client:    &http.Client{Timeout: timeout},
		SearchURL: cfg.BaseURL,
		DetailURL: cfg.DetailURL,
		Token:     cfg.APIToken,
	}
}

func (c *NationalConnector) Source() models.Source { return models.SourceNational }

type nationalSearchRequest struct {
	Text     string `json:"text,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Sort     string `json:"sort"`
}

type nationalSearchResponse struct {
	Items      []RawDoc `json:"items"`
	TotalCount int      `json:"totalCount"`
}

// Search fetches one page of publication workspaces. An empty slice means
// the end of results. Pages are zero-based upstream, one-based here.
func (c *NationalConnector) Search(ctx context.Context, term string, page, pageSize int) ([]RawDoc, error) {
	body, err := json.Marshal(nationalSearchRequest{
		Text:     term,
		Page:     page - 1,
		PageSize: pageSize,
		Sort:     "publicationDate,desc",
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
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, string(snippet))
	}

	var out nationalSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Items, nil
}

// Detail fetches the full workspace payload for one id. A 401 or 404 is
// not an error: some workspaces are restricted or withdrawn, and the
// search projection alone is still usable. The caller sees (nil, nil).
func (c *NationalConnector) Detail(ctx context.Context, nativeID string) (RawDoc, error) {
	if c.DetailURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.DetailURL, nativeID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detail request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detail returned %d: %s", resp.StatusCode, string(snippet))
	}

	var doc RawDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return doc, nil
}
