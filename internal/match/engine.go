package match

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/models"
	"github.com/bverbist/tenderwatch/internal/notify"
)

// Engine evaluates enabled watchlists against notices that arrived since
// each watchlist's last run. Every (watchlist, notice) pair produces at
// most one stored match ever; re-runs over the same window are no-ops.
type Engine struct {
	Store      *db.Store
	Dict       Dictionary
	Dispatcher notify.Dispatcher
	Log        *zap.Logger
}

func NewEngine(store *db.Store, dict Dictionary, dispatcher notify.Dispatcher, log *zap.Logger) *Engine {
	if dict == nil {
		dict = NewStaticDictionary()
	}
	if dispatcher == nil {
		dispatcher = notify.NoopDispatcher{}
	}
	return &Engine{Store: store, Dict: dict, Dispatcher: dispatcher, Log: log}
}

// RunResult summarises one matching pass.
type RunResult struct {
	Watchlists int
	Candidates int
	NewMatches int
	Errors     []string
}

// Run executes one matching pass over all enabled watchlists. A failure
// on one watchlist is recorded and the pass continues; the cursor of a
// failed watchlist is left untouched so its window is retried next run.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{}

	watchlists, err := e.Store.ListWatchlists(ctx, true)
	if err != nil {
		return result, fmt.Errorf("watchlist load: %w", err)
	}
	result.Watchlists = len(watchlists)

	for i := range watchlists {
		w := &watchlists[i]
		candidates, fresh, err := e.runOne(ctx, w)
		result.Candidates += candidates
		result.NewMatches += fresh
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", w.Name, err))
			e.Log.Warn("watchlist pass failed", zap.String("watchlist", w.Name), zap.Error(err))
		}
	}
	return result, nil
}

// runOne processes a single watchlist in its own transaction: the new
// matches and the advanced cursor commit together or not at all.
func (e *Engine) runOne(ctx context.Context, w *models.Watchlist) (candidates, fresh int, err error) {
	cursor := time.Time{}
	if w.LastRefreshAt != nil {
		cursor = *w.LastRefreshAt
	}
	// Captured before the candidate query so a notice created mid-pass
	// lands in the next window instead of being skipped.
	passStart := time.Now().UTC()

	notices, err := e.Store.ListNoticesCreatedAfter(ctx, cursor, w.Sources)
	if err != nil {
		return 0, 0, fmt.Errorf("candidate load: %w", err)
	}
	candidates = len(notices)

	var alerts []notify.Alert
	err = e.Store.InTx(ctx, func(tx *db.Store) error {
		for i := range notices {
			n := &notices[i]
			detail, ok := Evaluate(w, n, e.Dict)
			if !ok {
				continue
			}
			m := &models.WatchlistMatch{
				WatchlistID:    w.ID,
				NoticeID:       n.ID,
				Explanation:    detail.Explanation(),
				RelevanceScore: detail.Score(),
			}
			inserted, err := tx.InsertMatch(ctx, m)
			if err != nil {
				return fmt.Errorf("match insert for %s: %w", n.SourceID, err)
			}
			if !inserted {
				continue
			}
			fresh++
			if w.NotifyEmail != "" {
				alerts = append(alerts, notify.Alert{
					WatchlistID:   w.ID,
					WatchlistName: w.Name,
					NoticeID:      n.ID,
					NoticeTitle:   n.Title,
					NoticeURL:     n.URL,
					Email:         w.NotifyEmail,
					Explanation:   m.Explanation,
					Score:         m.RelevanceScore,
				})
			}
		}
		return tx.SetWatchlistRefreshedAt(ctx, w.ID, passStart)
	})
	if err != nil {
		return candidates, 0, err
	}

	// Alerts go out only after the matches are committed. A dispatch
	// failure is logged, never propagated: the match itself is durable
	// and a later notification sweep can pick it up.
	for _, alert := range alerts {
		if dispErr := e.Dispatcher.Dispatch(ctx, alert); dispErr != nil {
			e.Log.Warn("alert dispatch failed",
				zap.String("watchlist", w.Name),
				zap.String("notice", alert.NoticeID.String()),
				zap.Error(dispErr))
		}
	}
	return candidates, fresh, nil
}

// RescoreResult summarises a rescoring pass.
type RescoreResult struct {
	Matches int
	Updated int
	Errors  []string
}

// Rescore recomputes the score and explanation of every stored match
// against the current watchlist criteria and notice content. Matches
// whose notice no longer satisfies the criteria keep their row but drop
// to score zero; match history is append-only.
func (e *Engine) Rescore(ctx context.Context) (RescoreResult, error) {
	result := RescoreResult{}

	watchlists, err := e.Store.ListWatchlists(ctx, false)
	if err != nil {
		return result, fmt.Errorf("watchlist load: %w", err)
	}

	for i := range watchlists {
		w := &watchlists[i]
		matches, err := e.Store.ListMatchesForWatchlist(ctx, w.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", w.Name, err))
			continue
		}
		for _, m := range matches {
			result.Matches++
			n, err := e.Store.GetNotice(ctx, m.NoticeID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", w.Name, m.NoticeID, err))
				continue
			}
			if n == nil {
				continue
			}

			score, explanation := 0, ""
			if detail, ok := Evaluate(w, n, e.Dict); ok {
				score, explanation = detail.Score(), detail.Explanation()
			}
			if score == m.RelevanceScore && explanation == m.Explanation {
				continue
			}
			if err := e.Store.UpdateMatchScore(ctx, m.ID, score, explanation); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", w.Name, m.NoticeID, err))
				continue
			}
			result.Updated++
		}
	}
	return result, nil
}

// Detail records which criteria a notice satisfied, for scoring and for
// the human-readable explanation stored with the match.
type Detail struct {
	Keywords []string
	CPVs     []string
	Regions  []string
}

// Score weights keyword hits above classification hits above region hits.
func (d Detail) Score() int {
	return len(d.Keywords)*10 + len(d.CPVs)*5 + len(d.Regions)*3
}

// Explanation renders the matched criteria, one clause per category.
func (d Detail) Explanation() string {
	var parts []string
	if len(d.Keywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(d.Keywords, ", "))
	}
	if len(d.CPVs) > 0 {
		parts = append(parts, "classification: "+strings.Join(d.CPVs, ", "))
	}
	if len(d.Regions) > 0 {
		parts = append(parts, "region: "+strings.Join(d.Regions, ", "))
	}
	return strings.Join(parts, "; ")
}

// Evaluate decides whether one notice satisfies one watchlist. Non-empty
// criteria categories combine with AND; an empty category constrains
// nothing. Within the keyword category every keyword must hit, but a
// keyword hits if any of its dictionary expansions appears in the
// notice text. A watchlist with no criteria at all never matches.
func Evaluate(w *models.Watchlist, n *models.Notice, dict Dictionary) (Detail, bool) {
	detail := Detail{}
	if !w.HasCriteria() {
		return detail, false
	}

	if len(w.Keywords) > 0 {
		text := searchableText(n)
		for _, kw := range w.Keywords {
			hit := ""
			for _, term := range dict.Expand(kw) {
				if strings.Contains(text, term) {
					hit = term
					break
				}
			}
			if hit == "" {
				return Detail{}, false
			}
			detail.Keywords = append(detail.Keywords, hit)
		}
	}

	if len(w.CPVPrefixes) > 0 {
		codes := noticeCPVs(n)
		for _, prefix := range w.CPVPrefixes {
			p := normalizeCode(prefix)
			if p == "" {
				continue
			}
			for _, code := range codes {
				if strings.HasPrefix(code, p) {
					detail.CPVs = append(detail.CPVs, prefix)
					break
				}
			}
		}
		if len(detail.CPVs) == 0 {
			return Detail{}, false
		}
	}

	if len(w.RegionPrefixes) > 0 {
		for _, prefix := range w.RegionPrefixes {
			p := normalizeCode(prefix)
			if p == "" {
				continue
			}
			for _, code := range n.NUTSCodes {
				if strings.HasPrefix(normalizeCode(code), p) {
					detail.Regions = append(detail.Regions, prefix)
					break
				}
			}
		}
		if len(detail.Regions) == 0 {
			return Detail{}, false
		}
	}

	return detail, true
}

// searchableText flattens everything a keyword may legitimately match
// against into one lowercased haystack.
func searchableText(n *models.Notice) string {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteByte('\n')
	b.WriteString(n.Description)
	b.WriteByte('\n')
	b.WriteString(n.OrganisationName())
	for _, kw := range n.Keywords {
		b.WriteByte('\n')
		b.WriteString(kw)
	}
	for _, lot := range n.Lots {
		b.WriteByte('\n')
		b.WriteString(lot.Title)
		b.WriteByte('\n')
		b.WriteString(lot.Description)
	}
	return strings.ToLower(b.String())
}

// noticeCPVs collects the main and additional classification codes in
// normalized form.
func noticeCPVs(n *models.Notice) []string {
	var codes []string
	if c := normalizeCode(n.CPVCode); c != "" {
		codes = append(codes, c)
	}
	for _, extra := range n.AdditionalCPVs {
		if c := normalizeCode(extra); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// normalizeCode uppercases a classification or region code and strips
// separators, so "45.23" and "45 23" both prefix-match "45233120".
func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
