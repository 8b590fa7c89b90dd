package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bverbist/tenderwatch/internal/models"
)

const watchlistCols = `id, name, keywords, cpv_prefixes, region_prefixes, sources,
	enabled, notify_email, last_refresh_at, created_at, updated_at`

func scanWatchlist(scan func(dest ...any) error) (models.Watchlist, error) {
	var w models.Watchlist
	err := scan(
		&w.ID, &w.Name, &w.Keywords, &w.CPVPrefixes, &w.RegionPrefixes, &w.Sources,
		&w.Enabled, &w.NotifyEmail, &w.LastRefreshAt, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

func (s *Store) GetWatchlist(ctx context.Context, id uuid.UUID) (*models.Watchlist, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM watchlists WHERE id = $1", watchlistCols), id)
	w, err := scanWatchlist(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watchlist lookup failed: %w", err)
	}
	return &w, nil
}

func (s *Store) ListWatchlists(ctx context.Context, enabledOnly bool) ([]models.Watchlist, error) {
	sql := fmt.Sprintf("SELECT %s FROM watchlists", watchlistCols)
	if enabledOnly {
		sql += " WHERE enabled"
	}
	sql += " ORDER BY name"

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("watchlist query failed: %w", err)
	}
	defer rows.Close()

	lists := []models.Watchlist{}
	for rows.Next() {
		w, err := scanWatchlist(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("watchlist scan failed: %w", err)
		}
		lists = append(lists, w)
	}
	return lists, rows.Err()
}

func (s *Store) CreateWatchlist(ctx context.Context, w *models.Watchlist) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO watchlists (id, name, keywords, cpv_prefixes, region_prefixes, sources, enabled, notify_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.Name, w.Keywords, w.CPVPrefixes, w.RegionPrefixes, w.Sources, w.Enabled, w.NotifyEmail)
	if err != nil {
		return fmt.Errorf("create watchlist: %w", err)
	}
	return nil
}

func (s *Store) UpdateWatchlist(ctx context.Context, w *models.Watchlist) error {
	_, err := s.db.Exec(ctx, `
		UPDATE watchlists SET
			name = $2, keywords = $3, cpv_prefixes = $4, region_prefixes = $5,
			sources = $6, enabled = $7, notify_email = $8, updated_at = NOW()
		WHERE id = $1`,
		w.ID, w.Name, w.Keywords, w.CPVPrefixes, w.RegionPrefixes, w.Sources, w.Enabled, w.NotifyEmail)
	if err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	return nil
}

func (s *Store) DeleteWatchlist(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM watchlists WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	return nil
}

// SetWatchlistRefreshedAt advances the incremental-matching cursor.
func (s *Store) SetWatchlistRefreshedAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	if _, err := s.db.Exec(ctx, "UPDATE watchlists SET last_refresh_at = $2, updated_at = NOW() WHERE id = $1", id, t); err != nil {
		return fmt.Errorf("advance watchlist cursor: %w", err)
	}
	return nil
}

// InsertMatch records a (watchlist, notice) pair. The unique constraint
// makes the insert idempotent; the return value reports whether a new row
// was actually created.
func (s *Store) InsertMatch(ctx context.Context, m *models.WatchlistMatch) (bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO watchlist_matches (id, watchlist_id, notice_id, explanation, relevance_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (watchlist_id, notice_id) DO NOTHING`,
		m.ID, m.WatchlistID, m.NoticeID, m.Explanation, m.RelevanceScore)
	if err != nil {
		return false, fmt.Errorf("insert match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListMatches(ctx context.Context, watchlistID uuid.UUID, limit int) ([]models.WatchlistMatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, watchlist_id, notice_id, explanation, relevance_score, created_at
		FROM watchlist_matches
		WHERE watchlist_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, watchlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("match query failed: %w", err)
	}
	defer rows.Close()

	matches := []models.WatchlistMatch{}
	for rows.Next() {
		var m models.WatchlistMatch
		if err := rows.Scan(&m.ID, &m.WatchlistID, &m.NoticeID, &m.Explanation, &m.RelevanceScore, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("match scan failed: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListMatchesForWatchlist returns every match pair for the rescoring pass.
func (s *Store) ListMatchesForWatchlist(ctx context.Context, watchlistID uuid.UUID) ([]models.WatchlistMatch, error) {
	return s.ListMatches(ctx, watchlistID, 1<<30)
}

// UpdateMatchScore edits score and explanation in place; existence and the
// time cursor are never touched here.
func (s *Store) UpdateMatchScore(ctx context.Context, id uuid.UUID, score int, explanation string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE watchlist_matches SET relevance_score = $2, explanation = $3 WHERE id = $1",
		id, score, explanation)
	if err != nil {
		return fmt.Errorf("update match score: %w", err)
	}
	return nil
}

// CreateImportRun opens one telemetry row for a batch invocation.
func (s *Store) CreateImportRun(ctx context.Context, source models.Source) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, "INSERT INTO import_runs (id, source, status) VALUES ($1, $2, 'running')", id, source)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create import run: %w", err)
	}
	return id, nil
}

func (s *Store) CompleteImportRun(ctx context.Context, id uuid.UUID, status string, created, updated, skipped, errCount int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE import_runs SET
			status = $2, created_count = $3, updated_count = $4,
			skipped_count = $5, error_count = $6, completed_at = NOW()
		WHERE id = $1`,
		id, status, created, updated, skipped, errCount)
	if err != nil {
		return fmt.Errorf("complete import run: %w", err)
	}
	return nil
}

func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]models.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, source, status, created_count, updated_count, skipped_count, error_count, started_at, completed_at
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("import run query failed: %w", err)
	}
	defer rows.Close()

	runs := []models.ImportRun{}
	for rows.Next() {
		var r models.ImportRun
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Created, &r.Updated, &r.Skipped, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("import run scan failed: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
