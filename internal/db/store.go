package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bverbist/tenderwatch/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every Store method
// works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// InTx runs fn against a Store bound to a single transaction. The whole
// batch commits or rolls back as one unit.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return errors.New("store is already transaction-bound")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const noticeCols = `id, source, source_id, publication_workspace_id, dossier_id, procedure_id,
	title, description, notice_type, form_type, cpv_code, nuts_codes, organisation_names,
	publication_date, deadline, estimated_value, currency, url, status, keywords,
	award_winner_name, award_value, award_date, number_tenders_received, award_criteria,
	raw_data, created_at, updated_at`

func scanNotice(scan func(dest ...any) error) (models.Notice, error) {
	var n models.Notice
	var pubWorkspaceID, dossierID, procedureID, noticeType, formType, cpvCode *string
	var currency, url, status, awardWinner *string
	var orgNamesRaw, awardCriteriaRaw, rawDataRaw []byte

	err := scan(
		&n.ID, &n.Source, &n.SourceID, &pubWorkspaceID, &dossierID, &procedureID,
		&n.Title, &n.Description, &noticeType, &formType, &cpvCode, &n.NUTSCodes, &orgNamesRaw,
		&n.PublicationDate, &n.Deadline, &n.EstimatedValue, &currency, &url, &status, &n.Keywords,
		&awardWinner, &n.AwardValue, &n.AwardDate, &n.NumberTendersReceived, &awardCriteriaRaw,
		&rawDataRaw, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return n, err
	}

	if pubWorkspaceID != nil {
		n.PublicationWorkspaceID = *pubWorkspaceID
	}
	if dossierID != nil {
		n.DossierID = *dossierID
	}
	if procedureID != nil {
		n.ProcedureID = *procedureID
	}
	if noticeType != nil {
		n.NoticeType = *noticeType
	}
	if formType != nil {
		n.FormType = *formType
	}
	if cpvCode != nil {
		n.CPVCode = *cpvCode
	}
	if currency != nil {
		n.Currency = *currency
	}
	if url != nil {
		n.URL = *url
	}
	if status != nil {
		n.Status = *status
	}
	if awardWinner != nil {
		n.AwardWinnerName = *awardWinner
	}
	if len(orgNamesRaw) > 0 {
		_ = json.Unmarshal(orgNamesRaw, &n.OrganisationNames)
	}
	if len(awardCriteriaRaw) > 0 {
		_ = json.Unmarshal(awardCriteriaRaw, &n.AwardCriteria)
	}
	if len(rawDataRaw) > 0 {
		_ = json.Unmarshal(rawDataRaw, &n.RawData)
	}

	return n, nil
}

func (s *Store) getNoticeWhere(ctx context.Context, where string, args ...any) (*models.Notice, error) {
	sql := fmt.Sprintf("SELECT %s FROM notices WHERE %s", noticeCols, where)
	row := s.db.QueryRow(ctx, sql, args...)
	n, err := scanNotice(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notice lookup failed: %w", err)
	}
	return &n, nil
}

// GetNotice fetches one notice by primary key, children included.
func (s *Store) GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error) {
	n, err := s.getNoticeWhere(ctx, "id = $1", id)
	if err != nil || n == nil {
		return n, err
	}
	if err := s.loadChildren(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// GetNoticeBySourceID resolves the exact external-key identity.
func (s *Store) GetNoticeBySourceID(ctx context.Context, source models.Source, sourceID string) (*models.Notice, error) {
	return s.getNoticeWhere(ctx, "source = $1 AND source_id = $2", source, sourceID)
}

// GetNoticeByDossier resolves the republication identity: the same dossier
// may be re-issued under a fresh external key.
func (s *Store) GetNoticeByDossier(ctx context.Context, source models.Source, dossierID string) (*models.Notice, error) {
	return s.getNoticeWhere(ctx, "source = $1 AND dossier_id = $2", source, dossierID)
}

// GetParentByProcedure finds the contract notice a given award notice
// belongs to: same source and procedure, excluding the orphan itself.
func (s *Store) GetParentByProcedure(ctx context.Context, source models.Source, procedureID string, exclude uuid.UUID) (*models.Notice, error) {
	return s.getNoticeWhere(ctx,
		"source = $1 AND procedure_id = $2 AND id <> $3 AND COALESCE(notice_type,'') NOT IN ('award','result','contractAwardNotice') ORDER BY created_at ASC LIMIT 1",
		source, procedureID, exclude)
}

func (s *Store) loadChildren(ctx context.Context, n *models.Notice) error {
	rows, err := s.db.Query(ctx,
		"SELECT id, notice_id, COALESCE(lot_number,''), title, description FROM notice_lots WHERE notice_id = $1 ORDER BY lot_number", n.ID)
	if err != nil {
		return fmt.Errorf("load lots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lot models.Lot
		if err := rows.Scan(&lot.ID, &lot.NoticeID, &lot.LotNumber, &lot.Title, &lot.Description); err != nil {
			return fmt.Errorf("scan lot: %w", err)
		}
		n.Lots = append(n.Lots, lot)
	}
	rows.Close()

	cpvRows, err := s.db.Query(ctx,
		"SELECT cpv_code FROM notice_cpv_additional WHERE notice_id = $1 ORDER BY cpv_code", n.ID)
	if err != nil {
		return fmt.Errorf("load additional cpvs: %w", err)
	}
	defer cpvRows.Close()
	for cpvRows.Next() {
		var code string
		if err := cpvRows.Scan(&code); err != nil {
			return fmt.Errorf("scan cpv: %w", err)
		}
		n.AdditionalCPVs = append(n.AdditionalCPVs, code)
	}
	return cpvRows.Err()
}

func marshalOrNil(v any) any {
	switch typed := v.(type) {
	case map[string]string:
		if len(typed) == 0 {
			return nil
		}
	case map[string]interface{}:
		if len(typed) == 0 {
			return nil
		}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(payload)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertNotice creates a new notice row plus its children.
func (s *Store) InsertNotice(ctx context.Context, n *models.Notice) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notices (
			id, source, source_id, publication_workspace_id, dossier_id, procedure_id,
			title, description, notice_type, form_type, cpv_code, nuts_codes, organisation_names,
			publication_date, deadline, estimated_value, currency, url, status, keywords,
			award_winner_name, award_value, award_date, number_tenders_received, award_criteria,
			raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, COALESCE($13::jsonb, '{}'::jsonb),
			$14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25::jsonb,
			$26::jsonb
		)`,
		n.ID, n.Source, n.SourceID, nilIfEmpty(n.PublicationWorkspaceID), nilIfEmpty(n.DossierID), nilIfEmpty(n.ProcedureID),
		n.Title, n.Description, nilIfEmpty(n.NoticeType), nilIfEmpty(n.FormType), nilIfEmpty(n.CPVCode), n.NUTSCodes, marshalOrNil(n.OrganisationNames),
		n.PublicationDate, n.Deadline, n.EstimatedValue, nilIfEmpty(n.Currency), nilIfEmpty(n.URL), nilIfEmpty(n.Status), n.Keywords,
		nilIfEmpty(n.AwardWinnerName), n.AwardValue, n.AwardDate, n.NumberTendersReceived, marshalOrNil(n.AwardCriteria),
		marshalOrNil(n.RawData),
	)
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return s.ReplaceChildren(ctx, n.ID, n.Lots, n.AdditionalCPVs)
}

// UpdateNotice overwrites every mapped attribute on an existing row.
// Last write wins; fill-if-empty decisions belong to the callers.
func (s *Store) UpdateNotice(ctx context.Context, n *models.Notice) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notices SET
			source_id = $2,
			publication_workspace_id = $3,
			dossier_id = $4,
			procedure_id = $5,
			title = $6,
			description = $7,
			notice_type = $8,
			form_type = $9,
			cpv_code = $10,
			nuts_codes = $11,
			organisation_names = COALESCE($12::jsonb, '{}'::jsonb),
			publication_date = $13,
			deadline = $14,
			estimated_value = $15,
			currency = $16,
			url = $17,
			status = $18,
			keywords = $19,
			award_winner_name = $20,
			award_value = $21,
			award_date = $22,
			number_tenders_received = $23,
			award_criteria = $24::jsonb,
			raw_data = $25::jsonb,
			updated_at = NOW()
		WHERE id = $1`,
		n.ID, n.SourceID, nilIfEmpty(n.PublicationWorkspaceID), nilIfEmpty(n.DossierID), nilIfEmpty(n.ProcedureID),
		n.Title, n.Description, nilIfEmpty(n.NoticeType), nilIfEmpty(n.FormType), nilIfEmpty(n.CPVCode),
		n.NUTSCodes, marshalOrNil(n.OrganisationNames), n.PublicationDate, n.Deadline, n.EstimatedValue,
		nilIfEmpty(n.Currency), nilIfEmpty(n.URL), nilIfEmpty(n.Status), n.Keywords,
		nilIfEmpty(n.AwardWinnerName), n.AwardValue, n.AwardDate, n.NumberTendersReceived, marshalOrNil(n.AwardCriteria),
		marshalOrNil(n.RawData),
	)
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return nil
}

// ReplaceChildren deletes and reinserts a notice's lots and additional CPV
// codes, so a republication with fewer lots leaves no stale rows behind.
func (s *Store) ReplaceChildren(ctx context.Context, noticeID uuid.UUID, lots []models.Lot, cpvs []string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM notice_lots WHERE notice_id = $1", noticeID); err != nil {
		return fmt.Errorf("delete lots: %w", err)
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM notice_cpv_additional WHERE notice_id = $1", noticeID); err != nil {
		return fmt.Errorf("delete additional cpvs: %w", err)
	}
	for _, lot := range lots {
		if _, err := s.db.Exec(ctx,
			"INSERT INTO notice_lots (notice_id, lot_number, title, description) VALUES ($1, $2, $3, $4)",
			noticeID, nilIfEmpty(lot.LotNumber), lot.Title, lot.Description); err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}
	}
	for _, code := range cpvs {
		if code == "" {
			continue
		}
		if _, err := s.db.Exec(ctx,
			"INSERT INTO notice_cpv_additional (notice_id, cpv_code) VALUES ($1, $2)",
			noticeID, code); err != nil {
			return fmt.Errorf("insert additional cpv: %w", err)
		}
	}
	return nil
}

// DeleteNotice removes a notice; children go first so the delete never
// trips over constraint ordering.
func (s *Store) DeleteNotice(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM notice_lots WHERE notice_id = $1", id); err != nil {
		return fmt.Errorf("delete lots: %w", err)
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM notice_cpv_additional WHERE notice_id = $1", id); err != nil {
		return fmt.Errorf("delete additional cpvs: %w", err)
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM notices WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}

// ListNoticesWithRaw streams notices that still carry an original payload,
// for the backfill engine. A zero limit means no cap.
func (s *Store) ListNoticesWithRaw(ctx context.Context, source models.Source, limit int) ([]models.Notice, error) {
	sql := fmt.Sprintf(`SELECT %s FROM notices WHERE raw_data IS NOT NULL AND ($1 = '' OR source = $1) ORDER BY created_at ASC`, noticeCols)
	args := []any{string(source)}
	if limit > 0 {
		sql += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("backfill query failed: %w", err)
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		n, err := scanNotice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("backfill scan failed: %w", err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("backfill iteration failed: %w", err)
	}
	for i := range notices {
		if err := s.loadChildren(ctx, &notices[i]); err != nil {
			return nil, err
		}
	}
	return notices, nil
}

// ListAwardOrphans returns award-result notices that have not been merged
// into a parent contract notice yet.
func (s *Store) ListAwardOrphans(ctx context.Context, limit int) ([]models.Notice, error) {
	sql := fmt.Sprintf(`SELECT %s FROM notices
		WHERE COALESCE(notice_type,'') IN ('award','result','contractAwardNotice')
		ORDER BY created_at ASC`, noticeCols)
	var args []any
	if limit > 0 {
		sql += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("orphan query failed: %w", err)
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		n, err := scanNotice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("orphan scan failed: %w", err)
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// DedupCandidate is the projection the duplicate-cleanup pass groups on.
type DedupCandidate struct {
	ID              uuid.UUID
	Source          models.Source
	Title           string
	CPVCode         string
	PublicationDate *time.Time
	CreatedAt       time.Time
}

// ListDedupCandidates returns the grouping projection for one source.
func (s *Store) ListDedupCandidates(ctx context.Context, source models.Source) ([]DedupCandidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source, title, COALESCE(cpv_code,''), publication_date, created_at
		FROM notices
		WHERE source = $1
		ORDER BY title, cpv_code, publication_date DESC NULLS LAST, created_at DESC`, source)
	if err != nil {
		return nil, fmt.Errorf("dedup query failed: %w", err)
	}
	defer rows.Close()

	var out []DedupCandidate
	for rows.Next() {
		var c DedupCandidate
		if err := rows.Scan(&c.ID, &c.Source, &c.Title, &c.CPVCode, &c.PublicationDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("dedup scan failed: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListNoticesCreatedAfter returns match candidates for one watchlist run,
// children loaded so CPV prefix checks see the additional codes.
func (s *Store) ListNoticesCreatedAfter(ctx context.Context, after time.Time, sources []string) ([]models.Notice, error) {
	sql := fmt.Sprintf(`SELECT %s FROM notices WHERE created_at > $1`, noticeCols)
	args := []any{after}
	if len(sources) > 0 {
		sql += " AND source = ANY($2)"
		args = append(args, sources)
	}
	sql += " ORDER BY created_at ASC"

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		n, err := scanNotice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("candidate scan failed: %w", err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate iteration failed: %w", err)
	}
	for i := range notices {
		if err := s.loadChildren(ctx, &notices[i]); err != nil {
			return nil, err
		}
	}
	return notices, nil
}

// RefreshSearchProjection recomputes the denormalized full-text search
// vector in one bulk statement.
func (s *Store) RefreshSearchProjection(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notices SET search_vector =
			setweight(to_tsvector('simple', COALESCE(title,'')), 'A') ||
			setweight(to_tsvector('simple', COALESCE(description,'')), 'B') ||
			setweight(to_tsvector('simple', array_to_string(keywords, ' ')), 'C')`)
	if err != nil {
		return fmt.Errorf("refresh search projection: %w", err)
	}
	return nil
}

// ListParams filters the notice browse endpoint.
type ListParams struct {
	Query  string
	Source string
	Type   string
	Limit  int
	Offset int
}

type ListResult struct {
	Notices []models.Notice `json:"notices"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func (s *Store) ListNotices(ctx context.Context, params ListParams) (*ListResult, error) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('simple', $%d) OR title ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.Type != "" {
		where += fmt.Sprintf(" AND notice_type = $%d", argIdx)
		args = append(args, params.Type)
		argIdx++
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM notices "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	sql := fmt.Sprintf("SELECT %s FROM notices %s ORDER BY publication_date DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d",
		noticeCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	notices := []models.Notice{}
	for rows.Next() {
		n, err := scanNotice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		n.RawData = nil // keep listings light
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{Notices: notices, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM notices").Scan(&total); err != nil {
		return nil, err
	}
	stats["total"] = total

	perSource := map[string]int{}
	rows, err := s.db.Query(ctx, "SELECT source, COUNT(*) FROM notices GROUP BY source")
	if err == nil {
		for rows.Next() {
			var src string
			var count int
			if scanErr := rows.Scan(&src, &count); scanErr == nil {
				perSource[src] = count
			}
		}
		rows.Close()
	}
	stats["per_source"] = perSource

	var matches int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM watchlist_matches").Scan(&matches); err == nil {
		stats["matches"] = matches
	}
	var watchlists int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM watchlists WHERE enabled").Scan(&watchlists); err == nil {
		stats["enabled_watchlists"] = watchlists
	}

	return stats, nil
}
