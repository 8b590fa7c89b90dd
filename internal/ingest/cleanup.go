package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/models"
)

// Cleaner reconciles award notices with their parent contract notices and
// removes exact-duplicate rows. Both passes are re-run-safe: a second run
// over unchanged data merges and deletes nothing.
type Cleaner struct {
	Store *db.Store
	Log   *zap.Logger
}

func NewCleaner(store *db.Store, log *zap.Logger) *Cleaner {
	return &Cleaner{Store: store, Log: log}
}

// MergeOrphans finds award-result notices whose procedure points at an
// already-imported contract notice, folds their award fields into the
// parent, and deletes the now-redundant award row. Orphans with no
// discoverable parent or procedure are reported, never deleted: they may
// carry award data with no other home.
func (c *Cleaner) MergeOrphans(ctx context.Context, limit int) (MergeResult, error) {
	result := MergeResult{}

	orphans, err := c.Store.ListAwardOrphans(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("orphan load: %w", err)
	}

	txErr := c.Store.InTx(ctx, func(tx *db.Store) error {
		for _, orphan := range orphans {
			procedureID := resolveProcedureID(orphan)
			if procedureID == "" {
				result.NoProcedure++
				continue
			}

			parent, err := tx.GetParentByProcedure(ctx, orphan.Source, procedureID, orphan.ID)
			if err != nil {
				result.Errors = append(result.Errors, ItemError{Identifier: orphan.SourceID, Message: err.Error()})
				continue
			}
			if parent == nil {
				result.NoParent++
				continue
			}

			filled := mergeAwardIntoParent(parent, orphan)
			if err := tx.UpdateNotice(ctx, parent); err != nil {
				result.Errors = append(result.Errors, ItemError{Identifier: orphan.SourceID, Message: err.Error()})
				continue
			}
			if err := tx.DeleteNotice(ctx, orphan.ID); err != nil {
				result.Errors = append(result.Errors, ItemError{Identifier: orphan.SourceID, Message: err.Error()})
				continue
			}
			result.Merged++
			c.Log.Info("merged award orphan",
				zap.String("orphan", orphan.SourceID),
				zap.String("parent", parent.SourceID),
				zap.Strings("fields", filled))
		}
		return nil
	})
	if txErr != nil {
		return result, fmt.Errorf("orphan merge pass failed: %w", txErr)
	}
	return result, nil
}

// resolveProcedureID reads the procedure identifier from the column if
// present, otherwise digs it out of the stored raw payload.
func resolveProcedureID(n models.Notice) string {
	if n.ProcedureID != "" {
		return n.ProcedureID
	}
	raw := RawDoc(n.RawData)
	if len(raw) == 0 {
		return ""
	}
	return raw.FirstString(
		"procedure.id",
		"procedureId",
		"dossier.procedureId",
		"procedure-identifier",
		"procedure-id",
	)
}

// CleanupDuplicates groups one source's notices by (title, main CPV) and
// deletes everything but the top-ranked row in each group, ranked by
// publication date then creation time, newest first. The grouping key can
// in principle conflate two distinct tenders that share both values; the
// dry-run mode exists so an operator can review exactly that before
// deleting anything.
func (c *Cleaner) CleanupDuplicates(ctx context.Context, source models.Source, dryRun bool) (DedupResult, error) {
	result := DedupResult{DryRun: dryRun}

	candidates, err := c.Store.ListDedupCandidates(ctx, source)
	if err != nil {
		return result, fmt.Errorf("dedup load: %w", err)
	}

	groups := groupDuplicates(candidates)
	result.Groups = len(groups)

	if dryRun {
		for _, group := range groups {
			for _, victim := range group[1:] {
				result.Victims = append(result.Victims, victim.ID.String())
			}
		}
		result.Deleted = len(result.Victims)
		return result, nil
	}

	txErr := c.Store.InTx(ctx, func(tx *db.Store) error {
		for _, group := range groups {
			for _, victim := range group[1:] {
				if err := tx.DeleteNotice(ctx, victim.ID); err != nil {
					result.Errors = append(result.Errors, ItemError{Identifier: victim.ID.String(), Message: err.Error()})
					continue
				}
				result.Deleted++
			}
		}
		return nil
	})
	if txErr != nil {
		return result, fmt.Errorf("dedup pass failed: %w", txErr)
	}
	return result, nil
}

// groupDuplicates clusters candidates sharing (title, cpv) and orders
// each cluster best-first. Input is already sorted by the store query
// (title, cpv, publication_date desc, created_at desc), so clusters are
// contiguous and pre-ranked.
func groupDuplicates(candidates []db.DedupCandidate) [][]db.DedupCandidate {
	var groups [][]db.DedupCandidate
	var current []db.DedupCandidate

	sameKey := func(a, b db.DedupCandidate) bool {
		return a.Title == b.Title && a.CPVCode == b.CPVCode
	}

	for _, c := range candidates {
		if len(current) > 0 && !sameKey(current[0], c) {
			if len(current) > 1 {
				groups = append(groups, current)
			}
			current = nil
		}
		current = append(current, c)
	}
	if len(current) > 1 {
		groups = append(groups, current)
	}
	return groups
}
