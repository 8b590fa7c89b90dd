// Package scheduler wires up the cron jobs that keep the notice store
// current: periodic imports, the nightly reconciliation pass, and the
// watchlist match runs that follow each import.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/config"
	"github.com/bverbist/tenderwatch/internal/ingest"
	"github.com/bverbist/tenderwatch/internal/match"
	"github.com/bverbist/tenderwatch/internal/models"
)

// Scheduler wraps robfig/cron and owns the periodic pipeline order:
// import, backfill, orphan merge, match.
type Scheduler struct {
	cron     *cron.Cron
	importer *ingest.Importer
	backfill *ingest.Backfiller
	cleaner  *ingest.Cleaner
	matcher  *match.Engine
	cfg      *config.Config
	log      *zap.Logger
}

func New(cfg *config.Config, importer *ingest.Importer, backfill *ingest.Backfiller, cleaner *ingest.Cleaner, matcher *match.Engine, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		importer: importer,
		backfill: backfill,
		cleaner:  cleaner,
		matcher:  matcher,
		cfg:      cfg,
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler. The match run has
// its own schedule offset from the import so it sees the freshly
// committed notices of the preceding import.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Ingest.ImportSchedule, func() { s.runImport(ctx) }); err != nil {
		return fmt.Errorf("cron import job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.Match.Schedule, func() { s.runMatch(ctx) }); err != nil {
		return fmt.Errorf("cron match job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.Ingest.CleanupSchedule, func() { s.runCleanup(ctx) }); err != nil {
		return fmt.Errorf("cron cleanup job: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("import", s.cfg.Ingest.ImportSchedule),
		zap.String("match", s.cfg.Match.Schedule),
		zap.String("cleanup", s.cfg.Ingest.CleanupSchedule))
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runImport(ctx context.Context) {
	s.log.Info("import cycle started")
	reports := s.importer.ImportAll(ctx, "")
	for source, report := range reports {
		if report.Err != "" {
			s.log.Warn("import source failed", zap.String("source", string(source)), zap.String("error", report.Err))
			continue
		}
		s.log.Info("import source done",
			zap.String("source", string(source)),
			zap.Int("created", report.Result.Created),
			zap.Int("updated", report.Result.Updated),
			zap.Int("skipped", report.Result.Skipped),
			zap.Int("errors", len(report.Result.Errors)))
	}

	for _, source := range []models.Source{models.SourceNational, models.SourceEU} {
		result, err := s.backfill.Backfill(ctx, ingest.BackfillParams{Source: source, Limit: s.cfg.Ingest.BackfillLimit})
		if err != nil {
			s.log.Warn("backfill failed", zap.String("source", string(source)), zap.Error(err))
			continue
		}
		s.log.Info("backfill done",
			zap.String("source", string(source)),
			zap.Int("processed", result.Processed),
			zap.Int("enriched", result.Enriched))
	}
	s.log.Info("import cycle complete")
}

func (s *Scheduler) runMatch(ctx context.Context) {
	result, err := s.matcher.Run(ctx)
	if err != nil {
		s.log.Warn("match run failed", zap.Error(err))
		return
	}
	s.log.Info("match run complete",
		zap.Int("watchlists", result.Watchlists),
		zap.Int("candidates", result.Candidates),
		zap.Int("new_matches", result.NewMatches),
		zap.Int("errors", len(result.Errors)))
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	merged, err := s.cleaner.MergeOrphans(ctx, 0)
	if err != nil {
		s.log.Warn("orphan merge failed", zap.Error(err))
	} else {
		s.log.Info("orphan merge complete",
			zap.Int("merged", merged.Merged),
			zap.Int("no_parent", merged.NoParent),
			zap.Int("no_procedure", merged.NoProcedure))
	}

	for _, source := range []models.Source{models.SourceNational, models.SourceEU} {
		result, err := s.cleaner.CleanupDuplicates(ctx, source, s.cfg.Ingest.DryRunCleanup)
		if err != nil {
			s.log.Warn("duplicate cleanup failed", zap.String("source", string(source)), zap.Error(err))
			continue
		}
		s.log.Info("duplicate cleanup complete",
			zap.String("source", string(source)),
			zap.Bool("dry_run", result.DryRun),
			zap.Int("groups", result.Groups),
			zap.Int("deleted", result.Deleted))
	}
}
