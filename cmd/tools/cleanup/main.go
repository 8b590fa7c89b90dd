// Reconciliation pass: folds orphaned award notices into their parent
// contract notices, then reports (or deletes) duplicate rows. Duplicate
// deletion defaults to dry-run.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/ingest"
	"github.com/bverbist/tenderwatch/internal/models"
)

func main() {
	limit := flag.Int("limit", 0, "max orphans to process, 0 for all")
	apply := flag.Bool("apply", false, "actually delete duplicates instead of listing them")
	flag.Parse()

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	cleaner := ingest.NewCleaner(db.NewStore(pool), logger)

	merged, err := cleaner.MergeOrphans(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("orphans: merged=%d no_parent=%d no_procedure=%d errors=%d",
		merged.Merged, merged.NoParent, merged.NoProcedure, len(merged.Errors))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Groups", "Deleted", "Dry Run"})
	for _, source := range []models.Source{models.SourceNational, models.SourceEU} {
		result, err := cleaner.CleanupDuplicates(ctx, source, !*apply)
		if err != nil {
			log.Printf("cleanup %s failed: %v", source, err)
			continue
		}
		t.AppendRow(table.Row{source, result.Groups, result.Deleted, result.DryRun})
		for _, victim := range result.Victims {
			log.Printf("[dry-run] would delete %s", victim)
		}
	}
	t.Render()
}
