// Re-derives canonical fields from the stored raw payloads and fills
// whatever is empty. Run after a mapper improvement to apply it to
// already-imported notices.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/ingest"
	"github.com/bverbist/tenderwatch/internal/models"
)

func main() {
	source := flag.String("source", "national", "source to backfill: national or eu")
	limit := flag.Int("limit", 500, "max notices to process")
	flag.Parse()

	if !models.ValidSource(models.Source(*source)) {
		log.Fatalf("unknown source %q", *source)
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	backfiller := ingest.NewBackfiller(db.NewStore(pool), nil, logger)
	result, err := backfiller.Backfill(ctx, ingest.BackfillParams{
		Source: models.Source(*source),
		Limit:  *limit,
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("processed=%d enriched=%d errors=%d", result.Processed, result.Enriched, len(result.Errors))

	fields := make([]string, 0, len(result.FieldsUpdated))
	for f := range result.FieldsUpdated {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Filled"})
	for _, f := range fields {
		t.AppendRow(table.Row{f, result.FieldsUpdated[f]})
	}
	t.Render()

	for _, e := range result.Errors {
		log.Printf("error %s: %s", e.Identifier, e.Message)
	}
}
