// Runs one import pass over both upstream sources and prints the
// per-source counters. Useful for seeding a fresh database without
// starting the server.
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
	term := flag.String("term", "", "optional free-text search term")
	registryPath := flag.String("registry", "", "override path to sources.yaml")
	flag.Parse()

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		log.Fatal(err)
	}

	registry, err := ingest.LoadRegistry(*registryPath)
	if err != nil {
		log.Fatal(err)
	}
	nationalCfg := registry.Lookup("national")
	euCfg := registry.Lookup("eu")
	if nationalCfg == nil || euCfg == nil {
		log.Fatal("sources.yaml must define the national and eu sources")
	}

	national := ingest.NewNationalConnector(nationalCfg)
	eu := ingest.NewTEDConnector(euCfg)
	importer := ingest.NewImporter(db.NewStore(pool), national, national, eu, logger)
	importer.Fetch[models.SourceNational] = nationalCfg.Fetch.Options()
	importer.Fetch[models.SourceEU] = euCfg.Fetch.Options()

	reports := importer.ImportAll(ctx, *term)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Pages", "Created", "Updated", "Skipped", "Errors", "Fatal"})
	for source, report := range reports {
		t.AppendRow(table.Row{
			source,
			report.Pages,
			report.Result.Created,
			report.Result.Updated,
			report.Result.Skipped,
			len(report.Result.Errors),
			report.Err,
		})
	}
	t.Render()
}
