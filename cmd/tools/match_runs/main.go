// Runs one watchlist matching pass and prints recent import runs, so an
// operator can see both halves of the pipeline at a glance.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/match"
	"github.com/bverbist/tenderwatch/internal/notify"
)

func main() {
	rescore := flag.Bool("rescore", false, "recompute scores of existing matches instead of a match run")
	flag.Parse()

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	engine := match.NewEngine(store, nil, notify.NoopDispatcher{}, logger)

	if *rescore {
		result, err := engine.Rescore(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("rescore: matches=%d updated=%d errors=%d", result.Matches, result.Updated, len(result.Errors))
	} else {
		result, err := engine.Run(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("match run: watchlists=%d candidates=%d new=%d errors=%d",
			result.Watchlists, result.Candidates, result.NewMatches, len(result.Errors))
		for _, e := range result.Errors {
			log.Printf("error: %s", e)
		}
	}

	runs, err := store.ListImportRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Created", "Updated", "Skipped", "Errors", "Duration", "Started At"})
	for _, run := range runs {
		duration := "Running..."
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			run.Source, run.Status, run.Created, run.Updated, run.Skipped, run.Errors,
			duration, run.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
