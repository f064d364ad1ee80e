package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"anivote-backend/database"
	"anivote-backend/period"
	"anivote-backend/voting"
)

// close_period is the periodic tally job. Without flags it closes the week
// that just ended; an explicit --year/--quarter/--week reruns any period,
// which is safe because a tally over the same eligible set republishes the
// identical snapshot set.
func main() {
	if os.Getenv("RENDER") == "" {
		_ = godotenv.Load()
	}

	var (
		year    = flag.Int("year", 0, "Voting year (default: the week that just ended)")
		quarter = flag.Int("quarter", 0, "Quarter index (1-4)")
		week    = flag.Int("week", 0, "Week index within the quarter")
	)
	flag.Parse()

	resolver := period.NewResolver(period.DefaultConfig())
	cfg := voting.DefaultConfig()

	var p period.Period
	var err error
	if *year != 0 || *quarter != 0 || *week != 0 {
		p, err = resolver.ResolveYQW(*year, *quarter, *week)
	} else {
		// the current week's start is the previous week's end
		var current period.Period
		current, err = resolver.Resolve(time.Now())
		if err == nil {
			p, err = resolver.Resolve(current.Start.Add(-time.Minute))
		}
	}
	if err != nil {
		log.Fatalf("resolve period: %v", err)
	}

	database.ConnectDB()
	repo := voting.NewPostgresRepository(database.DB)
	ctx := context.Background()

	candidates, err := repo.ListCandidates(ctx, p.ID())
	if err != nil {
		log.Fatalf("load candidates: %v", err)
	}

	eligible, err := repo.ListEligible(ctx, p.ID())
	if err != nil {
		log.Fatalf("load eligible submissions: %v", err)
	}

	prevID := ""
	prev := map[string]voting.RankSnapshot{}
	if prevPeriod, err := resolver.Resolve(p.Start.Add(-time.Minute)); err == nil {
		prevID = prevPeriod.ID()
		prevSnaps, err := repo.Snapshots(ctx, prevID)
		if err != nil {
			log.Fatalf("load previous snapshots: %v", err)
		}
		for _, s := range prevSnaps {
			prev[s.SeriesKey] = s
		}
	}

	snaps := voting.BuildSnapshots(p, candidates, eligible, prev, cfg.TopN)

	if err := repo.PublishSnapshots(ctx, p.ID(), prevID, snaps); err != nil {
		log.Fatalf("publish snapshots: %v", err)
	}

	fmt.Printf("Published %d snapshots for period %s (%d submissions)\n", len(snaps), p.ID(), len(eligible))
}
