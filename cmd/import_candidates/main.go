package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"anivote-backend/database"
	"anivote-backend/period"
	"anivote-backend/voting"
)

func main() {
	if os.Getenv("RENDER") == "" {
		_ = godotenv.Load()
	}

	var (
		csvPath = flag.String("csv", "", "Path to CSV file containing candidate rows (title, episode, air_time)")
		year    = flag.Int("year", 0, "Voting year")
		quarter = flag.Int("quarter", 0, "Quarter index (1-4)")
		week    = flag.Int("week", 0, "Week index within the quarter")
	)
	flag.Parse()

	if err := validateFlags(*csvPath, *year, *quarter, *week); err != nil {
		log.Fatal(err)
	}

	resolver := period.NewResolver(period.DefaultConfig())
	p, err := resolver.ResolveYQW(*year, *quarter, *week)
	if err != nil {
		log.Fatalf("no period for %d-%d-%d: %v", *year, *quarter, *week, err)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open csv file: %v", err)
	}
	defer file.Close()

	candidates, err := voting.ParseCandidateCSV(file)
	if err != nil {
		log.Fatalf("parse csv: %v", err)
	}

	database.ConnectDB()
	repo := voting.NewPostgresRepository(database.DB)

	imported, err := repo.ImportCandidates(context.Background(), p.ID(), candidates)
	if err != nil {
		log.Fatalf("import candidates: %v", err)
	}

	fmt.Printf("Imported %d candidates into period %s\n", imported, p.ID())
}

func validateFlags(csvPath string, year, quarter, week int) error {
	if csvPath == "" {
		return fmt.Errorf("--csv is required")
	}
	if year <= 0 {
		return fmt.Errorf("--year is required")
	}
	if quarter < 1 || quarter > 4 {
		return fmt.Errorf("--quarter must be between 1 and 4")
	}
	if week <= 0 {
		return fmt.Errorf("--week must be greater than 0")
	}
	return nil
}
