package controllers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"anivote-backend/database"
	"anivote-backend/period"
	"anivote-backend/voting"
)

type TallyRequest struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
	Week    int `json:"week"`
}

type ShadowBanRequest struct {
	IPHash string `json:"ipHash"`
	Note   string `json:"note"`
}

type ImportCandidatesRequest struct {
	Year    int    `json:"year"`
	Quarter int    `json:"quarter"`
	Week    int    `json:"week"`
	RawCSV  string `json:"rawCsv"`
}

// tallyTargetPeriod picks the period a tally request closes: the explicit
// (year, quarter, week) when given, otherwise the week that just ended.
// Defaulting to the open week would publish a mid-week partial ranking.
func tallyTargetPeriod(now time.Time, year, quarter, week int) (period.Period, error) {
	if year != 0 || quarter != 0 || week != 0 {
		return resolver.ResolveYQW(year, quarter, week)
	}
	current, err := resolver.Resolve(now)
	if err != nil {
		return period.Period{}, err
	}
	return resolver.Resolve(current.Start.Add(-time.Minute))
}

// RunTally handles POST /api/admin/tally. It aggregates the period's
// eligible submissions, ranks them against the previous period's published
// snapshots and publishes the result atomically. Safe to rerun: the same
// inputs produce and republish the identical snapshot set.
func RunTally(c *fiber.Ctx) error {
	var req TallyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	p, err := tallyTargetPeriod(time.Now(), req.Year, req.Quarter, req.Week)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No such voting period", "code": voting.CodePeriodNotFound,
		})
	}

	ctx := c.Context()
	repo := voting.NewPostgresRepository(database.DB)

	cands, err := repo.ListCandidates(ctx, p.ID())
	if err != nil {
		log.Println("load catalog failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load candidates"})
	}

	eligible, err := repo.ListEligible(ctx, p.ID())
	if err != nil {
		log.Println("load eligible submissions failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load submissions"})
	}

	prevID := ""
	prev := map[string]voting.RankSnapshot{}
	if prevPeriod, err := resolver.Resolve(p.Start.Add(-time.Minute)); err == nil {
		prevID = prevPeriod.ID()
		prevSnaps, err := repo.Snapshots(ctx, prevID)
		if err != nil {
			log.Println("load previous snapshots failed:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load previous ranking"})
		}
		for _, s := range prevSnaps {
			prev[s.SeriesKey] = s
		}
	}

	snaps := voting.BuildSnapshots(p, cands, eligible, prev, validator.TopN())

	if err := repo.PublishSnapshots(ctx, p.ID(), prevID, snaps); err != nil {
		log.Println("publish snapshots failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to publish ranking"})
	}

	return c.JSON(fiber.Map{
		"periodId":    p.ID(),
		"candidates":  len(cands),
		"submissions": len(eligible),
		"snapshots":   len(snaps),
	})
}

// AddShadowBan handles POST /api/admin/shadow-bans. Banned voters keep
// voting normally; their submissions are silently excluded from tallies.
func AddShadowBan(c *fiber.Ctx) error {
	var req ShadowBanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.IPHash = strings.TrimSpace(req.IPHash)
	if req.IPHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ipHash is required"})
	}

	if _, err := database.DB.Exec(`
		INSERT INTO shadow_bans (ip_hash, note)
		VALUES ($1, $2)
		ON CONFLICT (ip_hash) DO UPDATE SET note = EXCLUDED.note
	`, req.IPHash, req.Note); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add shadow ban"})
	}

	// Flag any submissions already recorded from this IP in open periods.
	if _, err := database.DB.Exec(`
		UPDATE submissions SET blocked = TRUE, updated_at = NOW() WHERE ip_hash = $1
	`, req.IPHash); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to flag submissions"})
	}

	return c.JSON(fiber.Map{"message": "Shadow ban recorded"})
}

// RemoveShadowBan handles DELETE /api/admin/shadow-bans/:ipHash.
func RemoveShadowBan(c *fiber.Ctx) error {
	ipHash := strings.TrimSpace(c.Params("ipHash"))
	if ipHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ipHash is required"})
	}

	if _, err := database.DB.Exec(`DELETE FROM shadow_bans WHERE ip_hash = $1`, ipHash); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove shadow ban"})
	}
	if _, err := database.DB.Exec(`
		UPDATE submissions SET blocked = FALSE, updated_at = NOW() WHERE ip_hash = $1
	`, ipHash); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unflag submissions"})
	}

	return c.JSON(fiber.Map{"message": "Shadow ban removed"})
}

// StrikeCandidate handles DELETE /api/admin/candidates/:id. The candidate
// leaves the catalog and its ballots are removed from every submission;
// the submissions themselves stay.
func StrikeCandidate(c *fiber.Ctx) error {
	candidateID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || candidateID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid candidate id"})
	}

	repo := voting.NewPostgresRepository(database.DB)
	removed, err := repo.DeactivateCandidate(c.Context(), candidateID)
	if err != nil {
		log.Println("candidate strike failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to strike candidate"})
	}

	return c.JSON(fiber.Map{"candidateId": candidateID, "ballotsRemoved": removed})
}

// ImportCandidates handles POST /api/admin/candidates/import with inline
// CSV, the same shape the one-shot importer under cmd/ consumes.
func ImportCandidates(c *fiber.Ctx) error {
	var req ImportCandidatesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if strings.TrimSpace(req.RawCSV) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rawCsv is required"})
	}

	p, err := resolver.ResolveYQW(req.Year, req.Quarter, req.Week)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No such voting period", "code": voting.CodePeriodNotFound,
		})
	}

	cands, err := voting.ParseCandidateCSV(strings.NewReader(req.RawCSV))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	repo := voting.NewPostgresRepository(database.DB)
	imported, err := repo.ImportCandidates(c.Context(), p.ID(), cands)
	if err != nil {
		log.Println("candidate import failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to import candidates"})
	}

	return c.JSON(fiber.Map{"periodId": p.ID(), "imported": imported})
}
