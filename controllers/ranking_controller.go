package controllers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"anivote-backend/database"
	"anivote-backend/voting"
)

// GetRanking handles GET /api/ranking?year=&quarter=&week=.
// Without an explicit period it serves the most recently published tally.
// Only published snapshot sets are ever visible.
func GetRanking(c *fiber.Ctx) error {
	repo := voting.NewPostgresRepository(database.DB)

	var periodID string
	if c.Query("year") != "" {
		year, _ := strconv.Atoi(c.Query("year"))
		quarter, _ := strconv.Atoi(c.Query("quarter"))
		week, _ := strconv.Atoi(c.Query("week"))
		p, err := resolver.ResolveYQW(year, quarter, week)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No such voting period", "code": voting.CodePeriodNotFound,
			})
		}
		periodID = p.ID()
	} else {
		var err error
		periodID, err = repo.LatestPublishedPeriod(c.Context())
		if err != nil {
			log.Println("latest publication lookup failed:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load ranking"})
		}
		if periodID == "" {
			return c.JSON(fiber.Map{"periodId": "", "rankings": []voting.RankSnapshot{}})
		}
	}

	snaps, err := repo.Snapshots(c.Context(), periodID)
	if err != nil {
		log.Println("snapshot query failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load ranking"})
	}
	if snaps == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ranking not published for this period"})
	}

	return c.JSON(fiber.Map{"periodId": periodID, "rankings": snaps})
}
