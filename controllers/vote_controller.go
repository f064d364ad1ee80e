package controllers

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"anivote-backend/database"
	"anivote-backend/identity"
	"anivote-backend/models"
	"anivote-backend/period"
	"anivote-backend/voting"
)

const (
	voteCookieName = "vote_token"
	voteTimeout    = 3 * time.Second
)

var (
	resolver  = period.NewResolver(period.DefaultConfig())
	validator = voting.NewValidator(voting.DefaultConfig())
)

type CandidateScore struct {
	CandidateID int64  `json:"candidateId"`
	Score       int    `json:"score"`
	Kind        string `json:"kind"`
}

type VoteRequest struct {
	Year    int              `json:"year"`
	Quarter int              `json:"quarter"`
	Week    int              `json:"week"`
	Scores  []CandidateScore `json:"candidateScores"`
}

// SubmitVote handles POST /api/vote. Identity comes from the optional JWT
// member id, falling back to the anonymous vote cookie (issued here on first
// contact). A valid re-vote replaces the principal's existing ballots.
func SubmitVote(c *fiber.Ctx) error {
	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	now := time.Now()
	p, err := resolvePeriod(now, req.Year, req.Quarter, req.Week)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No such voting period", "code": voting.CodePeriodNotFound,
		})
	}

	memberID := 0
	if v, ok := c.Locals("member_id").(int); ok {
		memberID = v
	}
	cookieID := c.Cookies(voteCookieName)
	if memberID == 0 && cookieID == "" {
		cookieID = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     voteCookieName,
			Value:    cookieID,
			Expires:  now.AddDate(1, 0, 0),
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}

	principal, err := identity.ResolvePrincipal(memberID, cookieID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Could not identify voter", "code": voting.CodeIdentityRequired,
		})
	}

	ip := identity.ClientIP(c.Get("X-Forwarded-For"), c.Context().RemoteAddr().String())
	ipHash := identity.HashIP(ip, os.Getenv("IP_HASH_SECRET"), os.Getenv("IP_HASH_ENCODING"))

	// Fail closed on a slow store rather than commit partial ballots.
	ctx, cancel := context.WithTimeout(c.Context(), voteTimeout)
	defer cancel()

	repo := voting.NewPostgresRepository(database.DB)

	catalog, err := loadCatalog(ctx, repo, p.ID())
	if err != nil {
		log.Println("load catalog failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load candidates"})
	}

	banned, err := repo.IsShadowBanned(ctx, ipHash)
	if err != nil {
		log.Println("shadow ban lookup failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit vote"})
	}

	proposed := make([]voting.Ballot, 0, len(req.Scores))
	for _, s := range req.Scores {
		proposed = append(proposed, voting.Ballot{
			CandidateID: s.CandidateID,
			Score:       s.Score,
			Kind:        voting.BallotKind(s.Kind),
		})
	}

	ballots, blocked, err := validator.Validate(now, p, proposed, catalog, banned)
	if err != nil {
		var verr *voting.ValidationError
		if errors.As(err, &verr) {
			return c.Status(statusForCode(verr.Code)).JSON(fiber.Map{"error": verr.Message, "code": verr.Code})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit vote"})
	}

	sub := &voting.Submission{
		PeriodID:  p.ID(),
		Principal: principal,
		CookieID:  cookieID,
		IPHash:    ipHash,
		Blocked:   blocked,
		Ballots:   ballots,
	}
	if memberID > 0 {
		sub.MemberID = &memberID
	}

	id, err := repo.Upsert(ctx, sub)
	if err != nil {
		log.Println("vote upsert failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save vote"})
	}

	return c.JSON(fiber.Map{"submissionId": id, "periodId": p.ID()})
}

// GetMyVote handles GET /api/vote?year=&quarter=&week=. It returns the
// calling principal's current submission for the period, or 404 if none
// exists yet. Identity resolution mirrors SubmitVote, minus cookie issuance.
func GetMyVote(c *fiber.Ctx) error {
	now := time.Now()
	year, _ := strconv.Atoi(c.Query("year"))
	quarter, _ := strconv.Atoi(c.Query("quarter"))
	week, _ := strconv.Atoi(c.Query("week"))

	p, err := resolvePeriod(now, year, quarter, week)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No such voting period", "code": voting.CodePeriodNotFound,
		})
	}

	memberID := 0
	if v, ok := c.Locals("member_id").(int); ok {
		memberID = v
	}
	principal, err := identity.ResolvePrincipal(memberID, c.Cookies(voteCookieName))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Could not identify voter", "code": voting.CodeIdentityRequired,
		})
	}

	repo := voting.NewPostgresRepository(database.DB)
	sub, err := repo.Get(c.Context(), p.ID(), principal)
	if err != nil {
		log.Println("submission lookup failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load submission"})
	}
	if sub == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No submission for this period"})
	}

	return c.JSON(sub)
}

// GetVoteTimeLeft handles GET /api/vote/time-left?submissionId=...
// Reports 0 once the episode vote window has closed, never an error.
func GetVoteTimeLeft(c *fiber.Ctx) error {
	submissionID := c.Query("submissionId")
	if submissionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "submissionId query param is required"})
	}

	repo := voting.NewPostgresRepository(database.DB)
	sub, err := repo.GetByID(c.Context(), submissionID)
	if err != nil {
		log.Println("submission lookup failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load submission"})
	}
	if sub == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission not found"})
	}

	catalog, err := loadCatalog(c.Context(), repo, sub.PeriodID)
	if err != nil {
		log.Println("load catalog failed:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load candidates"})
	}

	return c.JSON(fiber.Map{"secondsLeft": validator.TimeLeft(time.Now(), sub, catalog)})
}

func resolvePeriod(now time.Time, year, quarter, week int) (period.Period, error) {
	if year != 0 || quarter != 0 || week != 0 {
		return resolver.ResolveYQW(year, quarter, week)
	}
	return resolver.Resolve(now)
}

func loadCatalog(ctx context.Context, repo *voting.PostgresRepository, periodID string) (map[int64]models.Candidate, error) {
	cands, err := repo.ListCandidates(ctx, periodID)
	if err != nil {
		return nil, err
	}
	catalog := make(map[int64]models.Candidate, len(cands))
	for _, cand := range cands {
		catalog[cand.ID] = cand
	}
	return catalog, nil
}

func statusForCode(code string) int {
	switch code {
	case voting.CodePeriodNotFound:
		return fiber.StatusNotFound
	case voting.CodeVoteClosed:
		return fiber.StatusConflict
	case voting.CodeIdentityRequired:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusBadRequest
	}
}
