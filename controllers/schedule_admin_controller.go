package controllers

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
)

// CandidateProposal is a scraped schedule row an admin can turn into a
// catalog candidate.
type CandidateProposal struct {
	Title   string `json:"title"`
	Episode *int   `json:"episode,omitempty"`
	AirTime string `json:"airTime,omitempty"` // RFC 3339, ready for the CSV importer
}

type scheduleCacheEntry struct {
	FetchedAt time.Time
	Proposals []CandidateProposal
}

var (
	scheduleCacheMu sync.Mutex
	scheduleCache   = map[string]scheduleCacheEntry{} // key: schedule day ("monday", ...)
)

const scheduleCacheTTL = 10 * time.Minute

var reEpisode = regexp.MustCompile(`(?i)#\s*(\d+)|ep(?:isode)?\.?\s*(\d+)`)

// GetScheduleCandidates handles
// GET /api/admin/schedule/candidates?day=monday&title=frieren
// It scrapes the configured weekly schedule page and proposes candidate rows,
// optionally filtered by a loose title match.
func GetScheduleCandidates(c *fiber.Ctx) error {
	day := strings.ToLower(strings.TrimSpace(c.Query("day")))
	if day == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "day query param is required"})
	}

	proposals, err := scheduleGetOrFetchDay(day)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch schedule page"})
	}

	filter := normalizeLoose(c.Query("title"))
	if filter != "" {
		filtered := make([]CandidateProposal, 0, len(proposals))
		for _, p := range proposals {
			if strings.Contains(normalizeLoose(p.Title), filter) {
				filtered = append(filtered, p)
			}
		}
		proposals = filtered
	}

	return c.JSON(proposals)
}

func scheduleGetOrFetchDay(day string) ([]CandidateProposal, error) {
	scheduleCacheMu.Lock()
	entry, ok := scheduleCache[day]
	scheduleCacheMu.Unlock()
	if ok && time.Since(entry.FetchedAt) < scheduleCacheTTL {
		return entry.Proposals, nil
	}

	base := os.Getenv("SCHEDULE_SOURCE_URL")
	if base == "" {
		return nil, fmt.Errorf("SCHEDULE_SOURCE_URL is not set")
	}

	resp, err := http.Get(strings.TrimRight(base, "/") + "/" + day)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	proposals := make([]CandidateProposal, 0, 32)
	doc.Find(".js-schedule-anime").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(".schedule-title a").First().Text())
		if title == "" {
			return
		}

		p := CandidateProposal{Title: title}
		episodeText := strings.TrimSpace(s.Find(".schedule-episode").First().Text())
		if m := reEpisode.FindStringSubmatch(episodeText); m != nil {
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			if n, err := strconv.Atoi(raw); err == nil {
				p.Episode = &n
			}
		}
		if dt, ok := s.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(dt)); err == nil {
				p.AirTime = parsed.Format(time.RFC3339)
			}
		}
		proposals = append(proposals, p)
	})

	scheduleCacheMu.Lock()
	scheduleCache[day] = scheduleCacheEntry{FetchedAt: time.Now(), Proposals: proposals}
	scheduleCacheMu.Unlock()

	return proposals, nil
}

// normalizeLoose lowercases and strips everything but letters and digits so
// titles compare across punctuation and spacing differences.
func normalizeLoose(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
