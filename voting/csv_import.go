package voting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"anivote-backend/models"
)

// ParseCandidateCSV reads candidate rows for a period from CSV. Required
// column: title. Optional: episode (integer) and air_time (RFC 3339), both
// needed for episode-level star voting, and series_key, the cross-period
// identity (derived from the title when the column is absent or blank).
func ParseCandidateCSV(reader io.Reader) ([]models.Candidate, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv must include a header row and at least one data row")
	}

	headers := make(map[string]int, len(records[0]))
	for idx, col := range records[0] {
		headers[strings.ToLower(strings.TrimSpace(col))] = idx
	}

	if _, ok := headers["title"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "title")
	}

	candidates := make([]models.Candidate, 0, len(records)-1)
	for i, record := range records[1:] {
		lineNo := i + 2

		title := strings.TrimSpace(readValue(record, headers["title"]))
		if title == "" {
			return nil, fmt.Errorf("line %d title: value is required", lineNo)
		}

		seriesKey := ""
		if idx, ok := headers["series_key"]; ok {
			seriesKey = strings.TrimSpace(readValue(record, idx))
		}
		if seriesKey == "" {
			seriesKey = models.DeriveSeriesKey(title)
		}

		var episode *int
		if idx, ok := headers["episode"]; ok {
			value := strings.TrimSpace(readValue(record, idx))
			if value != "" {
				parsed, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("line %d episode: invalid integer %q", lineNo, value)
				}
				episode = &parsed
			}
		}

		var airTime *time.Time
		if idx, ok := headers["air_time"]; ok {
			value := strings.TrimSpace(readValue(record, idx))
			if value != "" {
				parsed, err := time.Parse(time.RFC3339, value)
				if err != nil {
					return nil, fmt.Errorf("line %d air_time: invalid timestamp %q", lineNo, value)
				}
				airTime = &parsed
			}
		}

		candidates = append(candidates, models.Candidate{
			SeriesKey: seriesKey,
			Title:     title,
			Episode:   episode,
			AirTime:   airTime,
			Active:    true,
		})
	}

	return candidates, nil
}

func readValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
