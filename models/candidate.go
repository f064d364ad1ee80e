package models

import (
	"strings"
	"time"
	"unicode"
)

// Candidate is an anime (or a specific episode of one) eligible for voting
// in exactly one period. The catalog owns candidates; the voting core only
// reads them. SeriesKey ties one work's candidates together across periods:
// the row id is fresh per period, the series key is not.
type Candidate struct {
	ID        int64      `json:"id"`
	PeriodID  string     `json:"periodId"`
	SeriesKey string     `json:"seriesKey"`
	Title     string     `json:"title"`
	Episode   *int       `json:"episode,omitempty"`
	AirTime   *time.Time `json:"airTime,omitempty"`
	Active    bool       `json:"active"`
}

// DeriveSeriesKey normalizes a title into the cross-period series identity:
// lowercased, letters and digits only. "Frieren: Beyond Journey's End" and
// "Frieren - Beyond Journey's End" collapse to the same key, so a re-imported
// catalog keeps last week's movement history.
func DeriveSeriesKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
