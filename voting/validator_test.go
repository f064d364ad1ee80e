package voting

import (
	"errors"
	"testing"
	"time"

	"anivote-backend/models"
	"anivote-backend/period"
)

var (
	weekStart = time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	testWeek  = period.Period{Year: 2025, Quarter: 1, Week: 2, Start: weekStart, End: weekStart.AddDate(0, 0, 7)}
	midWeek   = weekStart.Add(48 * time.Hour)
)

func intPtr(n int) *int { return &n }

func testCatalog() map[int64]models.Candidate {
	air := weekStart.Add(24 * time.Hour)
	return map[int64]models.Candidate{
		1: {ID: 1, PeriodID: testWeek.ID(), Title: "Alpha", Active: true},
		2: {ID: 2, PeriodID: testWeek.ID(), Title: "Beta", Active: true},
		3: {ID: 3, PeriodID: testWeek.ID(), Title: "Gamma", Episode: intPtr(5), AirTime: &air, Active: true},
		4: {ID: 4, PeriodID: testWeek.ID(), Title: "Delta", Active: false},
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError %s, got %v", code, err)
	}
	if verr.Code != code {
		t.Fatalf("expected code %s, got %s", code, verr.Code)
	}
}

func TestValidateAcceptsBasicBallots(t *testing.T) {
	v := NewValidator(DefaultConfig())

	ballots, blocked, err := v.Validate(midWeek, testWeek, []Ballot{
		{CandidateID: 1, Score: 3},
		{CandidateID: 2, Score: 7, Kind: KindRank},
	}, testCatalog(), false)
	if err != nil {
		t.Fatalf("expected valid ballots, got %v", err)
	}
	if blocked {
		t.Fatal("unbanned voter must not be flagged")
	}
	if len(ballots) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(ballots))
	}
	if ballots[0].Kind != KindRank {
		t.Fatalf("missing kind must default to rank, got %q", ballots[0].Kind)
	}
}

func TestValidateRejectsClosedPeriod(t *testing.T) {
	v := NewValidator(DefaultConfig())

	_, _, err := v.Validate(testWeek.End, testWeek, []Ballot{{CandidateID: 1, Score: 1}}, testCatalog(), false)
	assertCode(t, err, CodeVoteClosed)

	_, _, err = v.Validate(weekStart.Add(-time.Second), testWeek, []Ballot{{CandidateID: 1, Score: 1}}, testCatalog(), false)
	assertCode(t, err, CodeVoteClosed)
}

func TestValidateRejectsEmptyBallots(t *testing.T) {
	v := NewValidator(DefaultConfig())

	_, _, err := v.Validate(midWeek, testWeek, nil, testCatalog(), false)
	assertCode(t, err, CodeEmptyBallots)
}

func TestValidateRejectsDuplicateCandidate(t *testing.T) {
	v := NewValidator(DefaultConfig())

	_, _, err := v.Validate(midWeek, testWeek, []Ballot{
		{CandidateID: 1, Score: 2},
		{CandidateID: 1, Score: 3},
	}, testCatalog(), false)
	assertCode(t, err, CodeDuplicateCandidate)
}

func TestValidateRejectsUnknownAndInactiveCandidates(t *testing.T) {
	v := NewValidator(DefaultConfig())

	_, _, err := v.Validate(midWeek, testWeek, []Ballot{{CandidateID: 99, Score: 1}}, testCatalog(), false)
	assertCode(t, err, CodeInvalidCandidate)

	_, _, err = v.Validate(midWeek, testWeek, []Ballot{{CandidateID: 4, Score: 1}}, testCatalog(), false)
	assertCode(t, err, CodeInvalidCandidate)
}

func TestValidateEnforcesVoteCap(t *testing.T) {
	v := NewValidator(DefaultConfig())

	// A replacement set over the cap is rejected even though it replaces a
	// previously valid submission: the cap applies to the proposed set.
	_, _, err := v.Validate(midWeek, testWeek, []Ballot{
		{CandidateID: 1, Score: 6},
		{CandidateID: 2, Score: 5},
	}, testCatalog(), false)
	assertCode(t, err, CodeVoteLimitSurpassed)

	_, _, err = v.Validate(midWeek, testWeek, []Ballot{{CandidateID: 1, Score: 0}}, testCatalog(), false)
	assertCode(t, err, CodeVoteLimitSurpassed)

	// Exactly at the cap is fine.
	if _, _, err := v.Validate(midWeek, testWeek, []Ballot{
		{CandidateID: 1, Score: 5},
		{CandidateID: 2, Score: 5},
	}, testCatalog(), false); err != nil {
		t.Fatalf("expected set at the cap to pass, got %v", err)
	}
}

func TestValidateStarVoteWindow(t *testing.T) {
	v := NewValidator(DefaultConfig())
	catalog := testCatalog()
	air := *catalog[3].AirTime

	// before the episode airs
	_, _, err := v.Validate(air.Add(-time.Hour), testWeek, []Ballot{{CandidateID: 3, Score: 5, Kind: KindStar}}, catalog, false)
	assertCode(t, err, CodeVoteClosed)

	// inside the 36 hour window
	if _, _, err := v.Validate(air.Add(35*time.Hour), testWeek, []Ballot{{CandidateID: 3, Score: 5, Kind: KindStar}}, catalog, false); err != nil {
		t.Fatalf("expected star vote inside window to pass, got %v", err)
	}

	// window closed
	_, _, err = v.Validate(air.Add(36*time.Hour), testWeek, []Ballot{{CandidateID: 3, Score: 5, Kind: KindStar}}, catalog, false)
	assertCode(t, err, CodeVoteClosed)

	// star votes need an air time
	_, _, err = v.Validate(midWeek, testWeek, []Ballot{{CandidateID: 1, Score: 5, Kind: KindStar}}, catalog, false)
	assertCode(t, err, CodeInvalidCandidate)
}

func TestValidateFlagsShadowBannedSilently(t *testing.T) {
	v := NewValidator(DefaultConfig())

	ballots, blocked, err := v.Validate(midWeek, testWeek, []Ballot{{CandidateID: 1, Score: 3}}, testCatalog(), true)
	if err != nil {
		t.Fatalf("shadow-banned voters must not see an error, got %v", err)
	}
	if !blocked {
		t.Fatal("shadow-banned submission must be flagged blocked")
	}
	if len(ballots) != 1 {
		t.Fatalf("ballots must be accepted as usual, got %d", len(ballots))
	}
}

func TestTimeLeft(t *testing.T) {
	v := NewValidator(DefaultConfig())
	catalog := testCatalog()
	air := *catalog[3].AirTime

	sub := &Submission{Ballots: []Ballot{
		{CandidateID: 1, Score: 3, Kind: KindRank},
		{CandidateID: 3, Score: 5, Kind: KindStar},
	}}

	if got := v.TimeLeft(air.Add(30*time.Hour), sub, catalog); got != 6*60*60 {
		t.Fatalf("expected 6 hours left, got %d seconds", got)
	}
	if got := v.TimeLeft(air.Add(40*time.Hour), sub, catalog); got != 0 {
		t.Fatalf("expected 0 after expiry, got %d", got)
	}

	noStars := &Submission{Ballots: []Ballot{{CandidateID: 1, Score: 3, Kind: KindRank}}}
	if got := v.TimeLeft(midWeek, noStars, catalog); got != 0 {
		t.Fatalf("expected 0 without star votes, got %d", got)
	}
}
