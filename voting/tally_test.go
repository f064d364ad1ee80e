package voting

import (
	"reflect"
	"testing"
	"time"

	"anivote-backend/models"
	"anivote-backend/period"
)

func tallyPeriod(week int) period.Period {
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(week-2))
	return period.Period{Year: 2025, Quarter: 1, Week: week, Start: start, End: start.AddDate(0, 0, 7)}
}

func tallyCandidates() []models.Candidate {
	return []models.Candidate{
		{ID: 1, SeriesKey: "alpha", Title: "Alpha", Active: true},
		{ID: 2, SeriesKey: "beta", Title: "Beta", Active: true},
		{ID: 3, SeriesKey: "gamma", Title: "Gamma", Active: true},
	}
}

func submission(principal string, memberID *int, ballots ...Ballot) Submission {
	return Submission{ID: principal, Principal: principal, MemberID: memberID, Ballots: ballots}
}

func TestBuildSnapshotsTieBreaksAlphabetically(t *testing.T) {
	p := tallyPeriod(2)
	eligible := []Submission{
		submission("c:a", nil, Ballot{CandidateID: 2, Score: 5}, Ballot{CandidateID: 1, Score: 5}),
		submission("c:b", nil, Ballot{CandidateID: 1, Score: 5}, Ballot{CandidateID: 3, Score: 3}),
		submission("c:c", nil, Ballot{CandidateID: 2, Score: 5}),
	}

	snaps := BuildSnapshots(p, tallyCandidates(), eligible, nil, 10)
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}

	// Alpha and Beta both total 10; "Alpha" < "Beta" settles the tie.
	if snaps[0].Title != "Alpha" || snaps[0].Rank != 1 || snaps[0].Score != 10 {
		t.Fatalf("unexpected first snapshot: %+v", snaps[0])
	}
	if snaps[1].Title != "Beta" || snaps[1].Rank != 2 || snaps[1].Score != 10 {
		t.Fatalf("unexpected second snapshot: %+v", snaps[1])
	}
	if snaps[2].Title != "Gamma" || snaps[2].Rank != 3 || snaps[2].Score != 3 {
		t.Fatalf("unexpected third snapshot: %+v", snaps[2])
	}
}

func TestBuildSnapshotsCountsVoterSplit(t *testing.T) {
	p := tallyPeriod(2)
	member := 7
	eligible := []Submission{
		submission("m:7", &member, Ballot{CandidateID: 1, Score: 4}),
		submission("c:x", nil, Ballot{CandidateID: 1, Score: 2}),
	}

	snaps := BuildSnapshots(p, tallyCandidates(), eligible, nil, 10)
	top := snaps[0]
	if top.CandidateID != 1 || top.Score != 6 || top.Voters != 2 {
		t.Fatalf("unexpected aggregate: %+v", top)
	}
	if top.MemberVoters != 1 || top.AnonVoters != 1 {
		t.Fatalf("unexpected voter split: %+v", top)
	}
}

func TestBuildSnapshotsZeroVoteCandidateRankedLast(t *testing.T) {
	p := tallyPeriod(2)
	eligible := []Submission{
		submission("c:a", nil, Ballot{CandidateID: 1, Score: 1}),
	}

	snaps := BuildSnapshots(p, tallyCandidates(), eligible, nil, 10)
	if len(snaps) != 3 {
		t.Fatalf("expected snapshots for the whole catalog, got %d", len(snaps))
	}
	if snaps[1].Title != "Beta" || snaps[1].Score != 0 || snaps[1].Rank != 2 {
		t.Fatalf("unexpected zero-vote snapshot: %+v", snaps[1])
	}
	if snaps[2].Title != "Gamma" || snaps[2].Score != 0 || snaps[2].Rank != 3 {
		t.Fatalf("unexpected zero-vote snapshot: %+v", snaps[2])
	}
}

func TestBuildSnapshotsEmptyEligibleSet(t *testing.T) {
	snaps := BuildSnapshots(tallyPeriod(2), tallyCandidates(), nil, nil, 10)
	if len(snaps) != 0 {
		t.Fatalf("expected empty ranking, got %d snapshots", len(snaps))
	}
}

func TestBuildSnapshotsIgnoresStruckCandidates(t *testing.T) {
	p := tallyPeriod(2)
	eligible := []Submission{
		submission("c:a", nil, Ballot{CandidateID: 1, Score: 2}, Ballot{CandidateID: 99, Score: 8}),
	}

	snaps := BuildSnapshots(p, tallyCandidates(), eligible, nil, 10)
	for _, s := range snaps {
		if s.CandidateID == 99 {
			t.Fatal("struck candidate must not be ranked")
		}
	}
	if snaps[0].CandidateID != 1 || snaps[0].Score != 2 {
		t.Fatalf("unexpected top snapshot: %+v", snaps[0])
	}
}

func TestBuildSnapshotsIdempotent(t *testing.T) {
	p := tallyPeriod(2)
	eligible := []Submission{
		submission("c:a", nil, Ballot{CandidateID: 2, Score: 5}, Ballot{CandidateID: 1, Score: 5}),
		submission("c:b", nil, Ballot{CandidateID: 3, Score: 4}),
	}
	prev := map[string]RankSnapshot{
		"alpha": {SeriesKey: "alpha", Rank: 2, Streak: 3, PeakRank: 2, PeakDate: tallyPeriod(1).Start, TopTenWeeks: 4},
	}

	first := BuildSnapshots(p, tallyCandidates(), eligible, prev, 10)
	second := BuildSnapshots(p, tallyCandidates(), eligible, prev, 10)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("rerunning the tally over the same inputs must produce identical snapshots")
	}
}

// A weekly catalog re-import assigns fresh row ids, so two consecutive
// weeks of the same anime share only the series key. Movement must still
// carry across the id change.
func TestBuildSnapshotsMovementSurvivesReimport(t *testing.T) {
	week2 := tallyPeriod(2)
	firstImport := []models.Candidate{
		{ID: 101, SeriesKey: "alpha", Title: "Alpha", Active: true},
	}
	snapsN := BuildSnapshots(week2, firstImport, []Submission{
		submission("c:a", nil, Ballot{CandidateID: 101, Score: 5}),
	}, nil, 10)
	if snapsN[0].Rank != 1 || snapsN[0].SeriesKey != "alpha" {
		t.Fatalf("unexpected week N snapshot: %+v", snapsN[0])
	}

	prev := map[string]RankSnapshot{}
	for _, s := range snapsN {
		prev[s.SeriesKey] = s
	}

	week3 := tallyPeriod(3)
	reimport := []models.Candidate{
		{ID: 205, SeriesKey: "alpha", Title: "Alpha", Active: true},
	}
	snapsN1 := BuildSnapshots(week3, reimport, []Submission{
		submission("c:a", nil, Ballot{CandidateID: 205, Score: 5}),
	}, prev, 10)

	got := snapsN1[0]
	if got.RankDelta == nil || *got.RankDelta != 0 {
		t.Fatalf("repeat #1 across re-import must have delta 0, got %+v", got)
	}
	if got.Streak != 2 {
		t.Fatalf("expected streak 2 across re-import, got %d", got.Streak)
	}
	if got.TopTenWeeks != 2 {
		t.Fatalf("expected top-N counter 2 across re-import, got %d", got.TopTenWeeks)
	}
	if got.PeakRank != 1 || !got.PeakDate.Equal(week2.Start) {
		t.Fatalf("peak must carry from week N: %+v", got)
	}
}

func TestBuildSnapshotsMovement(t *testing.T) {
	p := tallyPeriod(3)
	prevStart := tallyPeriod(1).Start
	prev := map[string]RankSnapshot{
		// Alpha was 1st, stays 1st: streak grows, peak carries.
		"alpha": {SeriesKey: "alpha", Rank: 1, Streak: 2, PeakRank: 1, PeakDate: prevStart, TopTenWeeks: 2},
		// Beta was 3rd, climbs to 2nd: streak resets, new peak.
		"beta": {SeriesKey: "beta", Rank: 3, Streak: 5, PeakRank: 3, PeakDate: prevStart, TopTenWeeks: 5},
	}
	eligible := []Submission{
		submission("c:a", nil, Ballot{CandidateID: 1, Score: 9}),
		submission("c:b", nil, Ballot{CandidateID: 2, Score: 5}),
		submission("c:c", nil, Ballot{CandidateID: 3, Score: 2}),
	}

	snaps := BuildSnapshots(p, tallyCandidates(), eligible, prev, 2)

	alpha, beta, gamma := snaps[0], snaps[1], snaps[2]

	if alpha.RankDelta == nil || *alpha.RankDelta != 0 || alpha.Streak != 3 {
		t.Fatalf("unexpected movement for repeat #1: %+v", alpha)
	}
	if alpha.PeakRank != 1 || !alpha.PeakDate.Equal(prevStart) {
		t.Fatalf("peak must carry forward unchanged: %+v", alpha)
	}
	if alpha.TopTenWeeks != 3 {
		t.Fatalf("expected top-N counter 3, got %d", alpha.TopTenWeeks)
	}

	if beta.RankDelta == nil || *beta.RankDelta != 1 || beta.Streak != 1 {
		t.Fatalf("unexpected movement for climber: %+v", beta)
	}
	if beta.PeakRank != 2 || !beta.PeakDate.Equal(p.Start) {
		t.Fatalf("climber must record a new peak: %+v", beta)
	}
	if beta.TopTenWeeks != 6 {
		t.Fatalf("expected top-N counter 6, got %d", beta.TopTenWeeks)
	}

	// New entrant: no delta, fresh streak, outside top-N (topN=2 here).
	if gamma.RankDelta != nil || gamma.Streak != 1 || gamma.TopTenWeeks != 0 {
		t.Fatalf("unexpected movement for new entrant: %+v", gamma)
	}
	if gamma.PeakRank != 3 || !gamma.PeakDate.Equal(p.Start) {
		t.Fatalf("new entrant peak must be its first rank: %+v", gamma)
	}
}
