package voting

import (
	"sort"

	"anivote-backend/models"
	"anivote-backend/period"
)

// BuildSnapshots aggregates the eligible submissions of a period into a full
// ranking with movement metrics against the prior period's snapshots, keyed
// by series key: candidate row ids are period-local, the series key is the
// identity that survives a weekly re-import. It is a pure function: rerunning
// it over the same inputs yields identical output, so a failed publish can
// simply be rerun.
//
// Candidates with zero votes still get a snapshot with score 0, ranked last
// under the tie-break. An empty eligible set yields an empty ranking.
func BuildSnapshots(p period.Period, candidates []models.Candidate, eligible []Submission, prev map[string]RankSnapshot, topN int) []RankSnapshot {
	if len(eligible) == 0 {
		return []RankSnapshot{}
	}

	type totals struct {
		score        int
		voters       int
		memberVoters int
		anonVoters   int
	}

	byCandidate := make(map[int64]*totals, len(candidates))
	titles := make(map[int64]string, len(candidates))
	seriesKeys := make(map[int64]string, len(candidates))
	for _, c := range candidates {
		byCandidate[c.ID] = &totals{}
		titles[c.ID] = c.Title
		seriesKeys[c.ID] = c.SeriesKey
	}

	for _, sub := range eligible {
		for _, b := range sub.Ballots {
			t, ok := byCandidate[b.CandidateID]
			if !ok {
				// ballot for a candidate struck from the catalog
				continue
			}
			t.score += b.Score
			t.voters++
			if sub.MemberID != nil {
				t.memberVoters++
			} else {
				t.anonVoters++
			}
		}
	}

	snaps := make([]RankSnapshot, 0, len(byCandidate))
	for id, t := range byCandidate {
		snaps = append(snaps, RankSnapshot{
			PeriodID:     p.ID(),
			CandidateID:  id,
			SeriesKey:    seriesKeys[id],
			Title:        titles[id],
			Score:        t.score,
			Voters:       t.voters,
			MemberVoters: t.memberVoters,
			AnonVoters:   t.anonVoters,
		})
	}

	// Highest score first; equal scores break by title ascending so the
	// order is total and the resulting ranks are deterministic.
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Score != snaps[j].Score {
			return snaps[i].Score > snaps[j].Score
		}
		if snaps[i].Title != snaps[j].Title {
			return snaps[i].Title < snaps[j].Title
		}
		return snaps[i].CandidateID < snaps[j].CandidateID
	})

	for i := range snaps {
		s := &snaps[i]
		s.Rank = i + 1

		pv, wasRanked := prev[s.SeriesKey]
		if !wasRanked {
			s.Streak = 1
			s.PeakRank = s.Rank
			s.PeakDate = p.Start
			if s.Rank <= topN {
				s.TopTenWeeks = 1
			}
			continue
		}

		delta := pv.Rank - s.Rank
		s.RankDelta = &delta
		if s.Rank == pv.Rank {
			s.Streak = pv.Streak + 1
		} else {
			s.Streak = 1
		}
		if s.Rank < pv.PeakRank {
			s.PeakRank = s.Rank
			s.PeakDate = p.Start
		} else {
			s.PeakRank = pv.PeakRank
			s.PeakDate = pv.PeakDate
		}
		s.TopTenWeeks = pv.TopTenWeeks
		if s.Rank <= topN {
			s.TopTenWeeks++
		}
	}

	return snaps
}
