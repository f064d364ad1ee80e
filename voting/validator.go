package voting

import (
	"time"

	"anivote-backend/models"
	"anivote-backend/period"
)

// Validator checks proposed ballot sets against period-scoped business
// rules. It is side-effect free; the caller persists the result.
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// TopN is the rank threshold used by the tally's top-N period counter.
func (v *Validator) TopN() int {
	return v.cfg.TopN
}

// Validate returns the replacement ballot set for a submission and whether
// the submission must be flagged blocked. A later valid call replaces the
// principal's existing ballots for the period, so the vote cap is computed
// over the proposed set alone, never the union with what it replaces.
//
// Shadow-banned voters are accepted but flagged, so nothing user-visible
// signals enforcement.
func (v *Validator) Validate(now time.Time, p period.Period, proposed []Ballot, catalog map[int64]models.Candidate, banned bool) ([]Ballot, bool, error) {
	if !p.Contains(now) {
		return nil, false, validationErr(CodeVoteClosed, "period %s is not open for voting", p.ID())
	}
	if len(proposed) == 0 {
		return nil, false, validationErr(CodeEmptyBallots, "ballot set is empty")
	}

	seen := make(map[int64]bool, len(proposed))
	total := 0
	out := make([]Ballot, 0, len(proposed))
	for _, b := range proposed {
		if seen[b.CandidateID] {
			return nil, false, validationErr(CodeDuplicateCandidate, "candidate %d voted twice", b.CandidateID)
		}
		seen[b.CandidateID] = true

		cand, ok := catalog[b.CandidateID]
		if !ok || !cand.Active {
			return nil, false, validationErr(CodeInvalidCandidate, "candidate %d is not in period %s", b.CandidateID, p.ID())
		}
		if b.Score < 1 || b.Score > v.cfg.VoteCap {
			return nil, false, validationErr(CodeVoteLimitSurpassed, "score %d is outside the scheme's bounds", b.Score)
		}
		total += b.Score

		if b.Kind == "" {
			b.Kind = KindRank
		}
		if b.Kind == KindStar {
			if cand.AirTime == nil {
				return nil, false, validationErr(CodeInvalidCandidate, "candidate %d has no scheduled air time", b.CandidateID)
			}
			if now.Before(*cand.AirTime) || !now.Before(cand.AirTime.Add(v.cfg.EpisodeVoteWindow)) {
				return nil, false, validationErr(CodeVoteClosed, "episode vote window for candidate %d is closed", b.CandidateID)
			}
		}
		out = append(out, b)
	}

	if total > v.cfg.VoteCap {
		return nil, false, validationErr(CodeVoteLimitSurpassed, "total score %d exceeds the cap of %d", total, v.cfg.VoteCap)
	}

	return out, banned, nil
}

// TimeLeft reports the seconds remaining in the episode vote window,
// measured from the latest eligible episode already voted. Returns 0 once
// closed rather than an error, so clients can render a countdown uniformly.
func (v *Validator) TimeLeft(now time.Time, sub *Submission, catalog map[int64]models.Candidate) int64 {
	var latest *time.Time
	for _, b := range sub.Ballots {
		if b.Kind != KindStar {
			continue
		}
		cand, ok := catalog[b.CandidateID]
		if !ok || cand.AirTime == nil {
			continue
		}
		if latest == nil || cand.AirTime.After(*latest) {
			latest = cand.AirTime
		}
	}
	if latest == nil {
		return 0
	}
	remaining := latest.Add(v.cfg.EpisodeVoteWindow).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds())
}
