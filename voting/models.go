package voting

import (
	"fmt"
	"time"
)

// BallotKind discriminates the two voting schemes: whole-period rank votes
// and per-episode star votes.
type BallotKind string

const (
	KindRank BallotKind = "rank"
	KindStar BallotKind = "star"
)

// Ballot is a single candidate vote within a submission.
type Ballot struct {
	CandidateID int64      `json:"candidateId"`
	Score       int        `json:"score"`
	Kind        BallotKind `json:"kind"`
}

// Submission is one principal's full ballot set for one period. At most one
// non-deleted submission exists per (period, principal); re-votes replace
// its ballots rather than appending.
type Submission struct {
	ID        string    `json:"id"`
	PeriodID  string    `json:"periodId"`
	Principal string    `json:"principal"`
	MemberID  *int      `json:"memberId,omitempty"`
	CookieID  string    `json:"cookieId,omitempty"`
	IPHash    string    `json:"-"`
	Blocked   bool      `json:"-"`
	Ballots   []Ballot  `json:"ballots"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RankSnapshot is the computed per-period, per-candidate ranking record.
// Snapshots are written once per period close and never edited; the next
// period's tally reads them as its movement baseline, keyed by series key
// because candidate row ids do not survive re-import.
type RankSnapshot struct {
	PeriodID     string    `json:"periodId"`
	CandidateID  int64     `json:"candidateId"`
	SeriesKey    string    `json:"seriesKey"`
	Title        string    `json:"title"`
	Rank         int       `json:"rank"`
	Score        int       `json:"score"`
	Voters       int       `json:"voters"`
	MemberVoters int       `json:"memberVoters"`
	AnonVoters   int       `json:"anonVoters"`
	RankDelta    *int      `json:"rankDelta,omitempty"` // previous rank minus current; nil for new entrants
	Streak       int       `json:"streak"`              // consecutive periods at the current rank
	PeakRank     int       `json:"peakRank"`
	PeakDate     time.Time `json:"peakDate"`
	TopTenWeeks  int       `json:"topTenWeeks"`
}

// Stable validation error codes surfaced to clients.
const (
	CodeEmptyBallots       = "EMPTY_BALLOTS"
	CodeDuplicateCandidate = "DUPLICATE_CANDIDATE"
	CodeInvalidCandidate   = "INVALID_CANDIDATE"
	CodeVoteLimitSurpassed = "VOTE_LIMIT_SURPASSED"
	CodeIdentityRequired   = "IDENTITY_REQUIRED"
	CodeVoteClosed         = "VOTE_CLOSED"
	CodePeriodNotFound     = "PERIOD_NOT_FOUND"
)

// ValidationError is a rejected vote with a machine-readable code. These are
// caller mistakes or timing misses, never retried.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationErr(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Config holds the voting-scheme knobs.
type Config struct {
	VoteCap           int           // max total score one voter may spend per period
	EpisodeVoteWindow time.Duration // star votes close this long after an episode airs
	TopN              int           // rank threshold for the top-N period counter
}

func DefaultConfig() Config {
	return Config{
		VoteCap:           10,
		EpisodeVoteWindow: 36 * time.Hour,
		TopN:              10,
	}
}
