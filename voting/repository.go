package voting

import (
	"context"

	"anivote-backend/models"
)

// Repository persists submissions and published rank snapshots.
type Repository interface {
	Upsert(ctx context.Context, sub *Submission) (string, error)
	Get(ctx context.Context, periodID, principal string) (*Submission, error)
	GetByID(ctx context.Context, id string) (*Submission, error)
	ListEligible(ctx context.Context, periodID string) ([]Submission, error)
	RemoveCandidateBallots(ctx context.Context, candidateID int64) (int64, error)
	Snapshots(ctx context.Context, periodID string) ([]RankSnapshot, error)
	PublishSnapshots(ctx context.Context, periodID, prevPeriodID string, snaps []RankSnapshot) error
	LatestPublishedPeriod(ctx context.Context) (string, error)
}

// Catalog supplies the valid candidates of a period. The voting core never
// creates or mutates candidates.
type Catalog interface {
	ListCandidates(ctx context.Context, periodID string) ([]models.Candidate, error)
}

// AbuseList answers whether an IP hash is shadow-banned.
type AbuseList interface {
	IsShadowBanned(ctx context.Context, ipHash string) (bool, error)
}
