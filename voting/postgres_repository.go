package voting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"anivote-backend/models"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes a principal's submission for a period, replacing any ballots
// it already holds. Concurrent first-time votes race on the unique
// (period_id, principal) constraint; the loser retries once and lands as an
// update of the winner's row.
func (r *PostgresRepository) Upsert(ctx context.Context, sub *Submission) (string, error) {
	id, err := r.upsertOnce(ctx, sub)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return r.upsertOnce(ctx, sub)
		}
		return "", err
	}
	return id, nil
}

func (r *PostgresRepository) upsertOnce(ctx context.Context, sub *Submission) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin submission transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO submissions (id, period_id, principal, member_id, cookie_id, ip_hash, blocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (period_id, principal)
		DO UPDATE SET member_id = EXCLUDED.member_id,
		              cookie_id = EXCLUDED.cookie_id,
		              ip_hash = EXCLUDED.ip_hash,
		              blocked = EXCLUDED.blocked,
		              updated_at = NOW()
		RETURNING id
	`, uuid.NewString(), sub.PeriodID, sub.Principal, sub.MemberID, sub.CookieID, sub.IPHash, sub.Blocked).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ballots WHERE submission_id = $1`, id); err != nil {
		return "", fmt.Errorf("clear previous ballots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ballots (submission_id, candidate_id, score, kind)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare ballot insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range sub.Ballots {
		if _, err := stmt.ExecContext(ctx, id, b.CandidateID, b.Score, string(b.Kind)); err != nil {
			return "", fmt.Errorf("insert ballot candidate_id=%d: %w", b.CandidateID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit submission transaction: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) Get(ctx context.Context, periodID, principal string) (*Submission, error) {
	return r.getOne(ctx, `
		SELECT id, period_id, principal, member_id, cookie_id, ip_hash, blocked, created_at, updated_at
		FROM submissions
		WHERE period_id = $1 AND principal = $2
	`, periodID, principal)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	return r.getOne(ctx, `
		SELECT id, period_id, principal, member_id, cookie_id, ip_hash, blocked, created_at, updated_at
		FROM submissions
		WHERE id = $1
	`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*Submission, error) {
	var sub Submission
	var memberID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&sub.ID, &sub.PeriodID, &sub.Principal, &memberID, &sub.CookieID,
		&sub.IPHash, &sub.Blocked, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query submission: %w", err)
	}
	if memberID.Valid {
		m := int(memberID.Int64)
		sub.MemberID = &m
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT candidate_id, score, kind FROM ballots WHERE submission_id = $1
	`, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b Ballot
		var kind string
		if err := rows.Scan(&b.CandidateID, &b.Score, &kind); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		b.Kind = BallotKind(kind)
		sub.Ballots = append(sub.Ballots, b)
	}
	return &sub, rows.Err()
}

// ListEligible returns the submissions that count toward a period's tally:
// not blocked and holding at least one scored ballot.
func (r *PostgresRepository) ListEligible(ctx context.Context, periodID string) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.principal, s.member_id, b.candidate_id, b.score, b.kind
		FROM submissions s
		JOIN ballots b ON b.submission_id = s.id
		WHERE s.period_id = $1 AND s.blocked = FALSE
		ORDER BY s.id
	`, periodID)
	if err != nil {
		return nil, fmt.Errorf("query eligible submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	var cur *Submission
	for rows.Next() {
		var id, principal, kind string
		var memberID sql.NullInt64
		var b Ballot
		if err := rows.Scan(&id, &principal, &memberID, &b.CandidateID, &b.Score, &kind); err != nil {
			return nil, fmt.Errorf("scan eligible submission: %w", err)
		}
		b.Kind = BallotKind(kind)
		if cur == nil || cur.ID != id {
			subs = append(subs, Submission{ID: id, PeriodID: periodID, Principal: principal})
			cur = &subs[len(subs)-1]
			if memberID.Valid {
				m := int(memberID.Int64)
				cur.MemberID = &m
			}
		}
		cur.Ballots = append(cur.Ballots, b)
	}
	return subs, rows.Err()
}

// RemoveCandidateBallots strikes a candidate's ballots from every submission
// referencing it, leaving the submissions themselves in place.
func (r *PostgresRepository) RemoveCandidateBallots(ctx context.Context, candidateID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ballots WHERE candidate_id = $1`, candidateID)
	if err != nil {
		return 0, fmt.Errorf("remove candidate ballots: %w", err)
	}
	return res.RowsAffected()
}

// PublishSnapshots replaces the period's snapshot set and marks the period
// published in a single transaction, so readers never observe a partial
// tally. Rerunning for the same period republishes wholesale.
func (r *PostgresRepository) PublishSnapshots(ctx context.Context, periodID, prevPeriodID string, snaps []RankSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tally transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rank_snapshots WHERE period_id = $1`, periodID); err != nil {
		return fmt.Errorf("clear period snapshots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rank_snapshots
			(period_id, candidate_id, series_key, title, rank, score, voters, member_voters,
			 anon_voters, rank_delta, streak, peak_rank, peak_date, top_ten_weeks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		var delta sql.NullInt64
		if s.RankDelta != nil {
			delta = sql.NullInt64{Int64: int64(*s.RankDelta), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.PeriodID, s.CandidateID, s.SeriesKey, s.Title, s.Rank, s.Score,
			s.Voters, s.MemberVoters, s.AnonVoters, delta, s.Streak, s.PeakRank, s.PeakDate, s.TopTenWeeks); err != nil {
			return fmt.Errorf("insert snapshot candidate_id=%d rank=%d: %w", s.CandidateID, s.Rank, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tally_publications (period_id, prev_period_id, published_at)
		VALUES ($1, NULLIF($2, ''), NOW())
		ON CONFLICT (period_id)
		DO UPDATE SET prev_period_id = NULLIF($2, ''), published_at = NOW()
	`, periodID, prevPeriodID); err != nil {
		return fmt.Errorf("mark period published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tally transaction: %w", err)
	}
	return nil
}

// Snapshots returns a period's ranking, but only once it has been published.
func (r *PostgresRepository) Snapshots(ctx context.Context, periodID string) ([]RankSnapshot, error) {
	var published bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tally_publications WHERE period_id = $1)
	`, periodID).Scan(&published); err != nil {
		return nil, fmt.Errorf("check publication: %w", err)
	}
	if !published {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT period_id, candidate_id, series_key, title, rank, score, voters, member_voters,
		       anon_voters, rank_delta, streak, peak_rank, peak_date, top_ten_weeks
		FROM rank_snapshots
		WHERE period_id = $1
		ORDER BY rank ASC
	`, periodID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]RankSnapshot, 0, 64)
	for rows.Next() {
		var s RankSnapshot
		var delta sql.NullInt64
		if err := rows.Scan(&s.PeriodID, &s.CandidateID, &s.SeriesKey, &s.Title, &s.Rank, &s.Score, &s.Voters,
			&s.MemberVoters, &s.AnonVoters, &delta, &s.Streak, &s.PeakRank, &s.PeakDate, &s.TopTenWeeks); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if delta.Valid {
			d := int(delta.Int64)
			s.RankDelta = &d
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *PostgresRepository) LatestPublishedPeriod(ctx context.Context) (string, error) {
	var periodID string
	err := r.db.QueryRowContext(ctx, `
		SELECT period_id FROM tally_publications ORDER BY published_at DESC LIMIT 1
	`).Scan(&periodID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest publication: %w", err)
	}
	return periodID, nil
}

func (r *PostgresRepository) ListCandidates(ctx context.Context, periodID string) ([]models.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, period_id, series_key, title, episode, air_time, active
		FROM candidates
		WHERE period_id = $1
		ORDER BY title ASC, episode ASC NULLS FIRST
	`, periodID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	cands := make([]models.Candidate, 0, 64)
	for rows.Next() {
		var c models.Candidate
		var episode sql.NullInt64
		var airTime sql.NullTime
		if err := rows.Scan(&c.ID, &c.PeriodID, &c.SeriesKey, &c.Title, &episode, &airTime, &c.Active); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if episode.Valid {
			e := int(episode.Int64)
			c.Episode = &e
		}
		if airTime.Valid {
			t := airTime.Time
			c.AirTime = &t
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// ImportCandidates loads a period's catalog rows, updating air times on
// re-import of the same (period, title, episode) row.
func (r *PostgresRepository) ImportCandidates(ctx context.Context, periodID string, cands []models.Candidate) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin candidate import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (period_id, series_key, title, episode, air_time, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (period_id, title, episode)
		DO UPDATE SET series_key = EXCLUDED.series_key, air_time = EXCLUDED.air_time, active = TRUE
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cands {
		key := c.SeriesKey
		if key == "" {
			key = models.DeriveSeriesKey(c.Title)
		}
		if _, err := stmt.ExecContext(ctx, periodID, key, c.Title, c.Episode, c.AirTime); err != nil {
			return 0, fmt.Errorf("insert candidate %q: %w", c.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit candidate import transaction: %w", err)
	}
	return len(cands), nil
}

// DeactivateCandidate takes a struck candidate out of the catalog and
// cascades removal of its ballots without deleting any submission.
func (r *PostgresRepository) DeactivateCandidate(ctx context.Context, candidateID int64) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE candidates SET active = FALSE WHERE id = $1
	`, candidateID); err != nil {
		return 0, fmt.Errorf("deactivate candidate: %w", err)
	}
	return r.RemoveCandidateBallots(ctx, candidateID)
}

func (r *PostgresRepository) IsShadowBanned(ctx context.Context, ipHash string) (bool, error) {
	var banned bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM shadow_bans WHERE ip_hash = $1)
	`, ipHash).Scan(&banned); err != nil {
		return false, fmt.Errorf("check shadow ban: %w", err)
	}
	return banned, nil
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Catalog    = (*PostgresRepository)(nil)
	_ AbuseList  = (*PostgresRepository)(nil)
)
