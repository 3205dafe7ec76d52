package talent

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

// Store is the persistence collaborator for pipeline state.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// SetStage moves a pair to stage and returns the previous stage ("" when unplaced).
	SetStage(ctx context.Context, candidateID, jobID string, stage Stage) (Stage, error)
	SetVerifiedSkills(ctx context.Context, candidateID string, skills []string) error
	SaveDraft(ctx context.Context, d Draft) error
	// ActivateDraft makes draftID the only active draft for its pair.
	ActivateDraft(ctx context.Context, draftID string) (Draft, error)
	UpsertCandidate(ctx context.Context, c Candidate) error
	UpsertPosting(ctx context.Context, p Posting) error
}

// SQLStore implements Store on the sqlite schema.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a talent store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, headline, location, years_experience, skills, verified_skills, created_at_ms
		FROM candidates ORDER BY created_at_ms, id`)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to query candidates")
	}
	for rows.Next() {
		var c Candidate
		var skills, verified string
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Headline, &c.Location, &c.YearsExperience, &skills, &verified, &created); err != nil {
			rows.Close()
			return Snapshot{}, errors.Wrap(err, "failed to scan candidate")
		}
		if err := decodeList(skills, &c.Skills); err != nil {
			rows.Close()
			return Snapshot{}, errors.WithDetailf(err, "candidate: %s", c.ID)
		}
		if err := decodeList(verified, &c.VerifiedSkills); err != nil {
			rows.Close()
			return Snapshot{}, errors.WithDetailf(err, "candidate: %s", c.ID)
		}
		c.CreatedAt = time.UnixMilli(created)
		snap.Candidates = append(snap.Candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to iterate candidates")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, title, location, required_skills, open, created_at_ms
		FROM postings ORDER BY created_at_ms, id`)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to query postings")
	}
	for rows.Next() {
		var p Posting
		var skills string
		var created int64
		if err := rows.Scan(&p.ID, &p.Title, &p.Location, &skills, &p.Open, &created); err != nil {
			rows.Close()
			return Snapshot{}, errors.Wrap(err, "failed to scan posting")
		}
		if err := decodeList(skills, &p.RequiredSkills); err != nil {
			rows.Close()
			return Snapshot{}, errors.WithDetailf(err, "posting: %s", p.ID)
		}
		p.CreatedAt = time.UnixMilli(created)
		snap.Postings = append(snap.Postings, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to iterate postings")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT candidate_id, job_id, stage, updated_at_ms
		FROM candidate_stages ORDER BY job_id, candidate_id`)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to query candidate stages")
	}
	defer rows.Close()
	for rows.Next() {
		var p Placement
		var updated int64
		if err := rows.Scan(&p.CandidateID, &p.JobID, &p.Stage, &updated); err != nil {
			return Snapshot{}, errors.Wrap(err, "failed to scan candidate stage")
		}
		p.UpdatedAt = time.UnixMilli(updated)
		snap.Placements = append(snap.Placements, p)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to iterate candidate stages")
	}

	return snap, nil
}

func (s *SQLStore) SetStage(ctx context.Context, candidateID, jobID string, stage Stage) (Stage, error) {
	if !stage.Valid() {
		return "", errors.NewInvalidRequestError("unknown stage %q", stage)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin stage update")
	}
	defer tx.Rollback()

	var from Stage
	err = tx.QueryRowContext(ctx, `SELECT stage FROM candidate_stages WHERE candidate_id = ? AND job_id = ?`,
		candidateID, jobID).Scan(&from)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrap(err, "failed to read current stage")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO candidate_stages (candidate_id, job_id, stage, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (candidate_id, job_id) DO UPDATE SET stage = excluded.stage, updated_at_ms = excluded.updated_at_ms`,
		candidateID, jobID, stage, s.now().UnixMilli())
	if err != nil {
		err = errors.Wrap(err, "failed to write stage")
		return "", errors.WithDetailf(err, "candidate: %s, job: %s, stage: %s", candidateID, jobID, stage)
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit stage update")
	}
	return from, nil
}

func (s *SQLStore) SetVerifiedSkills(ctx context.Context, candidateID string, skills []string) error {
	encoded, err := encodeList(skills)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE candidates SET verified_skills = ? WHERE id = ?`, encoded, candidateID)
	if err != nil {
		return errors.Wrapf(err, "failed to update verified skills for %s", candidateID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("candidate %s", candidateID)
	}
	return nil
}

func (s *SQLStore) SaveDraft(ctx context.Context, d Draft) error {
	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO interview_drafts (id, candidate_id, job_id, content, active, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content, active = excluded.active, updated_at_ms = excluded.updated_at_ms`,
		d.ID, d.CandidateID, d.JobID, d.Content, d.Active, d.CreatedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return errors.WithDetailf(errors.Wrap(err, "failed to save draft"), "draft: %s", d.ID)
	}
	return nil
}

func (s *SQLStore) ActivateDraft(ctx context.Context, draftID string) (Draft, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Draft{}, errors.Wrap(err, "failed to begin draft activation")
	}
	defer tx.Rollback()

	var d Draft
	var created, updated int64
	err = tx.QueryRowContext(ctx, `SELECT id, candidate_id, job_id, content, created_at_ms, updated_at_ms
		FROM interview_drafts WHERE id = ?`, draftID).
		Scan(&d.ID, &d.CandidateID, &d.JobID, &d.Content, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, errors.NewNotFoundError("draft %s", draftID)
	}
	if err != nil {
		return Draft{}, errors.Wrap(err, "failed to read draft")
	}

	now := s.now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `UPDATE interview_drafts SET active = (id = ?), updated_at_ms = ?
		WHERE candidate_id = ? AND job_id = ?`, draftID, now, d.CandidateID, d.JobID); err != nil {
		return Draft{}, errors.Wrap(err, "failed to activate draft")
	}
	if err := tx.Commit(); err != nil {
		return Draft{}, errors.Wrap(err, "failed to commit draft activation")
	}

	d.Active = true
	d.CreatedAt = time.UnixMilli(created)
	d.UpdatedAt = time.UnixMilli(now)
	return d, nil
}

func (s *SQLStore) UpsertCandidate(ctx context.Context, c Candidate) error {
	if c.ID == "" || c.Name == "" {
		return errors.NewInvalidRequestError("candidate requires id and name")
	}
	skills, err := encodeList(c.Skills)
	if err != nil {
		return err
	}
	verified, err := encodeList(c.VerifiedSkills)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO candidates (id, name, headline, location, years_experience, skills, verified_skills, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, headline = excluded.headline, location = excluded.location,
			years_experience = excluded.years_experience, skills = excluded.skills, verified_skills = excluded.verified_skills`,
		c.ID, c.Name, c.Headline, c.Location, c.YearsExperience, skills, verified, c.CreatedAt.UnixMilli())
	if err != nil {
		return errors.WithDetailf(errors.Wrap(err, "failed to upsert candidate"), "candidate: %s", c.ID)
	}
	return nil
}

func (s *SQLStore) UpsertPosting(ctx context.Context, p Posting) error {
	if p.ID == "" || p.Title == "" {
		return errors.NewInvalidRequestError("posting requires id and title")
	}
	skills, err := encodeList(p.RequiredSkills)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO postings (id, title, location, required_skills, open, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, location = excluded.location,
			required_skills = excluded.required_skills, open = excluded.open`,
		p.ID, p.Title, p.Location, skills, p.Open, p.CreatedAt.UnixMilli())
	if err != nil {
		return errors.WithDetailf(errors.Wrap(err, "failed to upsert posting"), "posting: %s", p.ID)
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode list")
	}
	return string(b), nil
}

func decodeList(raw string, into *[]string) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return errors.Wrap(err, "failed to decode list")
	}
	return nil
}
