package marks

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
)

// SQLStore keeps marks in the processing_marks table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a sqlite-backed mark store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// The conflict clause only fires for a stale started mark, so the statement
// either inserts, reclaims, or changes nothing. RowsAffected tells which.
const claimSQL = `INSERT INTO processing_marks (candidate_id, job_id, step, status, updated_at_ms, ttl_ms, metadata)
VALUES (?, ?, ?, 'started', ?, ?, ?)
ON CONFLICT (candidate_id, job_id, step) DO UPDATE SET
	status = 'started',
	updated_at_ms = excluded.updated_at_ms,
	ttl_ms = excluded.ttl_ms,
	metadata = excluded.metadata
WHERE processing_marks.status = 'started'
	AND processing_marks.updated_at_ms < excluded.updated_at_ms - excluded.ttl_ms`

const completeSQL = `INSERT INTO processing_marks (candidate_id, job_id, step, status, updated_at_ms, ttl_ms, metadata)
VALUES (?, ?, ?, 'completed', ?, 0, ?)
ON CONFLICT (candidate_id, job_id, step) DO UPDATE SET
	status = 'completed',
	updated_at_ms = excluded.updated_at_ms,
	metadata = excluded.metadata`

func (s *SQLStore) Claim(ctx context.Context, m Mark) persist.Result[bool] {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return persist.Degraded[bool](err)
	}

	res, err := s.db.ExecContext(ctx, claimSQL,
		m.CandidateID, m.JobID, m.Step, m.UpdatedAt.UnixMilli(), m.TTL.Milliseconds(), meta)
	if err != nil {
		return persist.Degraded[bool](errors.Wrapf(err, "failed to claim mark %s", m.Step))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persist.Degraded[bool](errors.Wrap(err, "failed to read claim result"))
	}
	return persist.OK(n == 1)
}

func (s *SQLStore) Complete(ctx context.Context, m Mark) persist.Result[struct{}] {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return persist.Degraded[struct{}](err)
	}
	if _, err := s.db.ExecContext(ctx, completeSQL,
		m.CandidateID, m.JobID, m.Step, m.UpdatedAt.UnixMilli(), meta); err != nil {
		return persist.Degraded[struct{}](errors.Wrapf(err, "failed to complete mark %s", m.Step))
	}
	return persist.OK(struct{}{})
}

func (s *SQLStore) Get(ctx context.Context, key Key) persist.Result[*Mark] {
	var m Mark
	var updated, ttl int64
	var meta string
	err := s.db.QueryRowContext(ctx, `SELECT status, updated_at_ms, ttl_ms, metadata FROM processing_marks
		WHERE candidate_id = ? AND job_id = ? AND step = ?`, key.CandidateID, key.JobID, key.Step).
		Scan(&m.Status, &updated, &ttl, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return persist.OK[*Mark](nil)
	}
	if err != nil {
		return persist.Degraded[*Mark](errors.Wrapf(err, "failed to read mark %s", key.Step))
	}

	m.Key = key
	m.UpdatedAt = time.UnixMilli(updated)
	m.TTL = time.Duration(ttl) * time.Millisecond
	if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
		return persist.Degraded[*Mark](errors.Wrap(err, "failed to decode mark metadata"))
	}
	return persist.OK(&m)
}

func encodeMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode mark metadata")
	}
	return string(b), nil
}
