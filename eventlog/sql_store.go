package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
)

// DefaultListLimit applies when ListForCandidate is given no limit.
const DefaultListLimit = 100

// SQLStore keeps events in the pipeline_events table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a sqlite-backed event store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(ctx context.Context, ev Event) persist.Result[int64] {
	meta := []byte("{}")
	if ev.Metadata != nil {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return persist.Degraded[int64](errors.Wrap(err, "failed to encode event metadata"))
		}
		meta = b
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_events
		(candidate_id, job_id, event_type, actor_type, actor_id, from_stage, to_stage, summary, metadata, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.CandidateID, ev.JobID, ev.Type, ev.ActorType, ev.ActorID, ev.FromStage, ev.ToStage,
		ev.Summary, string(meta), ev.CreatedAt.UnixMilli())
	if err != nil {
		return persist.Degraded[int64](errors.Wrapf(err, "failed to append %s event", ev.Type))
	}
	return persist.From(res.LastInsertId())
}

func (s *SQLStore) ListForCandidate(ctx context.Context, candidateID string, limit int) persist.Result[[]Event] {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, candidate_id, job_id, event_type, actor_type, actor_id,
			from_stage, to_stage, summary, metadata, created_at_ms
		FROM pipeline_events WHERE candidate_id = ? ORDER BY id DESC LIMIT ?`, candidateID, limit)
	if err != nil {
		return persist.Degraded[[]Event](errors.Wrap(err, "failed to query pipeline events"))
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var meta string
		var created int64
		if err := rows.Scan(&ev.ID, &ev.CandidateID, &ev.JobID, &ev.Type, &ev.ActorType, &ev.ActorID,
			&ev.FromStage, &ev.ToStage, &ev.Summary, &meta, &created); err != nil {
			return persist.Degraded[[]Event](errors.Wrap(err, "failed to scan pipeline event"))
		}
		if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
			return persist.Degraded[[]Event](errors.WithDetailf(errors.Wrap(err, "failed to decode event metadata"), "event: %d", ev.ID))
		}
		if len(ev.Metadata) == 0 {
			ev.Metadata = nil
		}
		ev.CreatedAt = time.UnixMilli(created)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return persist.Degraded[[]Event](errors.Wrap(err, "failed to iterate pipeline events"))
	}
	return persist.OK(events)
}
