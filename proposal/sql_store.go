package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Rows are only overwritten by a copy at least as recent, so saves that
// finish out of order cannot roll an action back.
const saveSQL = `INSERT INTO proposed_actions
	(id, status, agent, title, description, candidate_id, job_id, payload, evidence, created_at_ms, updated_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		title = excluded.title,
		description = excluded.description,
		payload = excluded.payload,
		evidence = excluded.evidence,
		updated_at_ms = excluded.updated_at_ms
	WHERE excluded.updated_at_ms >= proposed_actions.updated_at_ms`

// SQLStore keeps actions in the proposed_actions table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, a Action) persist.Result[struct{}] {
	payload, err := MarshalPayload(a.Payload)
	if err != nil {
		return persist.Degraded[struct{}](err)
	}
	evidence := a.Evidence
	if evidence == nil {
		evidence = []Evidence{}
	}
	ev, err := json.Marshal(evidence)
	if err != nil {
		return persist.Degraded[struct{}](errors.Wrap(err, "failed to encode evidence"))
	}

	_, err = s.db.ExecContext(ctx, saveSQL,
		a.ID, a.Status, a.Agent, a.Title, a.Description, a.CandidateID, a.JobID,
		string(payload), string(ev), a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli())
	if err != nil {
		return persist.Degraded[struct{}](errors.Wrapf(err, "failed to save proposal %s", a.ID))
	}
	return persist.OK(struct{}{})
}

func (s *SQLStore) LoadAll(ctx context.Context) persist.Result[[]Action] {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, agent, title, description, candidate_id, job_id,
			payload, evidence, created_at_ms, updated_at_ms
		FROM proposed_actions ORDER BY created_at_ms DESC`)
	if err != nil {
		return persist.Degraded[[]Action](errors.Wrap(err, "failed to query proposals"))
	}
	defer rows.Close()

	actions := make([]Action, 0)
	for rows.Next() {
		var a Action
		var agent, payload, evidence string
		var created, updated int64
		if err := rows.Scan(&a.ID, &a.Status, &agent, &a.Title, &a.Description, &a.CandidateID, &a.JobID,
			&payload, &evidence, &created, &updated); err != nil {
			return persist.Degraded[[]Action](errors.Wrap(err, "failed to scan proposal"))
		}
		a.Agent = talent.AgentType(agent)
		if a.Payload, err = UnmarshalPayload([]byte(payload)); err != nil {
			return persist.Degraded[[]Action](errors.WithDetailf(err, "proposal: %s", a.ID))
		}
		if err := json.Unmarshal([]byte(evidence), &a.Evidence); err != nil {
			return persist.Degraded[[]Action](errors.WithDetailf(errors.Wrap(err, "failed to decode evidence"), "proposal: %s", a.ID))
		}
		if len(a.Evidence) == 0 {
			a.Evidence = nil
		}
		a.CreatedAt = time.UnixMilli(created)
		a.UpdatedAt = time.UnixMilli(updated)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return persist.Degraded[[]Action](errors.Wrap(err, "failed to iterate proposals"))
	}
	return persist.OK(actions)
}
