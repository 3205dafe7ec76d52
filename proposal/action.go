// Package proposal is the queue of mutation intents produced by agents in
// recommend mode, awaiting a human to apply or dismiss them.
package proposal

import (
	"encoding/json"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

type Status string

const (
	StatusProposed  Status = "proposed"
	StatusApplied   Status = "applied"
	StatusDismissed Status = "dismissed"
)

// Evidence is one reason shown next to a proposal.
type Evidence struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Action is a proposed mutation. Status moves one way, from proposed to
// applied or dismissed; terminal actions are kept for history.
type Action struct {
	ID          string           `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Status      Status           `json:"status"`
	Agent       talent.AgentType `json:"agent"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	CandidateID string           `json:"candidate_id,omitempty"`
	JobID       string           `json:"job_id,omitempty"`
	Payload     Payload          `json:"-"`
	Evidence    []Evidence       `json:"evidence,omitempty"`
}

// dedupKey identifies proposals that coalesce into one entry.
type dedupKey struct {
	agent       talent.AgentType
	candidateID string
	jobID       string
	kind        Kind
}

// key returns the coalescing key, or false if the action does not coalesce:
// only proposed actions with both ids set do.
func (a *Action) key() (dedupKey, bool) {
	if a.Status != StatusProposed || a.CandidateID == "" || a.JobID == "" || a.Payload == nil {
		return dedupKey{}, false
	}
	return dedupKey{agent: a.Agent, candidateID: a.CandidateID, jobID: a.JobID, kind: a.Payload.Kind()}, true
}

func (a *Action) clone() Action {
	c := *a
	c.Evidence = append([]Evidence(nil), a.Evidence...)
	return c
}

// MarshalJSON renders the payload in its {"kind","data"} envelope.
func (a Action) MarshalJSON() ([]byte, error) {
	type plain Action
	payload := json.RawMessage("null")
	if a.Payload != nil {
		var err error
		if payload, err = MarshalPayload(a.Payload); err != nil {
			return nil, err
		}
	}
	return json.Marshal(struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}{plain(a), payload})
}

// UnmarshalJSON reads an action rendered by MarshalJSON.
func (a *Action) UnmarshalJSON(b []byte) error {
	type plain Action
	var aux struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return errors.Wrap(err, "failed to decode action")
	}
	*a = Action(aux.plain)
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	p, err := UnmarshalPayload(aux.Payload)
	if err != nil {
		return err
	}
	a.Payload = p
	return nil
}
