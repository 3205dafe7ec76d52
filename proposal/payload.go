package proposal

import (
	"encoding/json"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Kind discriminates payload variants.
type Kind string

const (
	KindMoveToStage          Kind = "move_to_stage"
	KindUpdateVerifiedSkills Kind = "update_verified_skills"
	KindActivateDraft        Kind = "activate_draft"
)

// Payload is the mutation an action performs when applied. The set of
// variants is closed: MoveToStage, UpdateVerifiedSkills, ActivateDraft.
type Payload interface {
	Kind() Kind
	isPayload()
}

// MoveToStage moves the action's (candidate, job) pair to To.
type MoveToStage struct {
	From talent.Stage `json:"from,omitempty"`
	To   talent.Stage `json:"to"`
}

// UpdateVerifiedSkills replaces the candidate's verified skills.
type UpdateVerifiedSkills struct {
	Skills []string `json:"skills"`
}

// ActivateDraft makes a saved interview draft the active one.
type ActivateDraft struct {
	DraftID string `json:"draft_id"`
}

func (MoveToStage) Kind() Kind          { return KindMoveToStage }
func (UpdateVerifiedSkills) Kind() Kind { return KindUpdateVerifiedSkills }
func (ActivateDraft) Kind() Kind        { return KindActivateDraft }

func (MoveToStage) isPayload()          {}
func (UpdateVerifiedSkills) isPayload() {}
func (ActivateDraft) isPayload()        {}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload encodes p as {"kind": ..., "data": {...}}.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.NewInvalidRequestError("nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s payload", p.Kind())
	}
	return json.Marshal(envelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPayload decodes the envelope written by MarshalPayload.
func UnmarshalPayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload envelope")
	}

	var p Payload
	var err error
	switch env.Kind {
	case KindMoveToStage:
		var v MoveToStage
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindUpdateVerifiedSkills:
		var v UpdateVerifiedSkills
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindActivateDraft:
		var v ActivateDraft
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, errors.NewInvalidRequestError("unknown payload kind %q", env.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s payload", env.Kind)
	}
	return p, nil
}

// Validate checks the payload's own fields.
func Validate(p Payload) error {
	switch v := p.(type) {
	case MoveToStage:
		if !v.To.Valid() {
			return errors.NewInvalidRequestError("move_to_stage has unknown target stage %q", v.To)
		}
		if v.From != "" && !v.From.Valid() {
			return errors.NewInvalidRequestError("move_to_stage has unknown source stage %q", v.From)
		}
	case UpdateVerifiedSkills:
		if len(v.Skills) == 0 {
			return errors.NewInvalidRequestError("update_verified_skills needs at least one skill")
		}
	case ActivateDraft:
		if v.DraftID == "" {
			return errors.NewInvalidRequestError("activate_draft needs a draft id")
		}
	case nil:
		return errors.NewInvalidRequestError("nil payload")
	default:
		return errors.AssertionFailedf("unhandled payload type %T", p)
	}
	return nil
}
