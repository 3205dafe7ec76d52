package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

const scoreSystemPrompt = `You assess how well a candidate fits a job posting.
Reply with a single JSON object and nothing else:
{"score": <number 0..1>, "matched_skills": [<required skills the candidate has>],
 "missing_skills": [<required skills the candidate lacks>], "rationale": "<one sentence>"}`

const summarizeSystemPrompt = `You prepare interview kits for recruiters.
Write a short plain-text kit: a two-line summary of fit, five targeted questions,
and the gaps to probe. No preamble.`

// Scorer asks a model to assess candidates.
type Scorer struct {
	client *Client
}

var _ inference.Scorer = (*Scorer)(nil)

func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

func (s *Scorer) Score(ctx context.Context, c talent.Candidate, p talent.Posting) (inference.Assessment, error) {
	resp, err := s.client.Chat(ctx, ChatRequest{
		SystemPrompt: scoreSystemPrompt,
		UserPrompt:   describePair(c, p),
		JSON:         true,
	})
	if err != nil {
		return inference.Assessment{}, err
	}
	return ParseAssessment(resp.Content)
}

func (s *Scorer) Summarize(ctx context.Context, c talent.Candidate, p talent.Posting) (string, error) {
	resp, err := s.client.Chat(ctx, ChatRequest{
		SystemPrompt: summarizeSystemPrompt,
		UserPrompt:   describePair(c, p),
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", inference.Transient("summarize", errors.New("model returned an empty interview kit"))
	}
	return resp.Content, nil
}

// ParseAssessment decodes a model reply, tolerating a fenced code block.
// The score is clamped to [0,1].
func ParseAssessment(content string) (inference.Assessment, error) {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}

	var a inference.Assessment
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		err = errors.Wrap(err, "model reply is not a JSON assessment")
		return inference.Assessment{}, inference.Permanent("score", errors.WithDetailf(err, "reply: %s", util.Truncate(content, 200)))
	}
	a.Score = util.Clamp(a.Score, 0, 1)
	return a, nil
}

func describePair(c talent.Candidate, p talent.Posting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Posting: %s", p.Title)
	if p.Location != "" {
		fmt.Fprintf(&b, " (%s)", p.Location)
	}
	fmt.Fprintf(&b, "\nRequired skills: %s\n\n", strings.Join(p.RequiredSkills, ", "))
	fmt.Fprintf(&b, "Candidate: %s", c.Name)
	if c.Headline != "" {
		fmt.Fprintf(&b, ", %s", c.Headline)
	}
	fmt.Fprintf(&b, "\nYears of experience: %d\nSkills: %s\n", c.YearsExperience, strings.Join(c.Skills, ", "))
	if len(c.VerifiedSkills) > 0 {
		fmt.Fprintf(&b, "Verified skills: %s\n", strings.Join(c.VerifiedSkills, ", "))
	}
	return b.String()
}
