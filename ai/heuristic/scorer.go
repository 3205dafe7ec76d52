// Package heuristic scores candidates by skill overlap without calling any
// model. It is the default scorer and the fallback when no API key is set.
package heuristic

import (
	"context"
	"fmt"
	"strings"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

const (
	skillWeight      = 0.8
	experienceWeight = 0.2
	// Years of experience at which the experience component saturates
	fullExperienceYears = 5
	// Coverage assumed for postings that list no required skills
	neutralCoverage = 0.5
)

// Scorer is a deterministic inference.Scorer.
type Scorer struct{}

var _ inference.Scorer = Scorer{}

func New() Scorer { return Scorer{} }

// Score weights required-skill coverage against years of experience.
func (Scorer) Score(ctx context.Context, c talent.Candidate, p talent.Posting) (inference.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return inference.Assessment{}, err
	}

	matched, missing := Overlap(c.Skills, p.RequiredSkills)
	coverage := neutralCoverage
	if len(p.RequiredSkills) > 0 {
		coverage = float64(len(matched)) / float64(len(matched)+len(missing))
	}
	experience := util.Clamp(float64(c.YearsExperience)/fullExperienceYears, 0, 1)
	score := util.Clamp(skillWeight*coverage+experienceWeight*experience, 0, 1)

	return inference.Assessment{
		Score:         score,
		MatchedSkills: matched,
		MissingSkills: missing,
		Rationale: fmt.Sprintf("%d of %d required skills, %d years experience",
			len(matched), len(matched)+len(missing), c.YearsExperience),
	}, nil
}

// Summarize builds a plain interview kit from the skill overlap.
func (s Scorer) Summarize(ctx context.Context, c talent.Candidate, p talent.Posting) (string, error) {
	a, err := s.Score(ctx, c, p)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Interview kit: %s for %s\n", c.Name, p.Title)
	fmt.Fprintf(&b, "Fit score: %.2f (%s)\n", a.Score, a.Rationale)
	if len(a.MatchedSkills) > 0 {
		b.WriteString("\nDeep-dive questions:\n")
		for _, skill := range a.MatchedSkills {
			fmt.Fprintf(&b, "- Walk through a recent project where you relied on %s.\n", skill)
		}
	}
	if len(a.MissingSkills) > 0 {
		b.WriteString("\nGaps to probe:\n")
		for _, skill := range a.MissingSkills {
			fmt.Fprintf(&b, "- How would you get productive with %s?\n", skill)
		}
	}
	return b.String(), nil
}

// Overlap splits required into skills the candidate has and lacks,
// comparing normalized tokens. Results keep the posting's spelling.
func Overlap(have, required []string) (matched, missing []string) {
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[util.NormalizeToken(s)] = true
	}
	seen := make(map[string]bool, len(required))
	for _, r := range required {
		key := util.NormalizeToken(r)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if set[key] {
			matched = append(matched, r)
		} else {
			missing = append(missing, r)
		}
	}
	return matched, missing
}
