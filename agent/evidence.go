package agent

import (
	"fmt"
	"strings"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
)

func assessmentEvidence(a inference.Assessment) []proposal.Evidence {
	ev := []proposal.Evidence{{Label: "score", Value: fmt.Sprintf("%.2f", a.Score)}}
	if len(a.MatchedSkills) > 0 {
		ev = append(ev, proposal.Evidence{Label: "matched skills", Value: strings.Join(a.MatchedSkills, ", ")})
	}
	if len(a.MissingSkills) > 0 {
		ev = append(ev, proposal.Evidence{Label: "missing skills", Value: strings.Join(a.MissingSkills, ", ")})
	}
	if a.Rationale != "" {
		ev = append(ev, proposal.Evidence{Label: "rationale", Value: a.Rationale})
	}
	return ev
}
