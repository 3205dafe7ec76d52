// Package agent implements the orchestration agents. Every agent walks the
// (candidate, posting) pairs it is responsible for through the same loop:
// claim a processing mark, compute an outcome with retries, then either
// write the change directly or queue it for a human, depending on mode.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/pipeline"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/retry"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// Agent is a schedulable orchestration agent.
type Agent interface {
	Type() talent.AgentType
	Run(ctx context.Context) (schedule.Output, error)
	Policy() Policy
	// SetPolicy swaps mode and thresholds; it takes effect on the next pair.
	SetPolicy(Policy)
}

// Policy is the live-tunable part of an agent's configuration.
type Policy struct {
	Mode           talent.Mode
	Threshold      float64
	LowerThreshold float64
}

// PolicyFromConfig reads an agent section of sonar.toml.
func PolicyFromConfig(cfg am.AgentConfig) Policy {
	mode := talent.Mode(cfg.Mode)
	if mode == "" {
		mode = talent.ModeRecommend
	}
	return Policy{Mode: mode, Threshold: cfg.Threshold, LowerThreshold: cfg.LowerThreshold}
}

// Deps are the collaborators shared by all agents. Marks, Queue, Events and
// Bus may be nil.
type Deps struct {
	Talent  talent.Store
	Scorer  inference.Scorer
	Marks   *marks.Service
	Queue   *proposal.Queue
	Mutator *pipeline.Mutator
	Events  *eventlog.Log
	Bus     *bus.Bus
	Retry   retry.Policy
	Logger  *zap.SugaredLogger
}

func (d Deps) withDefaults() Deps {
	if d.Marks == nil {
		d.Marks = marks.NewService(nil, d.Logger)
	}
	if d.Events == nil {
		d.Events = eventlog.NewLog(nil, d.Logger)
	}
	if d.Queue == nil {
		d.Queue = proposal.NewQueue(nil, d.Logger, proposal.WithBus(d.Bus))
	}
	if d.Mutator == nil {
		d.Mutator = pipeline.NewMutator(d.Talent, d.Events, d.Bus, d.Logger)
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = retry.DefaultPolicy()
	}
	return d
}

// outcome of one pair passing through the loop
type outcome string

const (
	outcomeSkipped   outcome = "skipped"
	outcomeUnchanged outcome = "unchanged"
	outcomeApplied   outcome = "applied"
	outcomeProposed  outcome = "proposed"
	outcomeEscalated outcome = "needs_human"
)

// tally counts outcomes over one run.
type tally map[outcome]int

func (t tally) add(o outcome) { t[o]++ }

func (t tally) changed() int { return t[outcomeApplied] + t[outcomeProposed] }

func (t tally) String() string {
	if len(t) == 0 {
		return "nothing to do"
	}
	parts := make([]string, 0, len(t))
	for o, n := range t {
		parts = append(parts, fmt.Sprintf("%d %s", n, o))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func (t tally) payload() map[string]any {
	p := make(map[string]any, len(t))
	for o, n := range t {
		p[string(o)] = n
	}
	return p
}

// base carries what every agent shares: its type, deps and live policy.
type base struct {
	agent  talent.AgentType
	deps   Deps
	policy atomic.Pointer[Policy]
	now    func() time.Time
	logger *zap.SugaredLogger
}

func (b *base) init(agent talent.AgentType, deps Deps, p Policy) {
	b.agent = agent
	b.deps = deps.withDefaults()
	b.now = time.Now
	b.logger = logger.AddAgentSymbol(logger.OrNop(deps.Logger).Named("agent"), string(agent))
	b.policy.Store(&p)
}

func (b *base) Type() talent.AgentType { return b.agent }

func (b *base) Policy() Policy { return *b.policy.Load() }

func (b *base) SetPolicy(p Policy) {
	old := b.policy.Swap(&p)
	if *old != p {
		b.logger.Infow("Agent policy changed",
			logger.FieldMode, p.Mode,
			"threshold", p.Threshold,
			"lower_threshold", p.LowerThreshold)
	}
}

// finish turns a run tally into the job output and announces it.
func (b *base) finish(t tally) schedule.Output {
	sev := bus.SeverityInfo
	if t.changed() > 0 {
		sev = bus.SeveritySuccess
	}
	msg := t.String()
	b.deps.Bus.Notify(sev, fmt.Sprintf("%s agent", b.agent), msg, map[string]any{"agent": string(b.agent), "outcomes": t.payload()})
	b.logger.Infow("Agent run finished", "outcomes", msg)
	return schedule.Output{Message: msg, Payload: t.payload()}
}
