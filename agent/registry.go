package agent

import (
	"time"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// JobCategory groups agent jobs in the scheduler.
const JobCategory = "agent"

// fallbackInterval keeps a disabled agent without timing registrable.
const fallbackInterval = time.Hour

// JobID is the scheduler id of an agent's job.
func JobID(agent talent.AgentType) string {
	return "agent:" + string(agent)
}

// Registry owns the five agents and keeps their scheduler jobs in step
// with configuration.
type Registry struct {
	agents []Agent
	logger *zap.SugaredLogger
}

// NewRegistry builds every agent from cfg. A nil negotiator uses the
// simulated one with the configured delay.
func NewRegistry(deps Deps, cfg *am.Config, negotiator SlotNegotiator) *Registry {
	if negotiator == nil {
		negotiator = SimulatedNegotiator{Delay: time.Duration(cfg.Scheduling.NegotiationDelayMS) * time.Millisecond}
	}
	policy := func(a talent.AgentType) Policy { return PolicyFromConfig(cfg.Agent(string(a))) }

	return &Registry{
		agents: []Agent{
			NewSourcing(deps, policy(talent.AgentSourcing)),
			NewScreening(deps, policy(talent.AgentScreening)),
			NewScheduling(deps, policy(talent.AgentScheduling), negotiator),
			NewInterview(deps, policy(talent.AgentInterview)),
			NewAnalytics(deps, policy(talent.AgentAnalytics)),
		},
		logger: logger.OrNop(deps.Logger).Named("agents"),
	}
}

// Agents returns the agents in pipeline order.
func (r *Registry) Agents() []Agent {
	return append([]Agent(nil), r.agents...)
}

// Get returns the agent of type t.
func (r *Registry) Get(t talent.AgentType) (Agent, bool) {
	for _, a := range r.agents {
		if a.Type() == t {
			return a, true
		}
	}
	return nil, false
}

// Schedule registers one job per agent.
func (r *Registry) Schedule(s *schedule.Scheduler, cfg *am.Config) error {
	for _, a := range r.agents {
		ac := cfg.Agent(string(a.Type()))
		job := schedule.Job{
			ID:       JobID(a.Type()),
			Name:     string(a.Type()) + " agent",
			Category: JobCategory,
			Interval: time.Duration(ac.IntervalSeconds) * time.Second,
			Cron:     ac.Cron,
			Enabled:  ac.Enabled,
		}
		if job.Interval <= 0 && job.Cron == "" {
			job.Interval = fallbackInterval
		}
		if _, err := s.Register(job, a.Run); err != nil {
			return errors.Wrapf(err, "failed to schedule %s agent", a.Type())
		}
	}
	return nil
}

// Reconfigure applies a reloaded config: policies are swapped and jobs are
// enabled or disabled. Interval and cron changes need a restart.
func (r *Registry) Reconfigure(s *schedule.Scheduler, cfg *am.Config) {
	for _, a := range r.agents {
		ac := cfg.Agent(string(a.Type()))
		a.SetPolicy(PolicyFromConfig(ac))

		id := JobID(a.Type())
		if err := s.SetEnabled(id, ac.Enabled); err != nil {
			r.logger.Warnw("Failed to toggle agent job", logger.FieldJobID, id, logger.FieldError, err)
			continue
		}
		if job, ok := s.Get(id); ok {
			interval := time.Duration(ac.IntervalSeconds) * time.Second
			if interval <= 0 && ac.Cron == "" {
				interval = fallbackInterval
			}
			if job.Interval != interval || job.Cron != ac.Cron {
				r.logger.Warnw("Agent timing changed, restart to apply",
					logger.FieldAgent, a.Type(),
					"interval", interval,
					"cron", ac.Cron)
			}
		}
	}
}
