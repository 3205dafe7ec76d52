package commands

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/agent"
	"github.com/duli1982/aitalentsonardemo-sub003/ai/provider"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/db"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/marks"
	"github.com/duli1982/aitalentsonardemo-sub003/pipeline"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/retry"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// openDatabase opens and migrates a database using the specified path.
// If dbPath is empty, it loads from am config.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		path, err := am.GetDatabasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get database path")
		}
		dbPath = path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}

// core is the fully wired orchestration core shared by pulse start and
// pulse run.
type core struct {
	cfg       *am.Config
	db        *sql.DB
	bus       *bus.Bus
	talent    *talent.SQLStore
	events    *eventlog.Log
	queue     *proposal.Queue
	mutator   *pipeline.Mutator
	reviewer  *pipeline.Reviewer
	scheduler *schedule.Scheduler
	registry  *agent.Registry

	closeMarks func() error
}

func buildCore(ctx context.Context, cfg *am.Config, log *zap.SugaredLogger) (*core, error) {
	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	markStore, closeMarks, err := marks.OpenStore(ctx, cfg.Marks, database)
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to open mark store")
	}

	scorer, err := provider.NewScorer(cfg.Inference, log)
	if err != nil {
		closeMarks()
		database.Close()
		return nil, err
	}

	c := &core{
		cfg:        cfg,
		db:         database,
		bus:        bus.New(),
		talent:     talent.NewSQLStore(database),
		closeMarks: closeMarks,
	}
	c.events = eventlog.NewLog(eventlog.NewSQLStore(database), log)
	c.queue = proposal.NewQueue(proposal.NewSQLStore(database), log, proposal.WithBus(c.bus))
	if err := c.queue.Load(ctx); err != nil {
		// Degraded: agents keep proposing into the in-memory queue
		log.Warnw("Proposal queue starts empty", logger.FieldError, err)
	}
	c.mutator = pipeline.NewMutator(c.talent, c.events, c.bus, log)
	c.reviewer = pipeline.NewReviewer(c.queue, c.mutator, c.events, log)

	c.scheduler = schedule.New(log,
		schedule.WithBus(c.bus),
		schedule.WithResultLog(schedule.NewResultLog(cfg.Pulse.ResultLogSize)))

	markTTL := time.Duration(cfg.Marks.TTLSeconds) * time.Second

	c.registry = agent.NewRegistry(agent.Deps{
		Talent:  c.talent,
		Scorer:  scorer,
		Marks:   marks.NewService(markStore, log, marks.WithDefaultTTL(markTTL)),
		Queue:   c.queue,
		Mutator: c.mutator,
		Events:  c.events,
		Bus:     c.bus,
		Retry:   retry.PolicyFromConfig(cfg.Retry),
		Logger:  log,
	}, cfg, nil)

	return c, nil
}

// Close stops the scheduler and releases stores.
func (c *core) Close() {
	c.scheduler.Stop()
	if err := c.closeMarks(); err != nil {
		logger.Logger.Warnw("Failed to close mark store", logger.FieldError, err)
	}
	c.db.Close()
}
