package marks

import (
	"context"
	"database/sql"

	r "github.com/redis/go-redis/v9"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

// OpenStore builds the configured mark store. The "none" backend returns a
// nil Store, which the Service treats as fail-open. The returned close
// function releases backend connections.
func OpenStore(ctx context.Context, cfg am.MarksConfig, db *sql.DB) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case am.MarksBackendNone:
		return nil, noop, nil
	case am.MarksBackendSQLite, "":
		if db == nil {
			return nil, noop, errors.New("sqlite mark backend requires a database")
		}
		return NewSQLStore(db), noop, nil
	case am.MarksBackendRedis:
		rdb := r.NewClient(&r.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, errors.WithDetailf(errors.Wrap(err, "failed to reach redis"), "addr: %s", cfg.Redis.Addr)
		}
		return NewRedisStore(rdb, cfg.Redis.KeyPrefix), rdb.Close, nil
	default:
		return nil, noop, errors.NewInvalidRequestError("unknown marks backend %q", cfg.Backend)
	}
}
