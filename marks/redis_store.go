package marks

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/persist"
)

// claimScript mirrors SQLStore's conditional upsert.
// KEYS[1] mark hash; ARGV: now_ms, ttl_ms, metadata
var claimScript = r.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'completed' then
	return 0
end
if status == 'started' then
	local updated = tonumber(redis.call('HGET', KEYS[1], 'updated_at_ms'))
	if updated >= tonumber(ARGV[1]) - tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'status', 'started', 'updated_at_ms', ARGV[1], 'ttl_ms', ARGV[2], 'metadata', ARGV[3])
return 1
`)

// RedisStore keeps each mark in a hash under prefix+candidate:job:step.
type RedisStore struct {
	rdb    *r.Client
	prefix string
}

// NewRedisStore creates a redis-backed mark store
func NewRedisStore(rdb *r.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + k.CandidateID + ":" + k.JobID + ":" + k.Step
}

func (s *RedisStore) Claim(ctx context.Context, m Mark) persist.Result[bool] {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return persist.Degraded[bool](err)
	}
	n, err := claimScript.Run(ctx, s.rdb, []string{s.key(m.Key)},
		m.UpdatedAt.UnixMilli(), m.TTL.Milliseconds(), meta).Int()
	if err != nil {
		return persist.Degraded[bool](errors.Wrapf(err, "failed to claim mark %s", m.Step))
	}
	return persist.OK(n == 1)
}

func (s *RedisStore) Complete(ctx context.Context, m Mark) persist.Result[struct{}] {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return persist.Degraded[struct{}](err)
	}
	err = s.rdb.HSet(ctx, s.key(m.Key),
		"status", string(StatusCompleted),
		"updated_at_ms", m.UpdatedAt.UnixMilli(),
		"metadata", meta).Err()
	if err != nil {
		return persist.Degraded[struct{}](errors.Wrapf(err, "failed to complete mark %s", m.Step))
	}
	return persist.OK(struct{}{})
}

func (s *RedisStore) Get(ctx context.Context, key Key) persist.Result[*Mark] {
	fields, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return persist.Degraded[*Mark](errors.Wrapf(err, "failed to read mark %s", key.Step))
	}
	if len(fields) == 0 {
		return persist.OK[*Mark](nil)
	}

	m := Mark{Key: key, Status: Status(fields["status"])}
	if updated, err := strconv.ParseInt(fields["updated_at_ms"], 10, 64); err == nil {
		m.UpdatedAt = time.UnixMilli(updated)
	}
	if ttl, err := strconv.ParseInt(fields["ttl_ms"], 10, 64); err == nil {
		m.TTL = time.Duration(ttl) * time.Millisecond
	}
	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
			return persist.Degraded[*Mark](errors.Wrap(err, "failed to decode mark metadata"))
		}
	}
	return persist.OK(&m)
}
