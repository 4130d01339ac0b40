package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps one key per job body plus a list/zset per state, all
// under "{prefix}:". Transitions that touch more than one key run as Lua
// scripts.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisBackend(rdb redis.UniversalClient, name string) *RedisBackend {
	if name == "" {
		name = "queue"
	}
	return &RedisBackend{rdb: rdb, prefix: "tgcast:" + name + ":"}
}

func (b *RedisBackend) key(s string) string     { return b.prefix + s }
func (b *RedisBackend) jobKey(id string) string { return b.prefix + "job:" + id }

// KEYS: wait, active. ARGV: deadline ms, job key prefix.
var reserveScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then return false end
local body = redis.call('GET', ARGV[2] .. id)
if not body then return {id, ''} end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return {id, body}
`)

// KEYS: active, completed counter, completed list, job key.
// ARGV: id, remove (1/0), body, keep, job key prefix.
var completeScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('INCR', KEYS[2])
if ARGV[2] == '1' then
  redis.call('DEL', KEYS[4])
  return 1
end
redis.call('SET', KEYS[4], ARGV[3])
redis.call('LPUSH', KEYS[3], ARGV[1])
local keep = tonumber(ARGV[4])
local old = redis.call('LRANGE', KEYS[3], keep, -1)
for _, v in ipairs(old) do redis.call('DEL', ARGV[5] .. v) end
redis.call('LTRIM', KEYS[3], 0, keep - 1)
return 1
`)

// KEYS: active, delayed, job key. ARGV: id, due ms, body.
var retryScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then return 0 end
redis.call('SET', KEYS[3], ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// KEYS: active, failed, job key. ARGV: id, body, keep (0 = unbounded), job key prefix.
var failScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('SET', KEYS[3], ARGV[2])
redis.call('LPUSH', KEYS[2], ARGV[1])
local keep = tonumber(ARGV[3])
if keep > 0 then
  local old = redis.call('LRANGE', KEYS[2], keep, -1)
  for _, v in ipairs(old) do redis.call('DEL', ARGV[4] .. v) end
  redis.call('LTRIM', KEYS[2], 0, keep - 1)
end
return 1
`)

// KEYS: source zset, wait. ARGV: now ms, batch.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('RPUSH', KEYS[2], id)
end
return #ids
`)

const promoteBatch = 500

func (b *RedisBackend) Add(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, b.jobKey(job.ID), body, 0)
		p.RPush(ctx, b.key("wait"), job.ID)
		return nil
	})
	return err
}

func (b *RedisBackend) Reserve(ctx context.Context, deadline time.Time) (Job, bool, error) {
	for {
		res, err := reserveScript.Run(ctx, b.rdb,
			[]string{b.key("wait"), b.key("active")},
			deadline.UnixMilli(), b.prefix+"job:").Slice()
		if errors.Is(err, redis.Nil) {
			return Job{}, false, nil
		}
		if err != nil {
			return Job{}, false, err
		}
		if len(res) != 2 {
			return Job{}, false, fmt.Errorf("queue: unexpected reserve reply %v", res)
		}
		body, _ := res[1].(string)
		if body == "" {
			// Orphaned id without a body; drop it and look again.
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			return Job{}, false, fmt.Errorf("queue: decode job %v: %w", res[0], err)
		}
		return job, true, nil
	}
}

func (b *RedisBackend) Complete(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	remove := "0"
	if job.RemoveOnComplete {
		remove = "1"
	}
	return completeScript.Run(ctx, b.rdb,
		[]string{b.key("active"), b.key("completed:count"), b.key("completed"), b.jobKey(job.ID)},
		job.ID, remove, body, completedKeep, b.prefix+"job:").Err()
}

func (b *RedisBackend) Retry(ctx context.Context, job Job, at time.Time) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return retryScript.Run(ctx, b.rdb,
		[]string{b.key("active"), b.key("delayed"), b.jobKey(job.ID)},
		job.ID, at.UnixMilli(), body).Err()
}

func (b *RedisBackend) Fail(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return failScript.Run(ctx, b.rdb,
		[]string{b.key("active"), b.key("failed"), b.jobKey(job.ID)},
		job.ID, body, job.RemoveOnFail, b.prefix+"job:").Err()
}

func (b *RedisBackend) Promote(ctx context.Context, now time.Time) (int, error) {
	return b.move(ctx, "delayed", now)
}

func (b *RedisBackend) RecoverExpired(ctx context.Context, now time.Time) (int, error) {
	return b.move(ctx, "active", now)
}

func (b *RedisBackend) move(ctx context.Context, from string, now time.Time) (int, error) {
	total := 0
	for {
		n, err := promoteScript.Run(ctx, b.rdb,
			[]string{b.key(from), b.key("wait")},
			now.UnixMilli(), promoteBatch).Int()
		if err != nil {
			return total, err
		}
		total += n
		if n < promoteBatch {
			return total, nil
		}
	}
}

func (b *RedisBackend) Stats(ctx context.Context) (Stats, error) {
	var (
		wait, failed    *redis.IntCmd
		delayed, active *redis.IntCmd
		completed       *redis.StringCmd
	)
	_, err := b.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		wait = p.LLen(ctx, b.key("wait"))
		delayed = p.ZCard(ctx, b.key("delayed"))
		active = p.ZCard(ctx, b.key("active"))
		failed = p.LLen(ctx, b.key("failed"))
		completed = p.Get(ctx, b.key("completed:count"))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}
	st := Stats{
		Waiting: wait.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
	}
	if v := completed.Val(); v != "" {
		st.Completed, _ = strconv.ParseInt(v, 10, 64)
	}
	return st, nil
}

func (b *RedisBackend) Failed(ctx context.Context, n int) ([]Job, error) {
	if n <= 0 {
		n = 50
	}
	ids, err := b.rdb.LRange(ctx, b.key("failed"), 0, int64(n-1)).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.jobKey(id)
	}
	vals, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// Close is a no-op; the redis client is shared and closed by its owner.
func (b *RedisBackend) Close() error { return nil }
