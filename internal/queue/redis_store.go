package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "dailyplan:jobs"
	scanBatch        = 100
	maxDeadLetters   = 1000
)

// RedisStore keeps the queue in Redis so it survives restarts and is shared by
// every instance. A sorted set indexes members by -priority; members are
// zero-padded sequence numbers so equal priorities keep insertion order.
// Payloads live in a hash keyed by member. A worker claims a job by removing
// its member from the sorted set; only one ZREM can succeed.
type RedisStore struct {
	rdb   redis.UniversalClient
	index string
	data  string
	seq   string
	dead  string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		rdb:   rdb,
		index: prefix + ":index",
		data:  prefix + ":data",
		seq:   prefix + ":seq",
		dead:  prefix + ":dead",
	}
}

func member(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func (s *RedisStore) Push(ctx context.Context, job *Job) error {
	seq, err := s.rdb.Incr(ctx, s.seq).Result()
	if err != nil {
		return fmt.Errorf("next job seq: %w", err)
	}
	job.Seq = seq
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	m := member(seq)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.data, m, raw)
		pipe.ZAdd(ctx, s.index, redis.Z{Score: -job.Priority, Member: m})
		return nil
	})
	if err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) PopDue(ctx context.Context, now time.Time) (*Job, error) {
	for offset := int64(0); ; offset += scanBatch {
		members, err := s.rdb.ZRange(ctx, s.index, offset, offset+scanBatch-1).Result()
		if err != nil {
			return nil, fmt.Errorf("scan job index: %w", err)
		}
		if len(members) == 0 {
			return nil, nil
		}
		payloads, err := s.rdb.HMGet(ctx, s.data, members...).Result()
		if err != nil {
			return nil, fmt.Errorf("load jobs: %w", err)
		}

		for i, m := range members {
			raw, ok := payloads[i].(string)
			if !ok {
				// Orphaned index entry.
				s.rdb.ZRem(ctx, s.index, m)
				continue
			}
			var job Job
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				return nil, fmt.Errorf("decode job %s: %w", m, err)
			}
			if !job.Due(now) {
				continue
			}
			removed, err := s.rdb.ZRem(ctx, s.index, m).Result()
			if err != nil {
				return nil, fmt.Errorf("claim job %s: %w", job.ID, err)
			}
			if removed == 0 {
				continue
			}
			if err := s.rdb.HDel(ctx, s.data, m).Err(); err != nil {
				return nil, fmt.Errorf("drop job payload %s: %w", job.ID, err)
			}
			return &job, nil
		}

		if len(members) < scanBatch {
			return nil, nil
		}
	}
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.index).Result()
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return int(n), nil
}

type deadLetter struct {
	Job      *Job      `json:"job"`
	Reason   string    `json:"reason"`
	BuriedAt time.Time `json:"buriedAt"`
}

// Bury records a dropped job in a capped list. Buried jobs are never retried.
func (s *RedisStore) Bury(ctx context.Context, job *Job, reason string) error {
	raw, err := json.Marshal(deadLetter{Job: job, Reason: reason, BuriedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.dead, raw)
		pipe.LTrim(ctx, s.dead, 0, maxDeadLetters-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("bury job %s: %w", job.ID, err)
	}
	return nil
}

// DeadLetters returns up to limit most recently dropped jobs.
func (s *RedisStore) DeadLetters(ctx context.Context, limit int64) ([]Job, error) {
	raws, err := s.rdb.LRange(ctx, s.dead, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var dl deadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		if dl.Job != nil {
			jobs = append(jobs, *dl.Job)
		}
	}
	return jobs, nil
}
