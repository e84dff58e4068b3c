// Package redis is a Redis-backed store.Store. Records are JSON values under
// prefixed keys; sorted sets and lists index them for queries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "devcrew:"

// maxActivities bounds the activity lists; older entries are trimmed.
const maxActivities = 10000

// Store is the Redis implementation of store.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// Open connects to url (redis://...) and pings it.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client exposes the underlying client so the event stream can share it.
func (s *Store) Client() *redis.Client { return s.rdb }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) agentKey(name string) string   { return s.prefix + "agent:" + name }
func (s *Store) agentsKey() string             { return s.prefix + "agents" }
func (s *Store) taskKey(id string) string      { return s.prefix + "task:" + id }
func (s *Store) tasksKey() string              { return s.prefix + "tasks" }
func (s *Store) agentTasksKey(n string) string { return s.prefix + "tasks:agent:" + n }
func (s *Store) activitiesKey() string         { return s.prefix + "activities" }
func (s *Store) agentActsKey(n string) string  { return s.prefix + "activities:agent:" + n }

func (s *Store) GetAgentState(ctx context.Context, agentName string) (*store.AgentState, error) {
	raw, err := s.rdb.Get(ctx, s.agentKey(agentName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("agent state %s: %w", agentName, store.ErrNotFound)
		}
		return nil, err
	}
	var st store.AgentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode agent state %s: %w", agentName, err)
	}
	return &st, nil
}

func (s *Store) PutAgentState(ctx context.Context, st *store.AgentState) error {
	if st == nil || st.AgentName == "" {
		return errors.New("agent state requires agent name")
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.agentKey(st.AgentName), raw, 0)
		pipe.SAdd(ctx, s.agentsKey(), st.AgentName)
		return nil
	})
	return err
}

func (s *Store) CreateTask(ctx context.Context, t *store.Task) error {
	if t == nil || t.TaskID == "" {
		return errors.New("task requires an id")
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.taskKey(t.TaskID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s: %w", t.TaskID, store.ErrConflict)
	}
	score := float64(t.CreatedAt.UnixMilli())
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.tasksKey(), redis.Z{Score: score, Member: t.TaskID})
		pipe.ZAdd(ctx, s.agentTasksKey(t.AssignedAgent), redis.Z{Score: score, Member: t.TaskID})
		return nil
	})
	return err
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*store.Task, error) {
	raw, err := s.rdb.Get(ctx, s.taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
		}
		return nil, err
	}
	var t store.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *store.Task) error {
	if t == nil || t.TaskID == "" {
		return errors.New("task requires an id")
	}
	prev, err := s.GetTask(ctx, t.TaskID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetXX(ctx, s.taskKey(t.TaskID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s: %w", t.TaskID, store.ErrNotFound)
	}
	if prev.AssignedAgent != t.AssignedAgent {
		score := float64(t.CreatedAt.UnixMilli())
		_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, s.agentTasksKey(prev.AssignedAgent), t.TaskID)
			pipe.ZAdd(ctx, s.agentTasksKey(t.AssignedAgent), redis.Z{Score: score, Member: t.TaskID})
			return nil
		})
	}
	return err
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	index := s.tasksKey()
	if f.AssignedAgent != "" {
		index = s.agentTasksKey(f.AssignedAgent)
	}
	ids, err := s.rdb.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	tasks, err := s.loadTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	limit := f.EffectiveLimit()
	var out []store.Task
	for i := range tasks {
		if !f.Match(&tasks[i]) {
			continue
		}
		out = append(out, tasks[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) loadTasks(ctx context.Context, ids []string) ([]store.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.Task, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var t store.Task
		if err := json.Unmarshal([]byte(str), &t); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", ids[i], err)
		}
		out = append(out, t)
	}
	// Equal scores come back in reverse lexical order; keep ties by id ascending.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AppendActivity(ctx context.Context, a *store.Activity) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.activitiesKey(), raw)
		pipe.LTrim(ctx, s.activitiesKey(), 0, maxActivities-1)
		pipe.LPush(ctx, s.agentActsKey(a.AgentName), raw)
		pipe.LTrim(ctx, s.agentActsKey(a.AgentName), 0, maxActivities-1)
		return nil
	})
	return err
}

func (s *Store) ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	key := s.activitiesKey()
	if f.AgentName != "" {
		key = s.agentActsKey(f.AgentName)
	}
	vals, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	limit := f.EffectiveLimit()
	var out []store.Activity
	for _, v := range vals {
		var a store.Activity
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("decode activity: %w", err)
		}
		if !f.Match(&a) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	stats := models.Stats{TasksByStatus: map[string]int{}}
	n, err := s.rdb.SCard(ctx, s.agentsKey()).Result()
	if err != nil {
		return stats, err
	}
	stats.AgentStates = int(n)
	acts, err := s.rdb.LLen(ctx, s.activitiesKey()).Result()
	if err != nil {
		return stats, err
	}
	stats.Activities = int(acts)
	ids, err := s.rdb.ZRange(ctx, s.tasksKey(), 0, -1).Result()
	if err != nil {
		return stats, err
	}
	tasks, err := s.loadTasks(ctx, ids)
	if err != nil {
		return stats, err
	}
	for _, t := range tasks {
		stats.TasksByStatus[string(t.Status)]++
		stats.Tasks++
	}
	return stats, nil
}
