package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream key events are appended to.
const DefaultStream = "devcrew:events"

// RedisStream appends events to a capped Redis stream so other processes can
// read them with XREAD. Each entry carries the JSON event under "event".
type RedisStream struct {
	rdb    redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStream wraps rdb. An empty stream uses DefaultStream.
func NewRedisStream(rdb redis.UniversalClient, stream string) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{rdb: rdb, stream: stream, maxLen: 10000}
}

func (r *RedisStream) Publish(ctx context.Context, ev Event) error {
	ev = Stamp(ev)
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{"type": ev.Type, "agent": ev.Agent, "event": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
