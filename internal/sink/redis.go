package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fare-matrix/internal/batch"
)

// hsetChunk bounds the number of field/value pairs sent per HSET.
const hsetChunk = 1000

// Redis stores a run as one hash per region and run id, with fields
// "from|to" holding the fare in cents. The key of the latest run of each
// region is kept under fares:<region>:latest.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Write(ctx context.Context, rep *batch.Report) error {
	key := runKey(rep.Region, rep.RunID)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	fields := hashFields(rep)
	for i := 0; i < len(fields); i += 2 * hsetChunk {
		end := i + 2*hsetChunk
		if end > len(fields) {
			end = len(fields)
		}
		pipe.HSet(ctx, key, fields[i:end]...)
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	pipe.Set(ctx, latestKey(rep.Region), key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func runKey(region, runID string) string {
	return fmt.Sprintf("fares:%s:%s", regionToken(region), runID)
}

func latestKey(region string) string {
	return fmt.Sprintf("fares:%s:latest", regionToken(region))
}

func regionToken(region string) string {
	if region == "" {
		return "default"
	}
	return region
}

// hashFields flattens the results into HSET arguments.
func hashFields(rep *batch.Report) []any {
	out := make([]any, 0, 2*len(rep.Results))
	for _, res := range rep.Results {
		out = append(out, res.Pair.FromID+"|"+res.Pair.ToID, res.FareCents)
	}
	return out
}
