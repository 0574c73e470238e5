package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmerrifield20/trustchain/internal/chain"
)

// ErrNoReport is returned when no audit has completed yet (or it expired).
var ErrNoReport = errors.New("audit: no report available")

// DefaultReportKey is the Redis key holding the latest fleet report.
const DefaultReportKey = "trustchain:audit:latest"

// ReportCache stores the most recent fleet audit report.
type ReportCache interface {
	Store(ctx context.Context, fleet *chain.FleetResult) error
	Latest(ctx context.Context) (*chain.FleetResult, error)
}

// RedisReportCache keeps the latest report in Redis so every API instance
// serves the same result.
type RedisReportCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisReportCache creates a RedisReportCache. A zero ttl keeps the report
// until it is overwritten.
func NewRedisReportCache(client *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, key: DefaultReportKey, ttl: ttl}
}

// Store implements ReportCache.
func (c *RedisReportCache) Store(ctx context.Context, fleet *chain.FleetResult) error {
	data, err := json.Marshal(fleet)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// Latest implements ReportCache.
func (c *RedisReportCache) Latest(ctx context.Context) (*chain.FleetResult, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	var fleet chain.FleetResult
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &fleet, nil
}

// MemoryReportCache is the single-process fallback used when Redis is not
// configured.
type MemoryReportCache struct {
	mu     sync.RWMutex
	latest *chain.FleetResult
}

// NewMemoryReportCache creates an empty MemoryReportCache.
func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{}
}

// Store implements ReportCache.
func (c *MemoryReportCache) Store(_ context.Context, fleet *chain.FleetResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = cloneFleet(fleet)
	return nil
}

// Latest implements ReportCache.
func (c *MemoryReportCache) Latest(_ context.Context) (*chain.FleetResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, ErrNoReport
	}
	return cloneFleet(c.latest), nil
}

// cloneFleet deep-copies a report so cache readers and writers never share
// memory.
func cloneFleet(f *chain.FleetResult) *chain.FleetResult {
	if f == nil {
		return nil
	}
	out := *f
	if f.Results != nil {
		out.Results = make([]*chain.Result, len(f.Results))
		for i, r := range f.Results {
			if r == nil {
				continue
			}
			rc := *r
			rc.FirstEntry = cloneBlock(r.FirstEntry)
			rc.BrokenEntry = cloneBlock(r.BrokenEntry)
			rc.PreviousEntry = cloneBlock(r.PreviousEntry)
			out.Results[i] = &rc
		}
	}
	return &out
}

func cloneBlock(b *chain.Block) *chain.Block {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
