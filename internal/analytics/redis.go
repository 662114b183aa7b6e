// Package analytics records per-day delivery outcome counters in Redis.
// Best-effort only: failures are logged and never reach the dispatch
// pipeline.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

const defaultRetention = 30 * 24 * time.Hour

// RedisSink counts outcomes under mailer:outcomes:<YYYY-MM-DD>:<status>,
// bucketed by calendar day in the configured location.
type RedisSink struct {
	client    *redis.Client
	loc       *time.Location
	clock     func() time.Time
	retention time.Duration
}

func NewRedisSink(client *redis.Client, loc *time.Location) *RedisSink {
	return &RedisSink{
		client:    client,
		loc:       loc,
		clock:     time.Now,
		retention: defaultRetention,
	}
}

// WithClock overrides the time source, for tests.
func (s *RedisSink) WithClock(clock func() time.Time) *RedisSink {
	s.clock = clock
	return s
}

// WithRetention overrides how long daily counters are kept.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	if d > 0 {
		s.retention = d
	}
	return s
}

func (s *RedisSink) Record(ctx context.Context, status domain.DeliveryStatus) {
	day := s.clock().In(s.loc).Format("2006-01-02")
	key := fmt.Sprintf("mailer:outcomes:%s:%s", day, status)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}
