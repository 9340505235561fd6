// risk_stress fires a burst of concurrent assessments at the risk engine
// through the Redis-backed limiter and reports the decision split. Useful for
// verifying that the fixed-window counter holds up under parallel load.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/adapter/storage"
	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	sourceIP      = "198.51.100.7"
	totalRequests = 50
	rateLimit     = 10
	window        = 60 * time.Second
)

type discardSink struct{}

func (discardSink) Record(context.Context, domain.AuditRecord) error { return nil }

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	rdb.Del(ctx, "ratelimit:"+sourceIP)
	rdb.Del(ctx, "devices:"+sourceIP)

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	adapter := storage.NewRedisAdapter(rdb, rateLimit, window)
	engine := service.NewRiskEngine(adapter, adapter, discardSink{}, service.DefaultRiskConfig(), logger)

	var allowed, flagged, blocked atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			assessment := engine.Assess(ctx,
				domain.SecurityContext{IP: sourceIP, UserAgent: "Mozilla/5.0"},
				domain.RiskPayload{Kind: domain.PayloadLogin})

			switch assessment.Action {
			case domain.RiskActionAllow:
				allowed.Add(1)
			case domain.RiskActionFlag:
				flagged.Add(1)
			case domain.RiskActionBlock:
				blocked.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("requests: %d in %v\n", totalRequests, elapsed)
	fmt.Printf("allowed:  %d\n", allowed.Load())
	fmt.Printf("flagged:  %d\n", flagged.Load())
	fmt.Printf("blocked:  %d\n", blocked.Load())

	// With limit=10 every request past the tenth must carry the
	// high-frequency flag.
	if got := flagged.Load(); got != totalRequests-rateLimit {
		fmt.Printf("WARNING: expected %d flagged, got %d\n", totalRequests-rateLimit, got)
	}
}
