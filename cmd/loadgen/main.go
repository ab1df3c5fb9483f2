// loadgen storms checkout attempts with racing widget signals and verifies
// that each attempt resolves exactly once. With REDIS_ADDR set it also
// hammers the attempt-consumption guard.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathanbodnar/shoutout/internal/adapter/storage"
	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/core/service"
)

const (
	totalAttempts     = 200
	signalsPerAttempt = 20
	guardRequests     = 100
)

type loadProcessor struct{}

func (loadProcessor) Verify(ctx context.Context, transactionID string) (string, error) {
	return "00", nil
}

func (loadProcessor) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (domain.RefundResult, error) {
	return domain.RefundResult{Success: true, RefundID: "rf-load", AmountCents: amountCents}, nil
}

func main() {
	kinds := []domain.SignalKind{
		domain.SignalSubmit,
		domain.SignalPrimarySuccess,
		domain.SignalAltSuccess,
		domain.SignalBroadcast,
		domain.SignalFailure,
	}

	var resolvedOnce atomic.Int32
	var resolvedNever atomic.Int32

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < totalAttempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			attempt := service.NewCheckoutAttempt(loadProcessor{},
				service.WithWatchdogTimeout(500*time.Millisecond))

			var sigWg sync.WaitGroup
			for j := 0; j < signalsPerAttempt; j++ {
				sigWg.Add(1)
				go func(k int) {
					defer sigWg.Done()
					attempt.Signal(context.Background(), domain.WidgetSignal{
						Kind:          kinds[rand.Intn(len(kinds))],
						TransactionID: fmt.Sprintf("txn-%d-%d", n, k),
					})
				}(j)
			}
			sigWg.Wait()

			select {
			case <-attempt.Outcome():
				resolvedOnce.Add(1)
			case <-time.After(2 * time.Second):
				resolvedNever.Add(1)
				return
			}

			// A second outcome would mean a double resolution.
			select {
			case out := <-attempt.Outcome():
				log.Fatalf("attempt %d resolved twice: %+v", n, out)
			case <-time.After(100 * time.Millisecond):
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("attempts: %d, resolved exactly once: %d, unresolved: %d, elapsed: %s\n",
		totalAttempts, resolvedOnce.Load(), resolvedNever.Load(), elapsed)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		stormGuard(addr)
	}
}

func stormGuard(addr string) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	guard := storage.NewRedisAdapter(rdb)
	key := fmt.Sprintf("loadgen-%d", time.Now().UnixNano())

	var claimed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < guardRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := guard.ConsumeAttempt(ctx, key, nil)
			if err != nil {
				log.Printf("consume attempt error: %v", err)
				return
			}
			if ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("guard requests: %d, claims granted: %d (want 1)\n", guardRequests, claimed.Load())
}
