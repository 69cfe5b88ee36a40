package distlock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	unlock, err := New(rdb).Lock(ctx, "stockledger:Cochin|salt")
	assert.Error(t, err)
	assert.Nil(t, unlock)
}

func TestOptions(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	l := New(rdb, WithTTL(time.Minute), WithBackoff(time.Second), WithPrefix("staging:"))
	assert.Equal(t, time.Minute, l.ttl)
	assert.Equal(t, time.Second, l.backoff)
	assert.Equal(t, "staging:", l.prefix)
}

// Runs only when STOCKLEDGER_TEST_REDIS_ADDR points at a scratch server.
func TestMutualExclusion(t *testing.T) {
	addr := os.Getenv("STOCKLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKLEDGER_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := New(rdb, WithPrefix("test:"+t.Name()+":"), WithBackoff(5*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "item")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			holders++
			maxSeen = max(maxSeen, holders)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLockHonoursContext(t *testing.T) {
	addr := os.Getenv("STOCKLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKLEDGER_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := New(rdb, WithPrefix("test:"+t.Name()+":"))
	unlock, err := l.Lock(context.Background(), "item")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "item")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
