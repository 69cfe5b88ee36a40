// Package distlock serializes ledger writers across processes with Redis
// locks.
package distlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/sukino/stockledger"
)

// Default lock settings.
const (
	DefaultTTL     = 30 * time.Second
	DefaultBackoff = 50 * time.Millisecond
)

// compile-time interface check
var _ stockledger.Locker = (*Locker)(nil)

// Locker implements stockledger.Locker on top of redislock.
type Locker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	prefix  string
}

// Option configures a Locker.
type Option func(*Locker)

// WithTTL sets how long a lock survives without being released.
func WithTTL(d time.Duration) Option { return func(l *Locker) { l.ttl = d } }

// WithBackoff sets the retry interval while waiting for a held key.
func WithBackoff(d time.Duration) Option { return func(l *Locker) { l.backoff = d } }

// WithPrefix namespaces lock keys, for several deployments sharing a Redis.
func WithPrefix(p string) Option { return func(l *Locker) { l.prefix = p } }

// New returns a Locker using rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:  redislock.New(rdb),
		ttl:     DefaultTTL,
		backoff: DefaultBackoff,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Lock retries until the key is obtained or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("distlock: %s: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("distlock: obtain %s: %w", key, err)
	}

	return func() {
		// A lock that expired or was released already is not an error here:
		// the version check on the row still guards the write.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(ctx)
	}, nil
}
