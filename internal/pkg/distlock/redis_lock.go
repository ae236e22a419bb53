package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// All lock keys live under one Redis namespace so they are easy to
// inspect and to flush separately from the gate cache.
const keyPrefix = "lock:"

// releaseScript deletes the key only while the stored owner token still
// matches. Without the check, a holder whose TTL expired could release a
// lock that another process has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock is a SET NX lock with a TTL and a random owner token.
type RedisLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLock creates a lock on key. The TTL bounds how long a crashed
// holder can block everyone else.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	tok := make([]byte, 16)
	rand.Read(tok)
	return &RedisLock{
		client: client,
		key:    keyPrefix + key,
		owner:  hex.EncodeToString(tok),
		ttl:    ttl,
	}
}

// Acquire makes one non-blocking attempt to take the lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lock if this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}
