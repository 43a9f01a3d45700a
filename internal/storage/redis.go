package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// LockTTL bounds how long a Redis lock outlives a holder that died without
// unlocking. Live holders refresh it every LockTTL/3.
const LockTTL = 30 * time.Second

var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisStore keeps each partition in one hash named <namespace>:<partition>,
// with one field per key.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedis creates a RedisStore on an existing client.
func NewRedis(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "colorbook"
	}
	return &RedisStore{client: client, namespace: namespace}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, db int, namespace string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable("ping redis", err)
	}
	return NewRedis(client, namespace), nil
}

func (s *RedisStore) hashKey(partition string) string {
	return s.namespace + ":" + partition
}

// Get retrieves a value from its partition hash.
func (s *RedisStore) Get(ctx context.Context, partition, key string, v any) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	data, err := s.client.HGet(ctx, s.hashKey(partition), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("hget", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", partition, key, err)
	}

	return nil
}

// Put stores a value with a single HSET.
func (s *RedisStore) Put(ctx context.Context, partition, key string, v any) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	if err := s.client.HSet(ctx, s.hashKey(partition), key, data).Err(); err != nil {
		return unavailable("hset", err)
	}
	return nil
}

// Delete removes a field. HDEL of an absent field is not an error.
func (s *RedisStore) Delete(ctx context.Context, partition, key string) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	if err := s.client.HDel(ctx, s.hashKey(partition), key).Err(); err != nil {
		return unavailable("hdel", err)
	}
	return nil
}

// List returns all fields of the partition hash in ascending order.
func (s *RedisStore) List(ctx context.Context, partition string) ([]string, error) {
	if err := validatePartition(partition); err != nil {
		return nil, err
	}

	keys, err := s.client.HKeys(ctx, s.hashKey(partition)).Result()
	if err != nil {
		return nil, unavailable("hkeys", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Scan reads the whole partition with one HGETALL and iterates it in key order.
func (s *RedisStore) Scan(ctx context.Context, partition string, fn func(key string, data json.RawMessage) error) error {
	if err := validatePartition(partition); err != nil {
		return err
	}

	all, err := s.client.HGetAll(ctx, s.hashKey(partition)).Result()
	if err != nil {
		return unavailable("hgetall", err)
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn(k, json.RawMessage(all[k])); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes the partition hash.
func (s *RedisStore) Clear(ctx context.Context, partition string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.hashKey(partition)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// DeleteKeys removes the listed fields with a single HDEL.
func (s *RedisStore) DeleteKeys(ctx context.Context, partition string, keys []string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}
	for _, key := range keys {
		if err := validate(partition, key); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.HDel(ctx, s.hashKey(partition), keys...).Err(); err != nil {
		return unavailable("hdel", err)
	}
	return nil
}

// TryLock sets <namespace>:lock:<name> with SET NX to a token only this
// holder knows. Unlock deletes the key only while it still holds that token.
func (s *RedisStore) TryLock(ctx context.Context, name string) (func() error, error) {
	if err := validatePartition(name); err != nil {
		return nil, err
	}

	key := s.namespace + ":lock:" + name
	token := ulid.Make().String()
	ok, err := s.client.SetNX(ctx, key, token, LockTTL).Result()
	if err != nil {
		return nil, unavailable("setnx", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = refreshScript.Run(context.Background(), s.client, []string{key}, token, LockTTL.Milliseconds()).Err()
			}
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			if e := unlockScript.Run(context.Background(), s.client, []string{key}, token).Err(); e != nil {
				err = unavailable("unlock", e)
			}
		})
		return err
	}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
