package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no persisted session exists under a name.
var ErrSessionNotFound = errors.New("persisted session not found")

// ErrSessionCorrupt is returned when a persisted blob cannot be decoded.
var ErrSessionCorrupt = errors.New("persisted session corrupt")

const deleteStateScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteStateLua = redis.NewScript(deleteStateScript)

// Store persists session states in Redis under "<prefix>:s:<name>" and keeps
// an index set of names under "<prefix>:idx".
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	sliding bool
}

// NewStore returns a Store. With sliding enabled, every Load refreshes the
// key's TTL to the value passed to Load.
func NewStore(redis redis.UniversalClient, prefix string, sliding bool) *Store {
	if prefix == "" {
		prefix = "mormot"
	}
	return &Store{
		redis:   redis,
		prefix:  prefix,
		sliding: sliding,
	}
}

func (s *Store) key(name string) string {
	return s.prefix + ":s:" + name
}

func (s *Store) indexKey() string {
	return s.prefix + ":idx"
}

// Save writes st under name with ttl. A non-positive ttl is rejected so no
// private key outlives its session indefinitely.
func (s *Store) Save(ctx context.Context, name string, st *State, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}
	data, err := Encode(st)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(name), data, ttl)
		pipe.SAdd(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Load reads the state saved under name.
func (s *Store) Load(ctx context.Context, name string, ttl time.Duration) (*State, error) {
	key := s.key(name)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	st, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	if s.sliding && ttl > 0 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return st, nil
}

// Delete removes the state saved under name. Deleting a missing name is not
// an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := deleteStateLua.Run(ctx, s.redis, []string{s.key(name), s.indexKey()}, name).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// List returns the names of persisted sessions that have not expired, sorted.
// Expired names are pruned from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(names))
	for _, name := range names {
		n, err := s.redis.Exists(ctx, s.key(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n == 0 {
			if err := s.redis.SRem(ctx, s.indexKey(), name).Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			continue
		}
		live = append(live, name)
	}

	sort.Strings(live)
	return live, nil
}
