// Package redis stores activities in Redis: one hash per activity for scalar fields, a list for
// roster order, and a set for roster membership.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/mergington/internal/domain"
)

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
}

// NewClient creates a Redis client and checks connectivity.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// KEYS: hash, members, participants, index. ARGV: name, description, schedule, max, participants...
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'description', ARGV[2], 'schedule', ARGV[3], 'max_participants', ARGV[4])
for i = 5, #ARGV do
  if redis.call('SADD', KEYS[2], ARGV[i]) == 1 then
    redis.call('RPUSH', KEYS[3], ARGV[i])
  end
end
redis.call('RPUSH', KEYS[4], ARGV[1])
return 1
`)

// KEYS: hash, members, participants. ARGV: email.
var addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[3], ARGV[1])
return 1
`)

// KEYS: members, participants. ARGV: email.
var removeScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('LREM', KEYS[2], 0, ARGV[1])
return 1
`)

// Store provides Redis-backed persistence for activities.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore constructs a Store. Every key is namespaced under prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) indexKey() string { return s.prefix + ":activities" }

func (s *Store) hashKey(name string) string { return s.prefix + ":activity:" + name }

// Roster keys live in their own namespaces so no activity name can collide with another's hash.
func (s *Store) membersKey(name string) string { return s.prefix + ":members:" + name }

func (s *Store) participantsKey(name string) string { return s.prefix + ":roster:" + name }

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.indexKey()).Result()
}

// InsertMany implements domain.Store. Names that already exist are skipped.
func (s *Store) InsertMany(ctx context.Context, activities []domain.Activity) error {
	for _, a := range activities {
		keys := []string{s.hashKey(a.Name), s.membersKey(a.Name), s.participantsKey(a.Name), s.indexKey()}
		args := make([]interface{}, 0, 4+len(a.Participants))
		args = append(args, a.Name, a.Description, a.Schedule, strconv.Itoa(a.MaxParticipants))
		for _, p := range a.Participants {
			args = append(args, p)
		}
		if err := insertScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
			return fmt.Errorf("insert %q: %w", a.Name, err)
		}
	}
	return nil
}

// Find implements domain.Store.
func (s *Store) Find(ctx context.Context, name string) (*domain.Activity, error) {
	fields, participants, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	activity, err := toActivity(name, fields, participants)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// List implements domain.Store, returning activities in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	names, err := s.client.LRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	hashes := make([]*redis.MapStringStringCmd, len(names))
	rosters := make([]*redis.StringSliceCmd, len(names))
	for i, name := range names {
		hashes[i] = pipe.HGetAll(ctx, s.hashKey(name))
		rosters[i] = pipe.LRange(ctx, s.participantsKey(name), 0, -1)
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Activity, 0, len(names))
	for i, name := range names {
		fields := hashes[i].Val()
		if len(fields) == 0 {
			continue
		}
		activity, err := toActivity(name, fields, rosters[i].Val())
		if err != nil {
			return nil, err
		}
		out = append(out, activity)
	}
	return out, nil
}

// AddParticipant implements domain.Store atomically via a Lua script.
func (s *Store) AddParticipant(ctx context.Context, name, email string) (bool, error) {
	keys := []string{s.hashKey(name), s.membersKey(name), s.participantsKey(name)}
	n, err := addScript.Run(ctx, s.client, keys, email).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RemoveParticipant implements domain.Store atomically via a Lua script.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	keys := []string{s.membersKey(name), s.participantsKey(name)}
	n, err := removeScript.Run(ctx, s.client, keys, email).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) load(ctx context.Context, name string) (map[string]string, []string, error) {
	pipe := s.client.Pipeline()
	hash := pipe.HGetAll(ctx, s.hashKey(name))
	roster := pipe.LRange(ctx, s.participantsKey(name), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, err
	}
	return hash.Val(), roster.Val(), nil
}

func toActivity(name string, fields map[string]string, participants []string) (domain.Activity, error) {
	maxParticipants, err := strconv.Atoi(fields["max_participants"])
	if err != nil {
		return domain.Activity{}, fmt.Errorf("activity %q: invalid max_participants %q", name, fields["max_participants"])
	}
	if participants == nil {
		participants = []string{}
	}
	return domain.Activity{
		Name:            name,
		Description:     fields["description"],
		Schedule:        fields["schedule"],
		MaxParticipants: maxParticipants,
		Participants:    participants,
	}, nil
}
