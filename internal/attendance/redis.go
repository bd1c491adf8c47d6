package attendance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"meeting-room-backend/config"
)

// Store keeps one membership set per reservation plus a reverse index per username.
type Store interface {
	Add(ctx context.Context, reservationID uint, username string, expireAt time.Time) error
	Members(ctx context.Context, reservationID uint) ([]string, error)
	IsMember(ctx context.Context, reservationID uint, username string) (bool, error)
	ReservationsOf(ctx context.Context, username string) ([]uint, error)
	Forget(ctx context.Context, username string, reservationID uint) error
}

// NewRedisClient creates the client used for attendance sets.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore implements Store with Redis sets.
type RedisStore struct {
	c *redis.Client
}

func NewRedisStore(c *redis.Client) *RedisStore { return &RedisStore{c: c} }

func membersKey(reservationID uint) string {
	return fmt.Sprintf("meeting:%d:attendees", reservationID)
}

func userKey(username string) string {
	return "attendee:" + username + ":meetings"
}

// extendExpiry copies the remaining lifetime of KEYS[2] onto KEYS[1] when that pushes
// KEYS[1]'s expiry out, so the index lives as long as its longest-lived reservation.
const extendExpiry = `
local want = redis.call('PTTL', KEYS[2])
if want <= 0 then
  return 0
end
if redis.call('PTTL', KEYS[1]) < want then
  redis.call('PEXPIRE', KEYS[1], want)
  return 1
end
return 0
`

// Ping checks that Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

// Add puts username into the reservation's set and schedules the set's expiry.
// Adding an existing member is a no-op apart from refreshing the expiry. The user's
// reverse index expires with the latest reservation it references.
func (r *RedisStore) Add(ctx context.Context, reservationID uint, username string, expireAt time.Time) error {
	key := membersKey(reservationID)
	_, err := r.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, username)
		pipe.ExpireAt(ctx, key, expireAt)
		pipe.SAdd(ctx, userKey(username), strconv.FormatUint(uint64(reservationID), 10))
		pipe.Eval(ctx, extendExpiry, []string{userKey(username), key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add %q to %s: %w", username, key, err)
	}
	return nil
}

// Members returns the attendee usernames sorted alphabetically.
func (r *RedisStore) Members(ctx context.Context, reservationID uint) ([]string, error) {
	members, err := r.c.SMembers(ctx, membersKey(reservationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", membersKey(reservationID), err)
	}
	sort.Strings(members)
	return members, nil
}

func (r *RedisStore) IsMember(ctx context.Context, reservationID uint, username string) (bool, error) {
	ok, err := r.c.SIsMember(ctx, membersKey(reservationID), username).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", membersKey(reservationID), err)
	}
	return ok, nil
}

// ReservationsOf returns the reservation IDs the user has joined, ascending.
// Entries may outlive the reservation's own set; callers confirm with IsMember.
func (r *RedisStore) ReservationsOf(ctx context.Context, username string) ([]uint, error) {
	raw, err := r.c.SMembers(ctx, userKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", userKey(username), err)
	}
	ids := make([]uint, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Forget drops a stale reservation from the user's reverse index.
func (r *RedisStore) Forget(ctx context.Context, username string, reservationID uint) error {
	err := r.c.SRem(ctx, userKey(username), strconv.FormatUint(uint64(reservationID), 10)).Err()
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", userKey(username), err)
	}
	return nil
}
