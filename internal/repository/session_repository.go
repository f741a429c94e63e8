package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// SessionRepository stores the session registry. Writes are visible to the very next read.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// UpdateActivity moves lastActivity forward to at and returns the stored value, which never decreases.
	UpdateActivity(ctx context.Context, id string, at time.Time) (time.Time, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	// ListByUser returns sessions ordered by lastActivity, most recent first.
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	// DeleteInactiveBefore removes every session whose lastActivity is strictly before cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Every key carries the {sessions} hash tag so scripts and MULTI blocks stay in one cluster slot.
const (
	sessionKeyPrefix     = "{sessions}:session:"
	sessionUserKeyPrefix = "{sessions}:user:"
	sessionActivityKey   = "{sessions}:activity"
)

// touchScript keeps last_activity monotonic and mirrors it into both indexes.
// KEYS: session hash, user index, activity index. ARGV: unix millis, session id.
var touchScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  return -1
end
local at = tonumber(ARGV[1])
local current = tonumber(redis.call('HGET', key, 'last_activity'))
if current ~= nil and current > at then
  at = current
end
redis.call('HSET', key, 'last_activity', at)
redis.call('ZADD', KEYS[2], at, ARGV[2])
redis.call('ZADD', KEYS[3], at, ARGV[2])
return at
`)

// pruneScript deletes a session only if it is still stale, so a touch racing the sweep wins.
// KEYS: session hash, user index, activity index. ARGV: cutoff millis, session id.
var pruneScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  redis.call('ZREM', KEYS[2], ARGV[2])
  redis.call('ZREM', KEYS[3], ARGV[2])
  return 0
end
local last = tonumber(redis.call('HGET', key, 'last_activity'))
if last ~= nil and last >= tonumber(ARGV[1]) then
  return 0
end
redis.call('DEL', key)
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('ZREM', KEYS[3], ARGV[2])
return 1
`)

// revokeScript removes exactly the listed sessions. Members added to the user index after
// the caller read it are left in place for the next revoke to find.
// KEYS: user index, activity index, then one hash per id. ARGV: the ids, in KEYS order.
var revokeScript = redis.NewScript(`
local removed = 0
for i, id in ipairs(ARGV) do
  removed = removed + redis.call('DEL', KEYS[i + 2])
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZREM', KEYS[2], id)
end
return removed
`)

type redisSessionRepository struct {
	client redis.UniversalClient
}

// NewRedisSessionRepository returns a registry stored as one hash per session plus two sorted-set indexes.
func NewRedisSessionRepository(client redis.UniversalClient) SessionRepository {
	return &redisSessionRepository{client: client}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func sessionUserKey(userID string) string { return sessionUserKeyPrefix + userID }

func (r *redisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	last := session.LastActivity.UnixMilli()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.ID), map[string]any{
			"user_id":       session.UserID,
			"service":       session.Service,
			"user_agent":    session.UserAgent,
			"ip_address":    session.IPAddress,
			"created_at":    session.CreatedAt.UnixMilli(),
			"last_activity": last,
		})
		pipe.ZAdd(ctx, sessionUserKey(session.UserID), redis.Z{Score: float64(last), Member: session.ID})
		pipe.ZAdd(ctx, sessionActivityKey, redis.Z{Score: float64(last), Member: session.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeSession(id, fields)
}

func (r *redisSessionRepository) UpdateActivity(ctx context.Context, id string, at time.Time) (time.Time, error) {
	userID, err := r.owner(ctx, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("touch session: %w", err)
	}
	if userID == "" {
		return time.Time{}, ErrNotFound
	}
	res, err := touchScript.Run(ctx, r.client,
		[]string{sessionKey(id), sessionUserKey(userID), sessionActivityKey},
		at.UnixMilli(), id,
	).Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("touch session: %w", err)
	}
	if res < 0 {
		return time.Time{}, ErrNotFound
	}
	return time.UnixMilli(res).UTC(), nil
}

// owner returns the session's user id, or "" when the session does not exist.
func (r *redisSessionRepository) owner(ctx context.Context, id string) (string, error) {
	userID, err := r.client.HGet(ctx, sessionKey(id), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return userID, err
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	userID, err := r.owner(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		if userID != "" {
			pipe.ZRem(ctx, sessionUserKey(userID), id)
		}
		pipe.ZRem(ctx, sessionActivityKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	ids, err := r.client.ZRange(ctx, sessionUserKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids)+2)
	keys = append(keys, sessionUserKey(userID), sessionActivityKey)
	args := make([]any, len(ids))
	for i, id := range ids {
		keys = append(keys, sessionKey(id))
		args[i] = id
	}

	removed, err := revokeScript.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return removed, nil
}

func (r *redisSessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	ids, err := r.client.ZRevRange(ctx, sessionUserKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Session{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load user sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// dangling index entry
			r.client.ZRem(ctx, sessionUserKey(userID), ids[i])
			continue
		}
		session, err := decodeSession(ids[i], fields)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions, nil
}

func (r *redisSessionRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ms := cutoff.UnixMilli()
	ids, err := r.client.ZRangeByScore(ctx, sessionActivityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(ms, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan inactive sessions: %w", err)
	}

	var removed int64
	for _, id := range ids {
		userID, err := r.owner(ctx, id)
		if err != nil {
			return removed, fmt.Errorf("prune session %s: %w", id, err)
		}
		if userID == "" {
			r.client.ZRem(ctx, sessionActivityKey, id)
			continue
		}
		n, err := pruneScript.Run(ctx, r.client,
			[]string{sessionKey(id), sessionUserKey(userID), sessionActivityKey},
			ms, id,
		).Int64()
		if err != nil {
			return removed, fmt.Errorf("prune session %s: %w", id, err)
		}
		removed += n
	}
	return removed, nil
}

func decodeSession(id string, fields map[string]string) (*domain.Session, error) {
	last, err := strconv.ParseInt(fields["last_activity"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: last_activity: %w", id, err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: created_at: %w", id, err)
	}
	return &domain.Session{
		ID:           id,
		UserID:       fields["user_id"],
		Service:      fields["service"],
		UserAgent:    fields["user_agent"],
		IPAddress:    fields["ip_address"],
		CreatedAt:    time.UnixMilli(created).UTC(),
		LastActivity: time.UnixMilli(last).UTC(),
	}, nil
}
