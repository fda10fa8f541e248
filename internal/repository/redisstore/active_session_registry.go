package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activeSessionsKey = "voice:sessions:active"
	sessionKeyPrefix  = "voice:session:"

	DefaultSessionTTL = 2 * time.Hour
	// DefaultHeartbeatInterval keeps live entries well inside DefaultSessionTTL.
	DefaultHeartbeatInterval = DefaultSessionTTL / 4
)

// SessionMeta is stored next to each registered relay session.
type SessionMeta struct {
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id"`
	UserID     string    `json:"user_id,omitempty"`
	InstanceID string    `json:"instance_id"`
	StartedAt  time.Time `json:"started_at"`
}

// ActiveSessionRegistry tracks live relay sessions across instances.
// Members of the sorted set are scored by their expiry so crashed instances age out.
// A nil registry or nil client is a no-op.
type ActiveSessionRegistry struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewActiveSessionRegistry(rdb *redis.Client, ttl time.Duration) *ActiveSessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &ActiveSessionRegistry{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *ActiveSessionRegistry) enabled() bool {
	return r != nil && r.rdb != nil
}

// Register adds or refreshes a session; calling it again pushes its expiry out.
func (r *ActiveSessionRegistry) Register(ctx context.Context, meta SessionMeta) error {
	if !r.enabled() {
		return nil
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}

	expiresAt := r.now().Add(r.ttl)
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, activeSessionsKey, redis.Z{Score: float64(expiresAt.Unix()), Member: meta.SessionID})
	pipe.Set(ctx, sessionKeyPrefix+meta.SessionID, payload, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register session %s: %w", meta.SessionID, err)
	}
	return nil
}

func (r *ActiveSessionRegistry) Unregister(ctx context.Context, sessionID string) error {
	if !r.enabled() {
		return nil
	}
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, activeSessionsKey, sessionID)
	pipe.Del(ctx, sessionKeyPrefix+sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unregister session %s: %w", sessionID, err)
	}
	return nil
}

// Count prunes expired members and returns the number of live sessions cluster-wide.
func (r *ActiveSessionRegistry) Count(ctx context.Context) (int64, error) {
	if !r.enabled() {
		return 0, nil
	}
	cutoff := strconv.FormatInt(r.now().Unix(), 10)
	if err := r.rdb.ZRemRangeByScore(ctx, activeSessionsKey, "-inf", cutoff).Err(); err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return r.rdb.ZCard(ctx, activeSessionsKey).Result()
}

func (r *ActiveSessionRegistry) Get(ctx context.Context, sessionID string) (*SessionMeta, error) {
	if !r.enabled() {
		return nil, nil
	}
	raw, err := r.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta SessionMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode session meta: %w", err)
	}
	return &meta, nil
}
