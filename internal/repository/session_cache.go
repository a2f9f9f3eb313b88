package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lingua_voice_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	liveSessionKeyFmt   = "voice:session:%s"
	activeSessionKeyFmt = "voice:active:%d"
	ledgerLockKeyFmt    = "voice:ledger:lock:%d"
	liveIndexKey        = "voice:session:index"
)

// SessionCache is the hot tier for live sessions. MySQL stays the durable
// record; everything here carries a TTL and can be rebuilt from it.
type SessionCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{Client: client, TTL: ttl}
}

func (c *SessionCache) PutSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(liveSessionKeyFmt, session.ID)
	pipe := c.Client.TxPipeline()
	pipe.Set(ctx, key, data, c.TTL)
	pipe.SAdd(ctx, liveIndexKey, session.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *SessionCache) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	data, err := c.Client.Get(ctx, fmt.Sprintf(liveSessionKeyFmt, sessionID)).Bytes()
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *SessionCache) Touch(ctx context.Context, sessionID string) error {
	return c.Client.Expire(ctx, fmt.Sprintf(liveSessionKeyFmt, sessionID), c.TTL).Err()
}

func (c *SessionCache) RemoveSession(ctx context.Context, sessionID string) error {
	pipe := c.Client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(liveSessionKeyFmt, sessionID))
	pipe.SRem(ctx, liveIndexKey, sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// LiveSessionIDs returns the index of sessions the hot tier believes are live.
// Entries whose record key already expired are sweep candidates.
func (c *SessionCache) LiveSessionIDs(ctx context.Context) ([]string, error) {
	return c.Client.SMembers(ctx, liveIndexKey).Result()
}

// ClaimActive marks the user as having an open session. Returns false when
// another live session already holds the claim.
func (c *SessionCache) ClaimActive(ctx context.Context, userID uint, sessionID string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, fmt.Sprintf(activeSessionKeyFmt, userID), sessionID, ttl).Result()
}

func (c *SessionCache) ActiveSessionID(ctx context.Context, userID uint) (string, error) {
	id, err := c.Client.Get(ctx, fmt.Sprintf(activeSessionKeyFmt, userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// ReleaseActive clears the claim only if it still belongs to sessionID.
func (c *SessionCache) ReleaseActive(ctx context.Context, userID uint, sessionID string) error {
	key := fmt.Sprintf(activeSessionKeyFmt, userID)
	current, err := c.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != sessionID {
		return nil
	}
	return c.Client.Del(ctx, key).Err()
}

// AcquireLedgerLock serializes progress updates per user across instances.
func (c *SessionCache) AcquireLedgerLock(ctx context.Context, userID uint, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, fmt.Sprintf(ledgerLockKeyFmt, userID), "1", ttl).Result()
}

func (c *SessionCache) ReleaseLedgerLock(ctx context.Context, userID uint) error {
	return c.Client.Del(ctx, fmt.Sprintf(ledgerLockKeyFmt, userID)).Err()
}
