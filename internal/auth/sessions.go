package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix      = "session:"
	userSessionsPrefix = "user_sessions:"
)

// SessionStore keeps login sessions in Redis. Each session key maps to a
// user id; a per-user set holds the ids of that user's sessions. The set's
// expiry is refreshed on every touch, so it never expires before a member.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}
// NewSessionStore creates a store whose sessions idle out after ttl.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{redis: client, ttl: ttl}
}

// TTL is the idle lifetime of a session.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Create starts a session for userID and returns its id.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("auth: session id: %w", err)
	}
	if err := s.touch(ctx, id, userID); err != nil {
		return "", fmt.Errorf("auth: create session: %w", err)
	}
	return id, nil
}

func (s *SessionStore) touch(ctx context.Context, id, userID string) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, sessionPrefix+id, userID, s.ttl)
	pipe.SAdd(ctx, userSessionsPrefix+userID, id)
	pipe.Expire(ctx, userSessionsPrefix+userID, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Lookup resolves a session id to its user and extends the session.
func (s *SessionStore) Lookup(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNoSession
	}
	userID, err := s.redis.Get(ctx, sessionPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("auth: lookup session: %w", err)
	}
	if err := s.touch(ctx, id, userID); err != nil {
		return "", fmt.Errorf("auth: refresh session: %w", err)
	}
	return userID, nil
}

// Destroy ends a session. Unknown ids are not an error.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	userID, err := s.redis.Get(ctx, sessionPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: destroy session: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, sessionPrefix+id)
	pipe.SRem(ctx, userSessionsPrefix+userID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("auth: destroy session: %w", err)
	}
	return nil
}

// HasActiveSession reports whether any of userID's sessions is still live.
// Ids whose session key has expired are pruned from the user's set.
func (s *SessionStore) HasActiveSession(ctx context.Context, userID string) (bool, error) {
	setKey := userSessionsPrefix + userID
	ids, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return false, fmt.Errorf("auth: session members: %w", err)
	}
	var stale []any
	for _, id := range ids {
		n, err := s.redis.Exists(ctx, sessionPrefix+id).Result()
		if err != nil {
			return false, fmt.Errorf("auth: session exists: %w", err)
		}
		if n > 0 {
			return true, nil
		}
		stale = append(stale, id)
	}
	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, setKey, stale...).Err()
	}
	return false, nil
}

// ActiveUserIDs lists every user with a live session.
func (s *SessionStore) ActiveUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.redis.Scan(ctx, 0, userSessionsPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		userID := strings.TrimPrefix(iter.Val(), userSessionsPrefix)
		live, err := s.HasActiveSession(ctx, userID)
		if err != nil {
			return nil, err
		}
		if live {
			ids = append(ids, userID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("auth: scan sessions: %w", err)
	}
	return ids, nil
}
