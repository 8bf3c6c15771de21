package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// DevOTP is issued instead of a random code outside production.
const DevOTP = "123456"

// MaxOTPAttempts is how many wrong codes burn the issued one.
const MaxOTPAttempts = 5

// OTPStore issues one-time codes keyed by phone or email.
type OTPStore struct {
	redis *redis.Client
	ttl   time.Duration
	fixed string
}

// NewOTPStore creates an OTP store. Outside production every code is DevOTP.
func NewOTPStore(client *redis.Client, ttl time.Duration, production bool) *OTPStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &OTPStore{redis: client, ttl: ttl}
	if !production {
		s.fixed = DevOTP
	}
	return s
}

// TTL is how long an issued code stays valid.
func (s *OTPStore) TTL() time.Duration { return s.ttl }

func (s *OTPStore) key(contact string) string {
	return fmt.Sprintf("otp:%s", contact)
}

func (s *OTPStore) attemptsKey(contact string) string {
	return fmt.Sprintf("otp_attempts:%s", contact)
}

// Issue stores a new code for contact, replacing any earlier one.
func (s *OTPStore) Issue(ctx context.Context, contact string) (string, error) {
	code := s.fixed
	if code == "" {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return "", fmt.Errorf("auth: generate otp: %w", err)
		}
		code = fmt.Sprintf("%06d", n.Int64())
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(contact), code, s.ttl)
	pipe.Del(ctx, s.attemptsKey(contact))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("auth: store otp: %w", err)
	}
	return code, nil
}

// Verify checks code and consumes it on success. After MaxOTPAttempts wrong
// codes the issued code is discarded and a new one must be requested.
func (s *OTPStore) Verify(ctx context.Context, contact, code string) error {
	stored, err := s.redis.Get(ctx, s.key(contact)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("auth: read otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return s.recordFailure(ctx, contact)
	}
	if err := s.redis.Del(ctx, s.key(contact), s.attemptsKey(contact)).Err(); err != nil {
		return fmt.Errorf("auth: consume otp: %w", err)
	}
	return nil
}

func (s *OTPStore) recordFailure(ctx context.Context, contact string) error {
	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, s.attemptsKey(contact))
	pipe.Expire(ctx, s.attemptsKey(contact), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("auth: count otp attempt: %w", err)
	}
	if incr.Val() >= MaxOTPAttempts {
		if err := s.redis.Del(ctx, s.key(contact), s.attemptsKey(contact)).Err(); err != nil {
			return fmt.Errorf("auth: discard otp: %w", err)
		}
	}
	return ErrInvalidOTP
}
