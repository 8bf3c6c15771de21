package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevOTPIsFixedAndSingleUse(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	otps := NewOTPStore(client, 0, false)
	assert.Equal(t, 5*time.Minute, otps.TTL())

	code, err := otps.Issue(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, DevOTP, code)

	assert.ErrorIs(t, otps.Verify(ctx, "9876543210", "000000"), ErrInvalidOTP)
	require.NoError(t, otps.Verify(ctx, "9876543210", DevOTP))
	assert.ErrorIs(t, otps.Verify(ctx, "9876543210", DevOTP), ErrInvalidOTP)
}

func TestProductionOTPIsRandomSixDigits(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	otps := NewOTPStore(client, time.Minute, true)

	code, err := otps.Issue(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
	require.NoError(t, otps.Verify(ctx, "a@example.com", code))
}

func TestOTPExpires(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	otps := NewOTPStore(client, time.Minute, false)

	_, err := otps.Issue(ctx, "9876543210")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, otps.Verify(ctx, "9876543210", DevOTP), ErrInvalidOTP)
}

func TestOTPDiscardedAfterTooManyWrongCodes(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	otps := NewOTPStore(client, time.Minute, false)

	_, err := otps.Issue(ctx, "9876543210")
	require.NoError(t, err)
	for i := 0; i < MaxOTPAttempts; i++ {
		assert.ErrorIs(t, otps.Verify(ctx, "9876543210", "000000"), ErrInvalidOTP)
	}
	assert.ErrorIs(t, otps.Verify(ctx, "9876543210", DevOTP), ErrInvalidOTP)

	_, err = otps.Issue(ctx, "9876543210")
	require.NoError(t, err)
	for i := 0; i < MaxOTPAttempts-1; i++ {
		assert.ErrorIs(t, otps.Verify(ctx, "9876543210", "000000"), ErrInvalidOTP)
	}
	require.NoError(t, otps.Verify(ctx, "9876543210", DevOTP))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
	assert.False(t, CheckPassword("", "secret1"))
}
