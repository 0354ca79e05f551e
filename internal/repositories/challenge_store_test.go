package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryChallengeStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryChallengeStore()

	c := &models.OTPChallenge{Subject: "u1", Purpose: models.OTPPurposeLogin, Code: "654321", ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, store.Put(ctx, c))
	assert.Equal(t, "654321", c.Code, "Put must not modify the caller's challenge")

	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeUnseal, "u1", "654321", now), utils.ErrNoChallengePending)
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "111111", now), utils.ErrOTPMismatch)

	// a mismatch leaves the challenge in place
	require.NoError(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now))
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now), utils.ErrNoChallengePending)
}

func TestMemoryChallengeStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryChallengeStore()

	require.NoError(t, store.Put(ctx, &models.OTPChallenge{
		Subject: "u1", Purpose: models.OTPPurposeLogin, Code: "654321", ExpiresAt: now,
	}))
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now), utils.ErrOTPExpired)
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now), utils.ErrNoChallengePending)
}

func TestMemoryChallengeStoreAttemptLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryChallengeStore()
	put := func() {
		require.NoError(t, store.Put(ctx, &models.OTPChallenge{
			Subject: "u1", Purpose: models.OTPPurposeLogin, Code: "654321", ExpiresAt: now.Add(5 * time.Minute),
		}))
	}
	put()

	for i := 1; i < constants.MaxOTPAttempts; i++ {
		assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "000000", now), utils.ErrOTPMismatch)
	}
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "000000", now), utils.ErrOTPAttemptsExceeded)

	// the real code no longer works once the challenge is burned
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now), utils.ErrNoChallengePending)

	// a fresh code starts a fresh count
	put()
	assert.ErrorIs(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "000000", now), utils.ErrOTPMismatch)
	require.NoError(t, store.Consume(ctx, models.OTPPurposeLogin, "u1", "654321", now))
}

func TestMemoryChallengeStoreSingleConsumer(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryChallengeStore()
	require.NoError(t, store.Put(ctx, &models.OTPChallenge{
		Subject: "u1", Purpose: models.OTPPurposeLogin, Code: "222222", ExpiresAt: now.Add(time.Minute),
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Consume(ctx, models.OTPPurposeLogin, "u1", "222222", now) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
