package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
)

// consumeScript checks and deletes a challenge in one atomic step.
//
// KEYS[1] challenge hash key
// ARGV[1] hashed code, ARGV[2] now (unix ms), ARGV[3] max attempts
// Returns 0 ok, 1 none pending, 2 expired, 3 mismatch, 4 attempts exhausted.
var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'code', 'exp')
if not h[1] then
  return 1
end
if tonumber(ARGV[2]) >= tonumber(h[2]) then
  redis.call('DEL', KEYS[1])
  return 2
end
if h[1] ~= ARGV[1] then
  local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  if n >= tonumber(ARGV[3]) then
    redis.call('DEL', KEYS[1])
    return 4
  end
  return 3
end
redis.call('DEL', KEYS[1])
return 0
`)

// expiredGrace keeps a lapsed challenge around long enough to be reported
// as expired rather than missing.
const expiredGrace = 10 * time.Minute

type redisChallengeStore struct {
	rdb *redis.Client
}

// NewRedisChallengeStore keeps challenges in Redis hashes. Codes are stored
// hashed.
func NewRedisChallengeStore(rdb *redis.Client) ChallengeStore {
	return &redisChallengeStore{rdb: rdb}
}

func (s *redisChallengeStore) Put(ctx context.Context, c *models.OTPChallenge) error {
	key := challengeKey(c.Purpose, c.Subject)
	ttl := time.Until(c.ExpiresAt) + expiredGrace
	if ttl <= 0 {
		ttl = expiredGrace
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "code", utils.HashToken(c.Code), "exp", c.ExpiresAt.UnixMilli())
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisChallengeStore) Consume(
	ctx context.Context,
	purpose models.OTPPurpose,
	subject, code string,
	now time.Time,
) error {
	res, err := consumeScript.Run(ctx, s.rdb,
		[]string{challengeKey(purpose, subject)},
		utils.HashToken(code), now.UnixMilli(), constants.MaxOTPAttempts,
	).Int()
	if err != nil {
		return err
	}

	switch res {
	case 0:
		return nil
	case 1:
		return utils.ErrNoChallengePending
	case 2:
		return utils.ErrOTPExpired
	case 4:
		return utils.ErrOTPAttemptsExceeded
	default:
		return utils.ErrOTPMismatch
	}
}
