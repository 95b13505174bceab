//go:build integration

package assembly

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"portfolio/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *RedisLocker
	ctx    context.Context
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = NewRedisLocker(s.redis.Client, WithRetryInterval(5*time.Millisecond))
	s.ctx = context.Background()
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushPrefix(s.ctx, lockPrefix))
}

func (s *RedisLockerSuite) TestSecondHolderWaits() {
	unlock, err := s.locker.Lock(s.ctx, "user-1", time.Minute)
	s.Require().NoError(err)

	waitCtx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(waitCtx, "user-1", time.Minute)
	s.ErrorIs(err, context.DeadlineExceeded)

	s.Require().NoError(unlock(s.ctx))
	unlock, err = s.locker.Lock(s.ctx, "user-1", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(unlock(s.ctx))
}

func (s *RedisLockerSuite) TestExpiredHolderCannotReleaseNewLock() {
	stale, err := s.locker.Lock(s.ctx, "user-2", 20*time.Millisecond)
	s.Require().NoError(err)
	time.Sleep(40 * time.Millisecond)

	fresh, err := s.locker.Lock(s.ctx, "user-2", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(stale(s.ctx))

	exists, err := s.redis.Client.Exists(s.ctx, lockPrefix+"user-2").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "stale token leaves the new holder's key alone")
	s.Require().NoError(fresh(s.ctx))
}

func (s *RedisLockerSuite) TestFlushPrefixLeavesOtherKeys() {
	unlock, err := s.locker.Lock(s.ctx, "user-3", time.Minute)
	s.Require().NoError(err)
	defer func() { _ = unlock(s.ctx) }()
	s.Require().NoError(s.redis.Client.Set(s.ctx, "other:key", "v", time.Minute).Err())

	s.Require().NoError(s.redis.FlushPrefix(s.ctx, lockPrefix))

	n, err := s.redis.Client.Exists(s.ctx, lockPrefix+"user-3", "other:key").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n, "only the lock key is removed")
	s.Require().NoError(s.redis.Client.Del(s.ctx, "other:key").Err())
}
