//go:build integration

package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"dataspace/internal/reconcile/ledger"
	"dataspace/pkg/testutil/containers"
)

type RedisLedgerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	ledger *ledger.Redis
	ctx    context.Context
}

func TestRedisLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLedgerSuite))
}

func (s *RedisLedgerSuite) SetupSuite() {
	s.redis = containers.GetRedis(s.T())
	s.ledger = ledger.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisLedgerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisLedgerSuite) TestAdvanceIsMonotonic() {
	last, err := s.ledger.Last(s.ctx, "pp:t1")
	s.Require().NoError(err)
	s.Zero(last)

	s.Require().NoError(s.ledger.Advance(s.ctx, "pp:t1", 2))
	s.Require().NoError(s.ledger.Advance(s.ctx, "pp:t1", 1))

	last, err = s.ledger.Last(s.ctx, "pp:t1")
	s.Require().NoError(err)
	s.Equal(2, last)
}

func (s *RedisLedgerSuite) TestConcurrentAdvanceKeepsMax() {
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()
			_ = s.ledger.Advance(s.ctx, "conn:c1", ordinal)
		}(i)
	}
	wg.Wait()

	last, err := s.ledger.Last(s.ctx, "conn:c1")
	s.Require().NoError(err)
	s.Equal(20, last)
}
