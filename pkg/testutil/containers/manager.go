//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Containers are shared per test binary: the first suite to ask pays the
// startup cost, later suites reuse the instance and isolate via
// TruncateTables or FlushAll.
var (
	postgresOnce sync.Once
	postgres     *PostgresContainer

	redisOnce sync.Once
	redisC    *RedisContainer
)

// GetPostgres returns the shared PostgreSQL container.
func GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	postgresOnce.Do(func() {
		postgres = NewPostgresContainer(t)
	})
	return postgres
}

// GetRedis returns the shared Redis container.
func GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	redisOnce.Do(func() {
		redisC = NewRedisContainer(t)
	})
	return redisC
}
