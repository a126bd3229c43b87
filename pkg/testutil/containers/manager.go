//go:build integration

// Package containers starts the backing services integration suites run against. Each
// container is started once per test binary and shared; suites reset state between
// tests instead of restarting containers. Ryuk reaps them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	postgresOnce sync.Once
	postgres     *PostgresContainer
	postgresErr  error

	redisOnce sync.Once
	redis     *RedisContainer
	redisErr  error

	redpandaOnce sync.Once
	redpanda     *RedpandaContainer
	redpandaErr  error
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns a migrated Postgres database.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.postgresOnce.Do(func() {
		m.postgres, m.postgresErr = startPostgres()
	})
	if m.postgresErr != nil {
		t.Fatalf("postgres container unavailable: %v", m.postgresErr)
	}
	return m.postgres
}

// GetRedis returns a Redis server.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis, m.redisErr = startRedis()
	})
	if m.redisErr != nil {
		t.Fatalf("redis container unavailable: %v", m.redisErr)
	}
	return m.redis
}

// GetRedpanda returns a Kafka-compatible broker.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.redpandaOnce.Do(func() {
		m.redpanda, m.redpandaErr = startRedpanda()
	})
	if m.redpandaErr != nil {
		t.Fatalf("redpanda container unavailable: %v", m.redpandaErr)
	}
	return m.redpanda
}
