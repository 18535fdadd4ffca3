package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"db-schema-keeper/internal/config"
)

const (
	MySQLImage = "mysql:8.0"
	RedisImage = "redis:7-alpine"

	mysqlDatabase = "keeper_test"
	mysqlPassword = "test_password"
)

// TestMySQL is a shared MySQL container for integration tests.
type TestMySQL struct {
	Container testcontainers.Container
	DB        *sqlx.DB
	Config    config.DatabaseConfig
}

var (
	sharedMySQL     *TestMySQL
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error

	sharedRedis     *redis.Client
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetTestMySQL returns a MySQL container created once per test binary.
// Tests sharing it must clean up the tables they create.
func GetTestMySQL(t *testing.T) *TestMySQL {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})

	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedMySQLErr)
	}

	return sharedMySQL
}

func setupMySQL() (*TestMySQL, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": mysqlPassword,
			"MYSQL_DATABASE":      mysqlDatabase,
		},
		// the entrypoint starts a temporary server before the real one
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := &config.AppConfig{
		Database: config.DatabaseConfig{
			Host:           host,
			Port:           port.Port(),
			User:           "root",
			Password:       mysqlPassword,
			Name:           mysqlDatabase,
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			ConnectTimeout: 60 * time.Second,
		},
	}

	db, err := config.InitDatabase(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	return &TestMySQL{
		Container: container,
		DB:        db,
		Config:    cfg.Database,
	}, nil
}

// GetTestRedis returns a client for a Redis container created once per
// test binary.
func GetTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedis, sharedRedisErr = setupRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup test redis: %v", sharedRedisErr)
	}

	return sharedRedis
}

func setupRedis() (*redis.Client, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid redis port %q: %w", port.Port(), err)
	}

	return config.InitRedis(ctx, &config.AppConfig{
		Redis: config.RedisConfig{Host: host, Port: portNum},
	}, zap.NewNop())
}
