//go:build integration

// Package pgtest starts a throwaway PostgreSQL container for store tests.
package pgtest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cuongbtq/content-orchestrator/shared/postgresql"
)

const (
	testUser     = "test"
	testPassword = "testpass"
	testDatabase = "orchestrator"
)

var (
	containerOnce sync.Once
	container     testcontainers.Container
	containerErr  error
)

func start() (testcontainers.Container, error) {
	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		req := testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       testDatabase,
			},
			Tmpfs: map[string]string{"/var/lib/postgresql/data": "rw,size=256m"},
			Cmd:   []string{"postgres", "-c", "fsync=off", "-c", "synchronous_commit=off"},
			WaitingFor: wait.ForSQL("5432/tcp", "postgres", func(host string, port nat.Port) string {
				return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
					host, port.Port(), testUser, testPassword, testDatabase)
			}).WithStartupTimeout(60 * time.Second),
		}

		container, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	})
	return container, containerErr
}

// NewClient returns a migrated client; tables are truncated on cleanup
func NewClient(t *testing.T) *postgresql.Client {
	t.Helper()

	c, err := start()
	require.NoError(t, err, "failed to start postgres container")

	ctx := context.Background()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := postgresql.NewClient(&postgresql.Config{
		Host:     host,
		Port:     portNum,
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
		SSLMode:  "disable",
	}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, client.Migrate(ctx))

	t.Cleanup(func() {
		_, err := client.GetDB().ExecContext(context.Background(), "TRUNCATE jobs, scheduled_posts")
		if err != nil {
			t.Logf("failed to truncate tables: %v", err)
		}
		client.Close()
	})
	return client
}
