//go:build integration

package summarizer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	return db
}

type fakeHistoryProvider struct {
	messages map[string][]Message
	err      error
}

func (f *fakeHistoryProvider) History(ctx context.Context, threadID string) ([]Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[threadID], nil
}

type fakeNamer struct {
	result NamingResult
	err    error
}

func (f *fakeNamer) Name(ctx context.Context, messages []Message) (NamingResult, error) {
	if f.err != nil {
		return NamingResult{}, f.err
	}
	return f.result, nil
}

type fakeBumper struct{ calls int }

func (f *fakeBumper) BumpThreadsVersion(ctx context.Context) { f.calls++ }
