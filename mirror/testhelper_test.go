//go:build integration

package mirror

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

	"github.com/weavehub/weave/db"
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

// fakeEngineClient is an in-memory EngineClient for exercising sync/restore
// flows without a real upstream.
type fakeEngineClient struct {
	assistants map[string]*UpstreamAssistant
	schemas    map[string]*UpstreamSchemas
	nextVer    map[string]int
}

func newFakeEngineClient() *fakeEngineClient {
	return &fakeEngineClient{
		assistants: map[string]*UpstreamAssistant{},
		schemas:    map[string]*UpstreamSchemas{},
		nextVer:    map[string]int{},
	}
}

func (f *fakeEngineClient) GetAssistant(ctx context.Context, id string) (*UpstreamAssistant, error) {
	a, ok := f.assistants[id]
	if !ok {
		return nil, fmt.Errorf("assistant %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeEngineClient) SearchAssistants(ctx context.Context, graphID, cursor string, limit int) (*SearchPage, error) {
	if cursor != "" {
		return &SearchPage{}, nil
	}
	page := &SearchPage{}
	for _, a := range f.assistants {
		if graphID != "" && a.GraphID != graphID {
			continue
		}
		page.Assistants = append(page.Assistants, *a)
	}
	return page, nil
}

func (f *fakeEngineClient) GetSchemas(ctx context.Context, assistantID string) (*UpstreamSchemas, error) {
	s, ok := f.schemas[assistantID]
	if !ok {
		return &UpstreamSchemas{}, nil
	}
	return s, nil
}

func (f *fakeEngineClient) ApplyAssistantUpdate(ctx context.Context, assistantID string, name, description string, config, metadata map[string]interface{}) (int, error) {
	a, ok := f.assistants[assistantID]
	if !ok {
		return 0, fmt.Errorf("assistant %s not found", assistantID)
	}
	if f.nextVer[assistantID] == 0 {
		f.nextVer[assistantID] = a.Version
	}
	f.nextVer[assistantID]++
	a.Name = name
	a.Description = description
	a.Config = config
	a.Metadata = metadata
	a.Version = f.nextVer[assistantID]
	return a.Version, nil
}

func oldTime() time.Time    { return time.Now().AddDate(0, 0, -30) }
func recentTime() time.Time { return time.Now() }

// fakeSchemaStore is an in-memory db.SchemaStore for exercising schema sync
// without a real CouchDB instance.
type fakeSchemaStore struct {
	docs map[string]db.AssistantSchemas
}

func newFakeSchemaStore() *fakeSchemaStore {
	return &fakeSchemaStore{docs: map[string]db.AssistantSchemas{}}
}

func (f *fakeSchemaStore) Get(ctx context.Context, assistantID string) (*db.AssistantSchemas, error) {
	doc, ok := f.docs[assistantID]
	if !ok {
		return nil, nil
	}
	cp := doc
	return &cp, nil
}

func (f *fakeSchemaStore) Save(ctx context.Context, doc db.AssistantSchemas) error {
	doc.Rev = fmt.Sprintf("rev-%d", len(f.docs)+1)
	f.docs[doc.AssistantID] = doc
	return nil
}

func (f *fakeSchemaStore) Delete(ctx context.Context, assistantID string) error {
	delete(f.docs, assistantID)
	return nil
}

func (f *fakeSchemaStore) Close() error { return nil }

// fakeGraphRepo is an in-memory GraphMembershipStore for exercising the
// graph-scoped assistant lookup without a real Neo4j instance.
type fakeGraphRepo struct {
	edges map[string]map[string]bool // graphID -> assistantID -> present
}

func newFakeGraphRepo() *fakeGraphRepo {
	return &fakeGraphRepo{edges: map[string]map[string]bool{}}
}

func (f *fakeGraphRepo) UpsertEdge(ctx context.Context, graphID, assistantID string) error {
	if f.edges[graphID] == nil {
		f.edges[graphID] = map[string]bool{}
	}
	f.edges[graphID][assistantID] = true
	return nil
}

func (f *fakeGraphRepo) RemoveAssistant(ctx context.Context, assistantID string) error {
	for _, assistants := range f.edges {
		delete(assistants, assistantID)
	}
	return nil
}

func (f *fakeGraphRepo) AssistantIDsByGraph(ctx context.Context, graphID string) ([]string, error) {
	var ids []string
	for id := range f.edges[graphID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeGraphRepo) Close(ctx context.Context) error { return nil }
