// Package db provides the storage collaborators shared across packages:
// a GORM/Postgres connection opener, a CouchDB document store for assistant
// schemas, and pgx-backed helpers for high write-volume tables.
package db

import (
	"context"
	"fmt"
	"strings"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // CouchDB driver
)

// AssistantSchemas is the document stored per assistant: its input, config
// and state schemas as mirrored from the upstream engine. Schemas are pure
// JSON documents addressed by assistant id, a natural fit for a document
// store rather than another jsonb column on a relational row.
type AssistantSchemas struct {
	ID           string      `json:"_id"`
	Rev          string      `json:"_rev,omitempty"`
	AssistantID  string      `json:"assistant_id"`
	InputSchema  interface{} `json:"input_schema,omitempty"`
	ConfigSchema interface{} `json:"config_schema,omitempty"`
	StateSchema  interface{} `json:"state_schema,omitempty"`
}

// SchemaStore defines the document operations the mirror package needs for
// assistant schemas, independent of the underlying document database.
type SchemaStore interface {
	Get(ctx context.Context, assistantID string) (*AssistantSchemas, error)
	Save(ctx context.Context, doc AssistantSchemas) error
	Delete(ctx context.Context, assistantID string) error
	Close() error
}

// CouchDBConfig configures a connection to the CouchDB server backing
// SchemaStore.
type CouchDBConfig struct {
	URL             string
	Username        string
	Password        string
	Database        string
	CreateIfMissing bool
}

// CouchDBService implements SchemaStore against a CouchDB database, using
// the document id as the assistant id and CouchDB's revision for
// optimistic-concurrency updates.
type CouchDBService struct {
	client   *kivik.Client
	database *kivik.DB
	dbName   string
}

// NewCouchDBService connects to CouchDB and ensures the target database
// exists, creating it when config.CreateIfMissing is set.
func NewCouchDBService(config CouchDBConfig) (*CouchDBService, error) {
	connectionURL := config.URL
	if config.Username != "" && config.Password != "" && !strings.Contains(connectionURL, "@") {
		parts := strings.SplitN(connectionURL, "://", 2)
		if len(parts) == 2 {
			connectionURL = fmt.Sprintf("%s://%s:%s@%s", parts[0], config.Username, config.Password, parts[1])
		}
	}

	client, err := kivik.New("couch", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to couchdb: %w", err)
	}

	ctx := context.Background()
	exists, err := client.DBExists(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("checking couchdb database: %w", err)
	}
	if !exists {
		if !config.CreateIfMissing {
			return nil, fmt.Errorf("couchdb database %s does not exist", config.Database)
		}
		if err := client.CreateDB(ctx, config.Database); err != nil {
			return nil, fmt.Errorf("creating couchdb database: %w", err)
		}
	}

	return &CouchDBService{client: client, database: client.DB(config.Database), dbName: config.Database}, nil
}

// Get loads the schema document for an assistant. It returns (nil, nil) if
// no document exists yet, since a never-synced assistant has no schemas.
func (c *CouchDBService) Get(ctx context.Context, assistantID string) (*AssistantSchemas, error) {
	row := c.database.Get(ctx, assistantID)
	if row.Err() != nil {
		if kivik.HTTPStatus(row.Err()) == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("getting assistant schemas %s: %w", assistantID, row.Err())
	}
	var doc AssistantSchemas
	if err := row.ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("scanning assistant schemas %s: %w", assistantID, err)
	}
	return &doc, nil
}

// Save upserts the schema document, filling in the current revision when the
// document already exists so CouchDB's MVCC accepts the write.
func (c *CouchDBService) Save(ctx context.Context, doc AssistantSchemas) error {
	if doc.ID == "" {
		doc.ID = doc.AssistantID
	}
	if doc.Rev == "" {
		if existing, err := c.Get(ctx, doc.ID); err == nil && existing != nil {
			doc.Rev = existing.Rev
		}
	}
	if _, err := c.database.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("saving assistant schemas %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes the schema document for an assistant, if present.
func (c *CouchDBService) Delete(ctx context.Context, assistantID string) error {
	existing, err := c.Get(ctx, assistantID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if _, err := c.database.Delete(ctx, assistantID, existing.Rev); err != nil {
		return fmt.Errorf("deleting assistant schemas %s: %w", assistantID, err)
	}
	return nil
}

func (c *CouchDBService) Close() error {
	return c.client.Close()
}
