package mirror

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphMembershipStore tracks graph-to-assistant membership as edges,
// independent of the relational mirror rows. It backs the "revoke public
// graph permission cascades to its assistants" query in permission, which
// only ever needs "which assistants hang off this graph" rather than any of
// the assistant's own attributes. The graph-scoped sync sweep does not use
// it; SyncGraph pages the upstream search filtered by graph id.
type GraphMembershipStore interface {
	UpsertEdge(ctx context.Context, graphID, assistantID string) error
	RemoveAssistant(ctx context.Context, assistantID string) error
	AssistantIDsByGraph(ctx context.Context, graphID string) ([]string, error)
	Close(ctx context.Context) error
}

// Neo4jGraphRepository implements GraphMembershipStore against Neo4j,
// modeling each graph and assistant as a node connected by a HAS_ASSISTANT
// relationship.
type Neo4jGraphRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jGraphRepository connects to Neo4j and verifies connectivity.
func NewNeo4jGraphRepository(ctx context.Context, uri, username, password string) (*Neo4jGraphRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}
	return &Neo4jGraphRepository{driver: driver}, nil
}

// UpsertEdge ensures a HAS_ASSISTANT relationship exists from graphID to
// assistantID, creating either node if missing.
func (r *Neo4jGraphRepository) UpsertEdge(ctx context.Context, graphID, assistantID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			MERGE (g:Graph {id: $graphID})
			MERGE (a:Assistant {id: $assistantID})
			MERGE (g)-[:HAS_ASSISTANT]->(a)
		`, map[string]interface{}{"graphID": graphID, "assistantID": assistantID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upserting graph membership edge: %w", err)
	}
	return nil
}

// RemoveAssistant deletes an assistant node and all its relationships, used
// when the mirror's grace-period cleanup evicts a stale assistant.
func (r *Neo4jGraphRepository) RemoveAssistant(ctx context.Context, assistantID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			MATCH (a:Assistant {id: $assistantID})
			DETACH DELETE a
		`, map[string]interface{}{"assistantID": assistantID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("removing assistant node %s: %w", assistantID, err)
	}
	return nil
}

// AssistantIDsByGraph returns every assistant id with a HAS_ASSISTANT edge
// from graphID, the query the public-permission revoke cascade walks.
func (r *Neo4jGraphRepository) AssistantIDsByGraph(ctx context.Context, graphID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (g:Graph {id: $graphID})-[:HAS_ASSISTANT]->(a:Assistant)
			RETURN a.id as assistantID
		`, map[string]interface{}{"graphID": graphID})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if id, ok := res.Record().Get("assistantID"); ok {
				ids = append(ids, id.(string))
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying graph membership for %s: %w", graphID, err)
	}
	return result.([]string), nil
}

func (r *Neo4jGraphRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
