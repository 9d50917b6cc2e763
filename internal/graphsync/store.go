// Package graphsync is the boundary to the knowledge graph store.
// The core only issues upsert and query calls at task step boundaries;
// the default implementation keeps the graph in SurrealDB.
package graphsync

import (
	"context"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/models"
)

// Store is the graph-sync collaborator interface.
type Store interface {
	UpsertEntities(ctx context.Context, projectID string, entities []models.GraphEntity) error
	RelateEntities(ctx context.Context, projectID, fromName, relType, toName string) error
	QueryEntities(ctx context.Context, projectID, entityType string, lens *models.LensType) ([]models.GraphEntity, error)
}

// SurrealStore backs the graph with the primary SurrealDB client.
type SurrealStore struct {
	db *db.Client
}

func NewSurrealStore(client *db.Client) *SurrealStore {
	return &SurrealStore{db: client}
}

func (s *SurrealStore) UpsertEntities(ctx context.Context, projectID string, entities []models.GraphEntity) error {
	return s.db.UpsertGraphEntities(ctx, projectID, entities)
}

func (s *SurrealStore) RelateEntities(ctx context.Context, projectID, fromName, relType, toName string) error {
	return s.db.RelateGraphEntities(ctx, projectID, fromName, relType, toName)
}

func (s *SurrealStore) QueryEntities(ctx context.Context, projectID, entityType string, lens *models.LensType) ([]models.GraphEntity, error) {
	return s.db.QueryGraphEntities(ctx, projectID, entityType, lens)
}
