package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/docharvester/docharvester-go/internal/models"
)

// UpsertGraphEntities writes a batch of extracted entities, merging on
// the (project, name, type) unique key.
func (c *Client) UpsertGraphEntities(ctx context.Context, projectID string, entities []models.GraphEntity) error {
	if len(entities) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(entities))
	for i, e := range entities {
		row := map[string]any{
			"project_id":  projectID,
			"name":        e.Name,
			"type":        e.Type,
			"description": e.Description,
		}
		if e.LensType != nil {
			row["lens_type"] = string(*e.LensType)
		}
		rows[i] = row
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			UPSERT graph_entity SET
				project_id = $row.project_id,
				name = $row.name,
				type = $row.type,
				description = $row.description,
				lens_type = $row.lens_type
			WHERE project_id = $row.project_id
			  AND name = $row.name
			  AND type = $row.type;
		};
	`, map[string]any{"rows": rows})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// QueryGraphEntities returns a project's entities, optionally filtered
// by entity type or lens.
func (c *Client) QueryGraphEntities(ctx context.Context, projectID string, entityType string, lens *models.LensType) ([]models.GraphEntity, error) {
	typeClause := ""
	lensClause := ""
	vars := map[string]any{"project_id": projectID}
	if entityType != "" {
		typeClause = "AND type = $type"
		vars["type"] = entityType
	}
	if lens != nil {
		lensClause = "AND lens_type = $lens_type"
		vars["lens_type"] = string(*lens)
	}

	sql := fmt.Sprintf(`
		SELECT * FROM graph_entity
		WHERE project_id = $project_id %s %s
		ORDER BY name
	`, typeClause, lensClause)

	results, err := surrealdb.Query[[]models.GraphEntity](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("query graph entities: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.GraphEntity{}, nil
	}
	return (*results)[0].Result, nil
}

// RelateGraphEntities creates a typed edge between two entities named
// by (name, type) within one project. Missing endpoints raise an error.
func (c *Client) RelateGraphEntities(
	ctx context.Context,
	projectID string,
	fromName string,
	relType string,
	toName string,
) error {
	sql := `
		LET $from = (SELECT VALUE id FROM graph_entity WHERE project_id = $project_id AND name = $from_name);
		LET $to = (SELECT VALUE id FROM graph_entity WHERE project_id = $project_id AND name = $to_name);

		IF array::len($from) = 0 OR array::len($to) = 0 {
			THROW "entity not found"
		};

		RELATE $from[0]->relates->$to[0] SET rel_type = $rel_type;
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"project_id": projectID,
		"from_name":  fromName,
		"to_name":    toName,
		"rel_type":   relType,
	})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}
