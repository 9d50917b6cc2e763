package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/docharvester/docharvester-go/internal/models"
)

// ExtractedEntity is one entity parsed from an extraction response.
type ExtractedEntity struct {
	Name        string
	Type        string
	Description string
}

// ExtractedRelation is one relation parsed from an extraction response.
type ExtractedRelation struct {
	Source      string
	Target      string
	RelType     string
	Description string
}

// EntityExtractor pulls entities and relations out of chunk text for
// the knowledge graph.
type EntityExtractor struct {
	model Generator
}

// NewEntityExtractor creates an extractor backed by model.
func NewEntityExtractor(model Generator) *EntityExtractor {
	return &EntityExtractor{model: model}
}

// Extract asks the model for entities and relations in text and parses
// the line protocol it returns.
func (e *EntityExtractor) Extract(ctx context.Context, text string, lens models.LensType) ([]ExtractedEntity, []ExtractedRelation, error) {
	if e.model == nil {
		return nil, nil, fmt.Errorf("no extraction model configured")
	}

	systemPrompt := `You are a Knowledge Graph Specialist. Extract entities and relations from the given text.

Entity types: person, service, concept, project, task, document

Output format (one per line):
ENTITY|name|type|description
RELATION|source|target|relation_type|description

Guidelines:
- Extract all meaningful entities with brief descriptions
- Identify relationships between entities
- Use lowercase entity names with hyphens (e.g., "john-doe", "auth-service")
- For relation types use: works_on, owns, depends_on, references, mentions, relates_to`

	userPrompt := fmt.Sprintf(`Text (%s documentation):
%s

Extracted entities and relations:`, lens, text)

	response, err := e.model.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("extract entities: %w", err)
	}

	entities, relations := ParseExtraction(response)
	return entities, relations, nil
}

// ParseExtraction parses ENTITY| and RELATION| lines, skipping anything
// malformed. Models pad responses with prose; only well-formed lines
// count.
func ParseExtraction(response string) ([]ExtractedEntity, []ExtractedRelation) {
	var entities []ExtractedEntity
	var relations []ExtractedRelation

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ENTITY|"):
			parts := strings.SplitN(line, "|", 4)
			if len(parts) < 3 {
				continue
			}
			entity := ExtractedEntity{
				Name: strings.TrimSpace(parts[1]),
				Type: strings.TrimSpace(parts[2]),
			}
			if entity.Name == "" || entity.Type == "" {
				continue
			}
			if len(parts) == 4 {
				entity.Description = strings.TrimSpace(parts[3])
			}
			entities = append(entities, entity)

		case strings.HasPrefix(line, "RELATION|"):
			parts := strings.SplitN(line, "|", 5)
			if len(parts) < 4 {
				continue
			}
			rel := ExtractedRelation{
				Source:  strings.TrimSpace(parts[1]),
				Target:  strings.TrimSpace(parts[2]),
				RelType: strings.TrimSpace(parts[3]),
			}
			if rel.Source == "" || rel.Target == "" || rel.RelType == "" {
				continue
			}
			if len(parts) == 5 {
				rel.Description = strings.TrimSpace(parts[4])
			}
			relations = append(relations, rel)
		}
	}

	return entities, relations
}
