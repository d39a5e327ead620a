package knowledge

import (
	"context"
	"errors"
	"healthmate/app/config"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// ErrInvalidQuery marks a generated query the database refused to run.
var ErrInvalidQuery = errors.New("invalid graph query")

const connectTimeout = 30 * time.Second

var _ do.Shutdownable = (*Service)(nil)

type Service struct {
	cfg    *config.Config
	driver neo4j.DriverWithContext
}

func New(di *do.Injector) (*Service, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return nil, oops.In("knowledge").Wrapf(err, "failed to create neo4j driver")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err = driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, oops.In("knowledge").With("uri", cfg.Neo4j.URI).Wrapf(err, "failed to connect to neo4j")
	}

	return &Service{
		cfg:    cfg,
		driver: driver,
	}, nil
}

// Upsert merges entities by (name, type) and relationships by
// (from, to, label). Relationship endpoints are pinned to the type the batch
// gives their name; a name the batch does not type, or types twice, matches
// every entity with that name. Repeating the same call leaves the graph
// unchanged.
func (s *Service) Upsert(ctx context.Context, entities []Entity, relationships []Relationship) error {
	if len(entities) == 0 && len(relationships) == 0 {
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.cfg.Neo4j.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	subject := Entity{Name: SubjectName, Type: SubjectType}
	all := append([]Entity{subject}, entities...)
	types := endpointTypes(all)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, entity := range all {
			if entity.Name == "" || entity.Type == "" {
				continue
			}

			if _, err := tx.Run(ctx, `
				MERGE (e:Entity {name: $name, type: $type})
				SET e += $props
			`, map[string]any{
				"name":  entity.Name,
				"type":  entity.Type,
				"props": entity.Properties(),
			}); err != nil {
				return nil, err
			}
		}

		for _, rel := range relationships {
			if rel.From == "" || rel.To == "" || rel.Label == "" {
				continue
			}

			if _, err := tx.Run(ctx, `
				MATCH (e1:Entity {name: $from}) WHERE $fromType = '' OR e1.type = $fromType
				MATCH (e2:Entity {name: $to}) WHERE $toType = '' OR e2.type = $toType
				MERGE (e1)-[:RELATIONSHIP {type: $relationship}]->(e2)
			`, map[string]any{
				"from":         rel.From,
				"fromType":     types[rel.From],
				"to":           rel.To,
				"toType":       types[rel.To],
				"relationship": rel.Label,
			}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		return oops.In("knowledge").Wrapf(err, "failed to store entities and relationships")
	}

	slog.InfoContext(ctx, "Stored knowledge",
		"entities", len(entities),
		"relationships", len(relationships),
	)

	return nil
}

// Vocabulary returns the distinct target entity types and relationship types
// directly attached to the subject.
func (s *Service) Vocabulary(ctx context.Context, subject string) (Vocabulary, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, `
		MATCH (u:Entity {name: $subject, type: $subjectType})-[r]->(e:Entity)
		RETURN DISTINCT e.type AS entity_type, r.type AS relationship_type
	`, map[string]any{
		"subject":     subject,
		"subjectType": SubjectType,
	}, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.cfg.Neo4j.Database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return Vocabulary{}, oops.In("knowledge").With("subject", subject).Wrapf(err, "failed to fetch vocabulary")
	}

	var vocabulary Vocabulary
	for _, record := range result.Records {
		if value, ok := record.Get("entity_type"); ok {
			if entityType, ok := value.(string); ok && entityType != "" {
				vocabulary.EntityTypes = append(vocabulary.EntityTypes, entityType)
			}
		}
		if value, ok := record.Get("relationship_type"); ok {
			if relType, ok := value.(string); ok && relType != "" {
				vocabulary.RelationshipTypes = append(vocabulary.RelationshipTypes, relType)
			}
		}
	}

	vocabulary.EntityTypes = distinct(vocabulary.EntityTypes)
	vocabulary.RelationshipTypes = distinct(vocabulary.RelationshipTypes)

	return vocabulary, nil
}

// Query runs a generated read-only query returning path1 and optional path2
// columns. Statement errors are reported as ErrInvalidQuery.
func (s *Service) Query(ctx context.Context, query string) ([]Row, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.cfg.Neo4j.Database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement") {
			return nil, oops.In("knowledge").Code("invalid_query").With("query", query).Wrapf(
				errors.Join(ErrInvalidQuery, err), "query rejected")
		}

		return nil, oops.In("knowledge").With("query", query).Wrapf(err, "failed to execute query")
	}

	rows := make([]Row, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, Row{
			Path1: pathValue(record, "path1"),
			Path2: pathValue(record, "path2"),
		})
	}

	return rows, nil
}

func (s *Service) Shutdown() error {
	return s.driver.Close(context.Background())
}

func pathValue(record *neo4j.Record, key string) *Path {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return nil
	}

	path, ok := value.(neo4j.Path)
	if !ok {
		return nil
	}

	return convertPath(path)
}

func convertPath(path neo4j.Path) *Path {
	result := &Path{
		Nodes: make([]Node, 0, len(path.Nodes)),
		Edges: make([]Edge, 0, len(path.Relationships)),
	}

	for _, node := range path.Nodes {
		result.Nodes = append(result.Nodes, Node{
			Name: stringProp(node.Props, "name"),
			Type: stringProp(node.Props, "type"),
		})
	}
	for _, rel := range path.Relationships {
		relType := stringProp(rel.Props, "type")
		if relType == "" {
			relType = rel.Type
		}
		result.Edges = append(result.Edges, Edge{Type: relType})
	}

	return result
}

func stringProp(props map[string]any, key string) string {
	value, _ := props[key].(string)
	return value
}

// endpointTypes maps each entity name to its type. Names given more than one
// type map to "".
func endpointTypes(entities []Entity) map[string]string {
	types := make(map[string]string, len(entities))
	for _, entity := range entities {
		if entity.Name == "" || entity.Type == "" {
			continue
		}

		known, ok := types[entity.Name]
		switch {
		case !ok:
			types[entity.Name] = entity.Type
		case known != entity.Type:
			types[entity.Name] = ""
		}
	}

	return types
}

func distinct(values []string) []string {
	if len(values) == 0 {
		return values
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return slices.Compact(sorted)
}
