package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subject is the canonical entity every extracted fact is tied back to.
const (
	SubjectName = "User"
	SubjectType = "Person"
)

type Entity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"-"`
}

type Relationship struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"relationship"`
}

type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

func (e Extraction) Empty() bool {
	return len(e.Entities) == 0 && len(e.Relationships) == 0
}

// Vocabulary lists the entity and relationship types reachable from a subject.
type Vocabulary struct {
	EntityTypes       []string
	RelationshipTypes []string
}

type Node struct {
	Name string
	Type string
}

type Edge struct {
	Type string
}

type Path struct {
	Nodes []Node
	Edges []Edge
}

// Row is one query result: path1 from the subject to a target and an
// optional path2 continuing from that target.
type Row struct {
	Path1 *Path
	Path2 *Path
}

// UnmarshalJSON keeps name and type and folds every other key, plus an
// optional nested "attributes" object, into Attributes.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name, _ := raw["name"].(string)
	typ, _ := raw["type"].(string)
	e.Name = strings.TrimSpace(name)
	e.Type = strings.TrimSpace(typ)
	e.Attributes = nil

	for key, value := range raw {
		switch key {
		case "name", "type":
			continue
		case "attributes":
			nested, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for k, v := range nested {
				e.setAttribute(k, v)
			}
		default:
			e.setAttribute(key, value)
		}
	}

	return nil
}

func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+2)
	for k, v := range e.Attributes {
		out[k] = v
	}
	out["name"] = e.Name
	out["type"] = e.Type

	return json.Marshal(out)
}

func (e *Entity) setAttribute(key string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = value
}

// Properties returns attributes as graph-storable scalars; nested values are
// stored as their JSON text.
func (e Entity) Properties() map[string]any {
	props := make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		switch value := v.(type) {
		case string, bool, int, int64, float64:
			props[k] = value
		case nil:
		default:
			data, err := json.Marshal(value)
			if err != nil {
				props[k] = fmt.Sprint(value)
				continue
			}
			props[k] = string(data)
		}
	}

	return props
}
