package knowledge

import (
	"encoding/json"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRowSinglePath(t *testing.T) {
	row := Row{Path1: &Path{
		Nodes: []Node{{"User", "Person"}, {"Martha", "Pet"}},
		Edges: []Edge{{"owns"}},
	}}

	assert.Equal(t, "User (Person) --[owns]--> Martha (Pet)", RenderRow(row))
}

func TestRenderRowJoinsSecondPath(t *testing.T) {
	row := Row{
		Path1: &Path{
			Nodes: []Node{{"User", "Person"}, {"Cold", "Condition"}},
			Edges: []Edge{{"has"}},
		},
		Path2: &Path{
			Nodes: []Node{{"Cold", "Condition"}, {"Rest", "Treatment"}},
			Edges: []Edge{{"treated_by"}},
		},
	}

	assert.Equal(t,
		"User (Person) --[has]--> Cold (Condition) --[treated_by]--> Rest (Treatment)",
		RenderRow(row))
}

func TestRenderRowsDropsEmpty(t *testing.T) {
	rows := []Row{
		{},
		{Path1: &Path{Nodes: []Node{{"User", "Person"}}}},
	}

	assert.Equal(t, []string{"User (Person)"}, RenderRows(rows))
	assert.Empty(t, RenderRows(nil))
}

func TestEntityUnmarshalCollectsAttributes(t *testing.T) {
	var extraction Extraction
	err := json.Unmarshal([]byte(`{
		"entities": [
			{"name": "User", "type": "Person"},
			{"name": "Martha", "type": "Pet", "species": "Dog", "attributes": {"age": 4}}
		],
		"relationships": [{"from": "User", "to": "Martha", "relationship": "owns"}]
	}`), &extraction)
	require.NoError(t, err)

	require.Len(t, extraction.Entities, 2)
	assert.Nil(t, extraction.Entities[0].Attributes)
	assert.Equal(t, map[string]any{"species": "Dog", "age": float64(4)}, extraction.Entities[1].Attributes)
	assert.Equal(t, Relationship{From: "User", To: "Martha", Label: "owns"}, extraction.Relationships[0])
	assert.False(t, extraction.Empty())
}

func TestEntityMarshalFlattensAttributes(t *testing.T) {
	data, err := json.Marshal(Entity{Name: "Martha", Type: "Pet", Attributes: map[string]any{"species": "Dog"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Martha","type":"Pet","species":"Dog"}`, string(data))
}

func TestEntityProperties(t *testing.T) {
	entity := Entity{Attributes: map[string]any{
		"species": "Dog",
		"age":     float64(4),
		"tags":    []any{"a", "b"},
		"empty":   nil,
	}}

	assert.Equal(t, map[string]any{
		"species": "Dog",
		"age":     float64(4),
		"tags":    `["a","b"]`,
	}, entity.Properties())
}

func TestConvertPathPrefersTypeProperty(t *testing.T) {
	path := neo4j.Path{
		Nodes: []dbtype.Node{
			{Props: map[string]any{"name": "User", "type": "Person"}},
			{Props: map[string]any{"name": "Lisinopril", "type": "Medication"}},
		},
		Relationships: []dbtype.Relationship{
			{Type: "RELATIONSHIP", Props: map[string]any{"type": "takes"}},
		},
	}

	converted := convertPath(path)
	assert.Equal(t, "User (Person) --[takes]--> Lisinopril (Medication)", RenderRow(Row{Path1: converted}))
}

func TestEndpointTypes(t *testing.T) {
	types := endpointTypes([]Entity{
		{Name: SubjectName, Type: SubjectType},
		{Name: "Martha", Type: "Pet"},
		{Name: "Aspirin", Type: "Medication"},
		{Name: "Aspirin", Type: "Allergy"},
		{Name: "Martha", Type: "Pet"},
		{Name: "", Type: "Condition"},
	})

	assert.Equal(t, map[string]string{
		SubjectName: SubjectType,
		"Martha":    "Pet",
		"Aspirin":   "",
	}, types)
	assert.Equal(t, "", types["Unknown"])
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"Allergy", "Pet"}, distinct([]string{"Pet", "Allergy", "Pet"}))
	assert.Empty(t, distinct(nil))
}
