package project

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/splice/pkg/codegen"
	"github.com/chazu/splice/pkg/graph"
)

func buildAdd(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.New()
	fn := g.Add(graph.FunctionData{
		ReturnType: "int",
		Name:       "add",
		Params:     []graph.Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
	})
	sum := g.Add(graph.VarDeclData{Type: "int", Name: "sum"})
	ret := g.Add(graph.ReturnData{Expr: "sum"})

	require.NoError(t, g.ConnectHandle(fn, sum, "edge-1"))
	require.NoError(t, g.Connect(sum, ret))

	return g
}

func TestSnapshot(t *testing.T) {
	g := buildAdd(t)
	g.Add(graph.AssignData{Target: "x", Expr: "1"})

	doc := Snapshot(g)

	assert.Equal(t, FormatVersion, doc.Version)
	require.Len(t, doc.Nodes, 4)
	assert.Equal(t, NodeRecord{
		ID:     1,
		Kind:   "function",
		Fields: graph.Fields{"return_type": "int", "name": "add", "params": "int a, int b"},
	}, doc.Nodes[0])
	assert.Equal(t, uint64(1), doc.Nodes[2].Owner)
	assert.Equal(t, 1, doc.Nodes[2].Index)
	assert.Zero(t, doc.Nodes[3].Owner)

	assert.Equal(t, []EdgeRecord{
		{Source: 1, Target: 2, Handle: "edge-1"},
		{Source: 2, Target: 3},
	}, doc.Edges)

	require.NoError(t, doc.Validate())
}

func TestLoadRoundTrip(t *testing.T) {
	g := buildAdd(t)
	want := codegen.GenerateProgram(g)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Snapshot(g)))

	doc, err := Decode(&buf)
	require.NoError(t, err)

	l, err := Load(doc)
	require.NoError(t, err)
	assert.Empty(t, l.Rejected)

	assert.Equal(t, want, codegen.GenerateProgram(l.Graph))
	assert.Equal(t, g.NodeCount(), l.Graph.NodeCount())

	// Handles survive; missing ones are minted.
	fn := l.IDs[1]
	first := l.Graph.Get(l.Graph.Body(fn)[0])
	assert.Equal(t, graph.RenderHandle("edge-1"), first.Incoming()[0].Handle)

	second := l.Graph.Get(l.Graph.Body(fn)[1])
	assert.Len(t, string(second.Incoming()[0].Handle), 36)
}

func TestRoundTripKeepsSignaturesAndDeclarations(t *testing.T) {
	g := graph.New()
	fn := g.Add(graph.FunctionData{ReturnType: "int", Name: "f"}.
		WithParam("m", "std::map<int, int>").
		WithParam("n", "int"))
	x := g.Add(graph.VarDeclData{Type: "int", Name: "x", HasInit: true})
	ret := g.Add(graph.ReturnData{Expr: "0"})
	require.NoError(t, g.Connect(fn, x))
	require.NoError(t, g.Connect(x, ret))

	want := "int f(std::map<int, int> m, int n) {\nint x;\nreturn 0;\n}\n"
	require.Equal(t, want, codegen.GenerateProgram(g))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Snapshot(g)))

	doc, err := Decode(&buf)
	require.NoError(t, err)

	l, err := Load(doc)
	require.NoError(t, err)
	assert.Empty(t, l.Rejected)
	assert.Equal(t, want, codegen.GenerateProgram(l.Graph))
}

func TestLoadRejectsBadEdges(t *testing.T) {
	doc := &Document{
		Version: 1,
		Nodes: []NodeRecord{
			{ID: 10, Kind: "function", Fields: map[string]string{"name": "f"}},
			{ID: 11, Kind: "return", Fields: map[string]string{"expr": "1"}},
			{ID: 12, Kind: "return", Fields: map[string]string{"expr": "2"}},
			{ID: 13, Kind: "var"},
		},
		Edges: []EdgeRecord{
			{Source: 10, Target: 11},
			{Source: 11, Target: 12}, // second return
			{Source: 13, Target: 12}, // unattached source
			{Source: 10, Target: 99}, // unknown node
		},
	}

	l, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, l.Rejected, 3)

	assert.ErrorIs(t, l.Rejected[0].Err, graph.ErrDuplicateReturn)
	assert.ErrorIs(t, l.Rejected[1].Err, graph.ErrUnassignedSource)
	assert.ErrorIs(t, l.Rejected[2].Err, graph.ErrNodeNotFound)
	assert.Contains(t, l.Rejected[2].Error(), "10 -> 99")

	assert.Equal(t, "int f() {\nreturn 1;\n}\n", codegen.GenerateProgram(l.Graph))
}

func TestLoadEdgeOrderMatters(t *testing.T) {
	// Chain edge listed before the function edge: the statement has no owner
	// yet, so the replay rejects it.
	doc := &Document{
		Version: 1,
		Nodes: []NodeRecord{
			{ID: 1, Kind: "function", Fields: map[string]string{"name": "f"}},
			{ID: 2, Kind: "var", Fields: map[string]string{"name": "x"}},
			{ID: 3, Kind: "return", Fields: map[string]string{"expr": "x"}},
		},
		Edges: []EdgeRecord{
			{Source: 2, Target: 3},
			{Source: 1, Target: 2},
		},
	}

	l, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, l.Rejected, 1)
	assert.ErrorIs(t, l.Rejected[0].Err, graph.ErrUnassignedSource)
	assert.Equal(t, "int f() {\nint x;\n}\n", codegen.GenerateProgram(l.Graph))
}

func TestLoadInvalidDocument(t *testing.T) {
	cases := map[string]*Document{
		"version":   {Version: 2},
		"kind":      {Version: 1, Nodes: []NodeRecord{{ID: 1, Kind: "loop"}}},
		"zero id":   {Version: 1, Nodes: []NodeRecord{{Kind: "var"}}},
		"self edge": {Version: 1, Edges: []EdgeRecord{{Source: 1, Target: 1}}},
		"project":   {Version: 1, Project: "not-a-uuid"},
	}

	for name, doc := range cases {
		_, err := Load(doc)
		assert.Error(t, err, name)
	}

	_, err := Load(&Document{Version: 1, Nodes: []NodeRecord{{ID: 1, Kind: "var"}, {ID: 1, Kind: "var"}}})
	assert.ErrorContains(t, err, "duplicate node id")

	_, err = Load(&Document{Version: 1, Nodes: []NodeRecord{{ID: 1, Kind: "var", Fields: map[string]string{"nope": "1"}}}})
	assert.ErrorIs(t, err, graph.ErrBadField)
}

func TestDecodeJSON(t *testing.T) {
	src := `{"version": 1, "nodes": [{"id": 1, "kind": "function", "fields": {"name": "main", "return_type": "void"}}]}`

	doc, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	l, err := Load(doc)
	require.NoError(t, err)
	assert.Equal(t, "void main() {\n}\n", codegen.GenerateProgram(l.Graph))
}

func TestDecodeUnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("version: 1\nbogus: true\n"))
	assert.Error(t, err)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.splice.yaml")
	g := buildAdd(t)

	require.NoError(t, Save(path, "adder", g))

	doc, l, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "adder", doc.Name)
	assert.Len(t, doc.Project, 36)
	assert.Equal(t, codegen.GenerateProgram(g), codegen.GenerateProgram(l.Graph))

	// Saving again keeps the project id.
	require.NoError(t, Save(path, "adder", l.Graph))
	again, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Project, again.Project)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
