package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addFunction builds the function used throughout these tests.
func addFunction(g *Graph) NodeID {
	return g.Add(FunctionData{
		ReturnType: "int",
		Name:       "add",
		Params:     []Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
	})
}

func assertValid(t *testing.T, g *Graph) {
	t.Helper()

	res := ValidateAll(g)
	assert.Empty(t, res.Errors)
}

func TestConnectScenarioA(t *testing.T) {
	g := New()
	fn := addFunction(g)
	sum := g.Add(VarDeclData{Type: "int", Name: "sum"})
	ret := g.Add(ReturnData{Expr: "sum"})

	require.NoError(t, g.Connect(fn, sum))
	require.NoError(t, g.Connect(sum, ret))

	assert.Equal(t, []NodeID{sum, ret}, g.Body(fn))
	assert.Equal(t, fn, g.Owner(sum))
	assert.Equal(t, fn, g.Owner(ret))
	assert.Equal(t, []NodeID{sum, ret}, g.Chain(fn))
	assertValid(t, g)
}

func TestConnectFunctionClearsBody(t *testing.T) {
	g := New()
	fn := addFunction(g)
	sum := g.Add(VarDeclData{Type: "int", Name: "sum"})
	ret := g.Add(ReturnData{Expr: "sum"})
	other := g.Add(VarDeclData{Type: "int", Name: "other"})

	require.NoError(t, g.Connect(fn, sum))
	require.NoError(t, g.Connect(sum, ret))
	require.NoError(t, g.Connect(fn, other))

	assert.Equal(t, []NodeID{other}, g.Body(fn))
	assert.Equal(t, fn, g.Owner(other))

	for _, id := range []NodeID{sum, ret} {
		n := g.Get(id)
		assert.True(t, n.Owner().IsZero(), "%v keeps owner", id)
		assert.Empty(t, n.Incoming(), "%v keeps incoming edge", id)
		assert.Empty(t, n.Outgoing(), "%v keeps outgoing edge", id)
	}

	assertValid(t, g)
}

func TestConnectDuplicateReturn(t *testing.T) {
	g := New()
	fn := addFunction(g)
	r1 := g.Add(ReturnData{Expr: "1"})
	r2 := g.Add(ReturnData{Expr: "2"})

	require.NoError(t, g.Connect(fn, r1))

	version := g.Version()
	err := g.Connect(r1, r2)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateReturn)

	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, DuplicateReturn, cerr.Code)
	assert.Equal(t, r1, cerr.Source)
	assert.Equal(t, r2, cerr.Target)

	assert.Equal(t, []NodeID{r1}, g.Body(fn))
	assert.True(t, g.Owner(r2).IsZero())
	assert.Empty(t, g.Get(r2).Incoming())
	assert.Equal(t, version, g.Version(), "rejected connect must not mutate")
	assertValid(t, g)
}

func TestConnectReplacesSuccessor(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(AssignData{Target: "a", Expr: "1"})
	bNext := g.Add(AssignData{Target: "a", Expr: "2"})
	c := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.Connect(b, bNext))
	require.NoError(t, g.Connect(a, c))

	assert.Equal(t, []NodeID{a, c}, g.Body(fn))

	// b leaves with its successor still attached to it.
	assert.True(t, g.Owner(b).IsZero())
	assert.True(t, g.Owner(bNext).IsZero())
	assert.Empty(t, g.Get(b).Incoming())
	next, ok := g.Get(b).Next()
	require.True(t, ok)
	assert.Equal(t, bNext, next)

	assertValid(t, g)
}

func TestConnectCarriesLooseChain(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(AssignData{Target: "a", Expr: "1"})
	c := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.Connect(b, c))

	// Cut b and c loose, then reattach them from the function.
	g.Disconnect(a)
	assert.Equal(t, []NodeID{a}, g.Body(fn))
	assert.Equal(t, []NodeID{c}, g.Chain(b))

	require.NoError(t, g.Connect(fn, b))
	assert.Equal(t, []NodeID{b, c}, g.Body(fn))
	assert.True(t, g.Owner(a).IsZero())
	assertValid(t, g)
}

func TestConnectCarriedChainDuplicateReturn(t *testing.T) {
	g := New()
	fn := addFunction(g)
	r1 := g.Add(ReturnData{Expr: "1"})
	x := g.Add(AssignData{Target: "x", Expr: "1"})
	r2 := g.Add(ReturnData{Expr: "2"})

	// Build x -> r2 as a loose chain via a second function.
	tmp := g.Add(FunctionData{Name: "tmp"})
	require.NoError(t, g.Connect(tmp, x))
	require.NoError(t, g.Connect(x, r2))
	g.Delete(tmp)
	require.Equal(t, []NodeID{r2}, g.Chain(x))

	require.NoError(t, g.Connect(fn, r1))

	err := g.Connect(r1, x)
	assert.ErrorIs(t, err, ErrDuplicateReturn)
	assert.Equal(t, []NodeID{r1}, g.Body(fn))
	assert.Equal(t, []NodeID{r2}, g.Chain(x))
}

func TestConnectSameSuccessorIsStable(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.ConnectHandle(a, b, "redrawn"))

	assert.Equal(t, []NodeID{a, b}, g.Body(fn))
	assert.Equal(t, RenderHandle("redrawn"), g.Get(b).Incoming()[0].Handle)
	assertValid(t, g)
}

func TestConnectAlreadyConnected(t *testing.T) {
	g := New()
	f1 := addFunction(g)
	f2 := g.Add(FunctionData{ReturnType: "void", Name: "other"})
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(VarDeclData{Type: "int", Name: "b"})

	require.NoError(t, g.Connect(f1, a))
	require.NoError(t, g.Connect(f2, b))

	err := g.Connect(b, a)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, f1, g.Owner(a))

	err = g.Connect(f2, a)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, []NodeID{b}, g.Body(f2))
	assertValid(t, g)
}

func TestConnectUnassignedSource(t *testing.T) {
	g := New()
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(ReturnData{Expr: "a"})

	err := g.Connect(a, b)
	assert.ErrorIs(t, err, ErrUnassignedSource)
	assert.NotErrorIs(t, err, ErrAlreadyConnected)
	assert.Empty(t, g.Get(a).Outgoing())
}

func TestConnectInvalidEndpoints(t *testing.T) {
	g := New()
	fn := addFunction(g)
	other := g.Add(FunctionData{Name: "other"})
	bin := g.Add(BinaryExprData{Left: "a", Op: OpAdd, Right: "b"})
	v := g.Add(VarDeclData{Type: "int", Name: "v"})
	require.NoError(t, g.Connect(fn, v))

	assert.ErrorIs(t, g.Connect(fn, other), ErrInvalidEndpoint)
	assert.ErrorIs(t, g.Connect(v, other), ErrInvalidEndpoint)
	assert.ErrorIs(t, g.Connect(v, bin), ErrInvalidEndpoint)
	assert.ErrorIs(t, g.Connect(bin, v), ErrInvalidEndpoint)
	assert.ErrorIs(t, g.Connect(fn, NodeID(404)), ErrNodeNotFound)
	assert.ErrorIs(t, g.Connect(NodeID(404), v), ErrNodeNotFound)

	assert.NoError(t, g.Connect(v, v), "self connection is a no-op")
	assert.Equal(t, []NodeID{v}, g.Body(fn))
	assertValid(t, g)
}

func TestConnectReturnSource(t *testing.T) {
	g := New()
	fn := addFunction(g)
	r := g.Add(ReturnData{Expr: "0"})
	x := g.Add(AssignData{Target: "x", Expr: "1"})

	require.NoError(t, g.Connect(fn, r))
	require.NoError(t, g.Connect(r, x))
	assert.Equal(t, []NodeID{r, x}, g.Body(fn))

	res := ValidateAll(g)
	assert.Empty(t, res.Errors)
	assert.True(t, hasWarning(res.Warnings, "follows a return"))
}

func TestDisconnect(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))

	version := g.Version()
	g.Disconnect(b) // nothing after b
	assert.Equal(t, version, g.Version())

	g.Disconnect(fn)
	assert.Empty(t, g.Body(fn))
	assert.True(t, g.Owner(a).IsZero())
	assert.Equal(t, []NodeID{b}, g.Chain(a), "loose chain keeps its links")

	g.Disconnect(a)
	assert.Empty(t, g.Get(b).Incoming())
	assertValid(t, g)
}

func TestDetachMiddle(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(AssignData{Target: "a", Expr: "1"})
	c := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.Connect(b, c))

	g.Detach(b)

	assert.Equal(t, []NodeID{a}, g.Body(fn))
	nb := g.Get(b)
	assert.Empty(t, nb.Incoming())
	assert.Empty(t, nb.Outgoing())
	assert.True(t, nb.Owner().IsZero())
	assert.True(t, g.Owner(c).IsZero())
	assertValid(t, g)
}

func TestDeleteBodyNode(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))

	g.Delete(b)

	assert.False(t, g.Has(b))
	assert.Equal(t, []NodeID{a}, g.Body(fn))
	assert.Empty(t, g.Get(a).Outgoing())

	version := g.Version()
	g.Delete(b)
	assert.Equal(t, version, g.Version(), "second delete is a no-op")
	assertValid(t, g)
}

func TestDeleteFunction(t *testing.T) {
	g := New()
	fn := addFunction(g)
	a := g.Add(VarDeclData{Type: "int", Name: "a"})
	b := g.Add(ReturnData{Expr: "a"})

	require.NoError(t, g.Connect(fn, a))
	require.NoError(t, g.Connect(a, b))

	g.Delete(fn)

	assert.False(t, g.Has(fn))
	assert.Empty(t, g.Functions())
	assert.True(t, g.Owner(a).IsZero())
	assert.True(t, g.Owner(b).IsZero())
	assert.Empty(t, g.Get(a).Incoming())
	assertValid(t, g)
}

// TestRandomMutations drives the graph with random operations and checks the
// structural invariants after each one.
func TestRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		g := New()
		var ids []NodeID

		for step := 0; step < 200; step++ {
			switch op := rng.Intn(10); {
			case op < 3 || len(ids) < 2:
				k := Kind(rng.Intn(5) + 1)
				id, err := g.Create(k, nil)
				require.NoError(t, err)
				ids = append(ids, id)
			case op < 7:
				src := ids[rng.Intn(len(ids))]
				dst := ids[rng.Intn(len(ids))]
				before := g.Version()
				if err := g.Connect(src, dst); err != nil {
					assert.Equal(t, before, g.Version(), "failed connect mutated graph")
				}
			case op < 8:
				g.Disconnect(ids[rng.Intn(len(ids))])
			case op < 9:
				g.Detach(ids[rng.Intn(len(ids))])
			default:
				i := rng.Intn(len(ids))
				g.Delete(ids[i])
				ids = append(ids[:i], ids[i+1:]...)
			}

			res := ValidateAll(g)
			require.Empty(t, res.Errors, "round %d step %d", round, step)

			for _, fn := range g.Functions() {
				assert.Equal(t, g.Chain(fn), g.Body(fn))
			}
		}
	}
}
