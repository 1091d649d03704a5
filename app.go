package main

import (
	"context"
	"errors"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"tlog.app/go/tlog"

	"github.com/chazu/splice/pkg/codegen"
	"github.com/chazu/splice/pkg/config"
	"github.com/chazu/splice/pkg/engine"
	"github.com/chazu/splice/pkg/graph"
	"github.com/chazu/splice/pkg/project"
)

// Events emitted to the frontend.
const (
	EventGraphChanged = "graph:changed"
	EventGraphReset   = "graph:reset"
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
//
// Bindings may be called concurrently by the runtime; mu serializes them.
type App struct {
	ctx context.Context
	cfg config.Config

	mu          sync.Mutex
	engine      *engine.Engine
	graph       *graph.Graph
	unsubscribe func()

	// emit forwards events to the frontend. Tests replace it.
	emit func(name string, data interface{})
}

// NodeView is the JSON form of a node sent to the frontend.
type NodeView struct {
	ID     uint64            `json:"id"`
	Kind   string            `json:"kind"`
	Label  string            `json:"label"`
	Fields map[string]string `json:"fields"`
	Owner  uint64            `json:"owner"`
	Body   []uint64          `json:"body"`
}

// EdgeView is the JSON form of an edge.
type EdgeView struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
	Handle string `json:"handle"`
}

// ChangeEvent is the payload of EventGraphChanged.
type ChangeEvent struct {
	Kind    string   `json:"kind"`
	Node    uint64   `json:"node"`
	Edge    EdgeView `json:"edge"`
	Owner   uint64   `json:"owner"`
	Version uint64   `json:"version"`
}

// ActionResult reports the outcome of a mutation. Code is set for rejected
// connections: "already connected", "duplicate return" or "unassigned source".
type ActionResult struct {
	OK    bool     `json:"ok"`
	Error string   `json:"error,omitempty"`
	Code  string   `json:"code,omitempty"`
	Node  NodeView `json:"node"`
}

// EvalErrorData is a JSON-serializable script error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ScriptResult is returned by RunScript.
type ScriptResult struct {
	Code     string          `json:"code"`
	Nodes    []NodeView      `json:"nodes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// Finding is one validation result.
type Finding struct {
	Node     uint64 `json:"node"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// LoadResult is returned by LoadProject.
type LoadResult struct {
	OK       bool       `json:"ok"`
	Error    string     `json:"error,omitempty"`
	Name     string     `json:"name"`
	Nodes    []NodeView `json:"nodes"`
	Rejected []string   `json:"rejected"`
}

// PaletteEntry describes one block kind the user can place.
type PaletteEntry struct {
	Kind     string            `json:"kind"`
	Fields   []string          `json:"fields"`
	Defaults map[string]string `json:"defaults"`
}

// NewApp creates a new App with default settings and an empty program.
func NewApp() *App {
	return NewAppWithConfig(config.Default())
}

// NewAppWithConfig creates a new App using cfg.
func NewAppWithConfig(cfg config.Config) *App {
	a := &App{
		cfg:    cfg,
		engine: engine.NewEngine(cfg.EngineOptions()...),
		emit:   func(string, interface{}) {},
	}
	a.setGraph(graph.New())
	return a
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.emit = func(name string, data interface{}) {
		runtime.EventsEmit(a.ctx, name, data)
	}
}

// setGraph swaps the current program, moving the change subscription over.
func (a *App) setGraph(g *graph.Graph) {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}

	a.graph = g
	a.unsubscribe = g.Subscribe(func(c graph.Change) {
		a.emit(EventGraphChanged, ChangeEvent{
			Kind:    c.Kind.String(),
			Node:    uint64(c.Node),
			Edge:    edgeView(c.Edge),
			Owner:   uint64(c.Owner),
			Version: g.Version(),
		})
	})
}

// Palette lists the block kinds with their editable fields and defaults.
func (a *App) Palette() []PaletteEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	kinds := []graph.Kind{graph.KindFunction, graph.KindVarDecl, graph.KindAssign, graph.KindReturn, graph.KindBinaryExpr}

	entries := make([]PaletteEntry, 0, len(kinds))
	for _, k := range kinds {
		data, _ := a.graph.Defaults(k)
		entries = append(entries, PaletteEntry{
			Kind:     k.String(),
			Fields:   graph.FieldNames(k),
			Defaults: graph.FieldsOf(data),
		})
	}
	return entries
}

// CreateNode places a new block of the given kind.
func (a *App) CreateNode(kind string, fields map[string]string) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	k, ok := graph.ParseKind(kind)
	if !ok {
		return ActionResult{Error: "unknown block kind " + kind}
	}

	id, err := a.graph.Create(k, fields)
	if err != nil {
		return failure(err)
	}

	return ActionResult{OK: true, Node: a.nodeView(a.graph.Get(id))}
}

// Connect draws a connection from src to dst. handle is the frontend's id
// for the drawn line.
func (a *App) Connect(src, dst uint64, handle string) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.graph.ConnectHandle(graph.NodeID(src), graph.NodeID(dst), graph.RenderHandle(handle))
	if err != nil {
		tlog.Printw("connect rejected", "src", src, "dst", dst, "err", err)
		return failure(err)
	}

	return ActionResult{OK: true, Node: a.nodeView(a.graph.Get(graph.NodeID(dst)))}
}

// Disconnect removes the outgoing connection of src.
func (a *App) Disconnect(src uint64) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.graph.Disconnect(graph.NodeID(src))

	return ActionResult{OK: true}
}

// Detach removes every connection touching id.
func (a *App) Detach(id uint64) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.graph.Detach(graph.NodeID(id))

	return ActionResult{OK: true}
}

// Delete removes a block.
func (a *App) Delete(id uint64) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.graph.Delete(graph.NodeID(id))

	return ActionResult{OK: true}
}

// SetFields applies values from the block's edit dialog.
func (a *App) SetFields(id uint64, fields map[string]string) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.graph.SetFields(graph.NodeID(id), fields); err != nil {
		return failure(err)
	}

	return ActionResult{OK: true, Node: a.nodeView(a.graph.Get(graph.NodeID(id)))}
}

// Nodes lists every block in creation order.
func (a *App) Nodes() []NodeView {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.nodeViews()
}

// Edges lists every connection.
func (a *App) Edges() []EdgeView {
	a.mu.Lock()
	defer a.mu.Unlock()

	edges := []EdgeView{}
	for _, n := range a.graph.Nodes() {
		for _, e := range n.Outgoing() {
			edges = append(edges, edgeView(e))
		}
	}
	return edges
}

// Generate renders the whole program, or only the given functions.
func (a *App) Generate(functions []uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]graph.NodeID, len(functions))
	for i, f := range functions {
		ids[i] = graph.NodeID(f)
	}

	return codegen.New(a.graph, a.cfg.CodegenOptions()...).Program(ids...)
}

// Validate audits the current program.
func (a *App) Validate() []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()

	findings := []Finding{}
	for _, e := range graph.Validate(a.graph) {
		findings = append(findings, Finding{
			Node:     uint64(e.NodeID),
			Message:  e.Message,
			Severity: e.Severity.String(),
		})
	}
	return findings
}

// RunScript evaluates a Splice script. On success the built program replaces
// the current one.
func (a *App) RunScript(source string) ScriptResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := ScriptResult{
		Nodes:    []NodeView{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	g, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		tlog.Printw("script fatal error", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	a.setGraph(g)
	a.emit(EventGraphReset, g.Version())

	for _, e := range graph.Validate(g) {
		if e.Severity == graph.SeverityWarning {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: e.Error()})
		}
	}

	result.Code = codegen.New(g, a.cfg.CodegenOptions()...).Program()
	result.Nodes = a.nodeViews()

	return result
}

// NewProject discards the current program.
func (a *App) NewProject() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.setGraph(graph.New())
	a.emit(EventGraphReset, uint64(0))
}

// SaveProject writes the current program to path.
func (a *App) SaveProject(path, name string) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := project.Save(path, name, a.graph); err != nil {
		tlog.Printw("save project", "path", path, "err", err)
		return failure(err)
	}

	return ActionResult{OK: true}
}

// LoadProject replaces the current program with the one saved at path.
func (a *App) LoadProject(path string) LoadResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := LoadResult{Nodes: []NodeView{}, Rejected: []string{}}

	doc, l, err := project.LoadFile(path)
	if err != nil {
		tlog.Printw("load project", "path", path, "err", err)
		result.Error = err.Error()
		return result
	}

	a.setGraph(l.Graph)
	a.emit(EventGraphReset, l.Graph.Version())

	for _, r := range l.Rejected {
		result.Rejected = append(result.Rejected, r.Error())
	}

	result.OK = true
	result.Name = doc.Name
	result.Nodes = a.nodeViews()

	return result
}

func (a *App) nodeViews() []NodeView {
	views := []NodeView{}
	for _, n := range a.graph.Nodes() {
		views = append(views, a.nodeView(n))
	}
	return views
}

func (a *App) nodeView(n *graph.Node) NodeView {
	if n == nil {
		return NodeView{}
	}

	body := []uint64{}
	for _, id := range n.Body() {
		body = append(body, uint64(id))
	}

	return NodeView{
		ID:     uint64(n.ID),
		Kind:   n.Kind.String(),
		Label:  graph.Label(n),
		Fields: graph.FieldsOf(n.Data),
		Owner:  uint64(n.Owner()),
		Body:   body,
	}
}

func edgeView(e graph.Edge) EdgeView {
	return EdgeView{
		Source: uint64(e.Source),
		Target: uint64(e.Target),
		Handle: string(e.Handle),
	}
}

func failure(err error) ActionResult {
	res := ActionResult{Error: err.Error()}

	var cerr *graph.ConnectError
	if errors.As(err, &cerr) {
		res.Code = cerr.Code.String()
	}

	return res
}
