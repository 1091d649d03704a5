// Package project saves and loads block programs.
//
// A saved program is a Document: one record per node with its field values,
// plus the edge list of every function body. Loading never trusts the file:
// nodes are recreated and edges are replayed through Connect in list order, so
// the graph invariants are enforced again and bad edges are reported instead
// of applied.
package project

import (
	"bytes"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/chazu/splice/pkg/graph"
)

// FormatVersion is the document version written by Snapshot.
const FormatVersion = 1

// Document is the persisted form of a graph.
type Document struct {
	Version int          `yaml:"version" json:"version" validate:"eq=1"`
	Project string       `yaml:"project,omitempty" json:"project,omitempty" validate:"omitempty,uuid"`
	Name    string       `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes   []NodeRecord `yaml:"nodes" json:"nodes" validate:"dive"`
	Edges   []EdgeRecord `yaml:"edges,omitempty" json:"edges,omitempty" validate:"dive"`
}

// NodeRecord is one saved node. Owner and Index describe where the node sat
// when saved; they are informational, the edge list is authoritative.
type NodeRecord struct {
	ID     uint64            `yaml:"id" json:"id" validate:"required"`
	Kind   string            `yaml:"kind" json:"kind" validate:"required,blockkind"`
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Owner  uint64            `yaml:"owner,omitempty" json:"owner,omitempty"`
	Index  int               `yaml:"index,omitempty" json:"index,omitempty" validate:"gte=0"`
}

// EdgeRecord is one saved connection.
type EdgeRecord struct {
	Source uint64 `yaml:"source" json:"source" validate:"required"`
	Target uint64 `yaml:"target" json:"target" validate:"required,nefield=Source"`
	Handle string `yaml:"handle,omitempty" json:"handle,omitempty"`
}

// Rejection reports an edge that could not be replayed.
type Rejection struct {
	Edge EdgeRecord
	Err  error
}

func (r Rejection) Error() string {
	return errors.Wrap(r.Err, "edge %d -> %d", r.Edge.Source, r.Edge.Target).Error()
}

// Loaded is the result of Load.
type Loaded struct {
	Graph *graph.Graph

	// IDs maps record IDs to the node IDs allocated on load.
	IDs map[uint64]graph.NodeID

	Rejected []Rejection
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("blockkind", func(fl validator.FieldLevel) bool {
		_, ok := graph.ParseKind(fl.Field().String())
		return ok
	})
}

// Validate checks the document shape.
func (d *Document) Validate() error {
	return validate.Struct(d)
}

// Snapshot records g. Only body edges are saved, function by function in
// chain order, so replaying them rebuilds every body. Links between
// unattached statements are not saved.
func Snapshot(g *graph.Graph) *Document {
	doc := &Document{Version: FormatVersion}

	for _, n := range g.Nodes() {
		rec := NodeRecord{
			ID:     uint64(n.ID),
			Kind:   n.Kind.String(),
			Fields: graph.FieldsOf(n.Data),
		}

		if owner := n.Owner(); !owner.IsZero() {
			rec.Owner = uint64(owner)
			for i, id := range g.Body(owner) {
				if id == n.ID {
					rec.Index = i
				}
			}
		}

		doc.Nodes = append(doc.Nodes, rec)
	}

	for _, fn := range g.Functions() {
		prev := fn
		for _, id := range g.Body(fn) {
			var handle graph.RenderHandle
			if in := g.Get(id).Incoming(); len(in) != 0 {
				handle = in[0].Handle
			}

			doc.Edges = append(doc.Edges, EdgeRecord{
				Source: uint64(prev),
				Target: uint64(id),
				Handle: string(handle),
			})

			prev = id
		}
	}

	return doc
}

// Load rebuilds a graph from doc. Document shape errors fail the load; edges
// the graph refuses are collected in Loaded.Rejected. Edges without a render
// handle get a fresh one.
func Load(doc *Document) (*Loaded, error) {
	if err := doc.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate document")
	}

	l := &Loaded{
		Graph: graph.New(),
		IDs:   make(map[uint64]graph.NodeID, len(doc.Nodes)),
	}

	for _, rec := range doc.Nodes {
		if _, dup := l.IDs[rec.ID]; dup {
			return nil, errors.New("duplicate node id %d", rec.ID)
		}

		kind, _ := graph.ParseKind(rec.Kind)

		id, err := l.Graph.Create(kind, rec.Fields)
		if err != nil {
			return nil, errors.Wrap(err, "node %d", rec.ID)
		}

		l.IDs[rec.ID] = id
	}

	for _, e := range doc.Edges {
		src, ok := l.IDs[e.Source]
		if !ok {
			l.Rejected = append(l.Rejected, Rejection{Edge: e, Err: graph.ErrNodeNotFound})
			continue
		}

		dst, ok := l.IDs[e.Target]
		if !ok {
			l.Rejected = append(l.Rejected, Rejection{Edge: e, Err: graph.ErrNodeNotFound})
			continue
		}

		handle := e.Handle
		if handle == "" {
			handle = uuid.NewString()
		}

		if err := l.Graph.ConnectHandle(src, dst, graph.RenderHandle(handle)); err != nil {
			l.Rejected = append(l.Rejected, Rejection{Edge: e, Err: err})
		}
	}

	return l, nil
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *Document) (err error) {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	defer func() {
		e := enc.Close()
		if err == nil {
			err = e
		}
	}()

	return enc.Encode(doc)
}

// Decode reads a YAML or JSON document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}

	return &doc, nil
}

// Save writes a snapshot of g to path. A file already at path keeps its
// project id; otherwise a new one is minted.
func Save(path, name string, g *graph.Graph) error {
	doc := Snapshot(g)
	doc.Name = name
	doc.Project = uuid.NewString()

	if old, err := Open(path); err == nil && old.Project != "" {
		doc.Project = old.Project
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return errors.Wrap(err, "encode")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write %v", path)
	}

	return nil
}

// Open reads the document at path without loading it.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	return Decode(f)
}

// LoadFile opens path and loads it.
func LoadFile(path string) (*Document, *Loaded, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, nil, err
	}

	l, err := Load(doc)
	if err != nil {
		return doc, nil, errors.Wrap(err, "load %v", path)
	}

	return doc, l, nil
}
