package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/chazu/splice/pkg/codegen"
	"github.com/chazu/splice/pkg/engine"
	"github.com/chazu/splice/pkg/graph"
	"github.com/chazu/splice/pkg/project"
)

// ScriptExt marks files evaluated as scripts. Anything else is read as a
// project document.
const ScriptExt = ".splice"

var (
	outputPath  string
	functions   []string
	saveProject string
	projectName string
	writeBack   bool

	generateCmd = &cobra.Command{
		Use:   "generate [file]",
		Short: "Print the source generated from a script or project file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}

	scriptCmd = &cobra.Command{
		Use:   "script [file]",
		Short: "Evaluate a script, print its source and optionally save it as a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a script or project file for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	fmtCmd = &cobra.Command{
		Use:   "fmt [file]",
		Short: "Rewrite a project file in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE:  runFmt,
	}
)

func init() {
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write source to this file instead of stdout")
	generateCmd.Flags().StringSliceVarP(&functions, "function", "f", nil, "generate only the named functions")

	scriptCmd.Flags().StringVar(&saveProject, "save", "", "save the built program to this project file")
	scriptCmd.Flags().StringVar(&projectName, "name", "", "project name stored by --save")

	fmtCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "write the result back to the file")
}

// build turns a script or project file into a graph. Project edges the graph
// refuses are logged and skipped.
func build(ctx context.Context, path string) (*graph.Graph, error) {
	tr := tlog.SpanFromContext(ctx)

	if filepath.Ext(path) == ScriptExt {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read script")
		}

		g, evalErrs, err := engine.NewEngine(cfg.EngineOptions()...).EvaluateContext(ctx, string(src))
		if err != nil {
			return nil, errors.Wrap(err, "evaluate %v", path)
		}
		if len(evalErrs) != 0 {
			return nil, errors.Wrap(evalErrs[0], "%v:%d", path, evalErrs[0].Line)
		}

		tr.Printw("script evaluated", "path", path, "nodes", g.NodeCount())

		return g, nil
	}

	_, l, err := project.LoadFile(path)
	if err != nil {
		return nil, err
	}

	for _, r := range l.Rejected {
		tr.Printw("edge rejected", "path", path, "err", r)
	}

	tr.Printw("project loaded", "path", path, "nodes", l.Graph.NodeCount(), "rejected", len(l.Rejected))

	return l.Graph, nil
}

// selectFunctions resolves function names to IDs. No names means all.
func selectFunctions(g *graph.Graph, names []string) ([]graph.NodeID, error) {
	var ids []graph.NodeID

	for _, name := range names {
		found := false

		for _, id := range g.Functions() {
			if d, ok := g.Get(id).Data.(graph.FunctionData); ok && d.Name == name {
				ids = append(ids, id)
				found = true
			}
		}

		if !found {
			return nil, errors.New("no function named %q", name)
		}
	}

	return ids, nil
}

func render(g *graph.Graph, names []string) (string, error) {
	ids, err := selectFunctions(g, names)
	if err != nil {
		return "", err
	}

	return codegen.New(g, cfg.CodegenOptions()...).Program(ids...), nil
}

func writeOutput(w io.Writer, path, code string) error {
	if path == "" {
		_, err := io.WriteString(w, code)
		return err
	}

	return os.WriteFile(path, []byte(code), 0o644)
}

func commandContext(cmd *cobra.Command, name string) (context.Context, tlog.Span) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tr := tlog.Start(name)

	return tlog.ContextWithSpan(ctx, tr), tr
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	ctx, tr := commandContext(cmd, "generate")
	defer func() { tr.Finish("err", err) }()

	g, err := build(ctx, args[0])
	if err != nil {
		return err
	}

	code, err := render(g, functions)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), outputPath, code)
}

func runScript(cmd *cobra.Command, args []string) (err error) {
	ctx, tr := commandContext(cmd, "script")
	defer func() { tr.Finish("err", err) }()

	if filepath.Ext(args[0]) != ScriptExt {
		return errors.New("%v: not a %v script", args[0], ScriptExt)
	}

	g, err := build(ctx, args[0])
	if err != nil {
		return err
	}

	if saveProject != "" {
		name := projectName
		if name == "" {
			name = trimExt(filepath.Base(args[0]))
		}

		if err := project.Save(saveProject, name, g); err != nil {
			return errors.Wrap(err, "save")
		}

		tr.Printw("project saved", "path", saveProject, "name", name)
	}

	code, err := render(g, nil)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), "", code)
}

func runValidate(cmd *cobra.Command, args []string) (err error) {
	ctx, tr := commandContext(cmd, "validate")
	defer func() { tr.Finish("err", err) }()

	g, err := build(ctx, args[0])
	if err != nil {
		return err
	}

	res := graph.ValidateAll(g)

	w := cmd.OutOrStdout()
	for _, e := range res.Errors {
		fmt.Fprintln(w, e.Error())
	}
	for _, e := range res.Warnings {
		fmt.Fprintln(w, e.Error())
	}

	if !res.OK() {
		return errors.New("%d errors, %d warnings", len(res.Errors), len(res.Warnings))
	}

	fmt.Fprintf(w, "ok: %d nodes, %d functions, %d warnings\n", g.NodeCount(), len(g.Functions()), len(res.Warnings))

	return nil
}

func runFmt(cmd *cobra.Command, args []string) (err error) {
	_, tr := commandContext(cmd, "fmt")
	defer func() { tr.Finish("err", err) }()

	doc, err := project.Open(args[0])
	if err != nil {
		return err
	}

	if err := doc.Validate(); err != nil {
		return errors.Wrap(err, "%v", args[0])
	}

	var buf bytes.Buffer
	if err := project.Encode(&buf, doc); err != nil {
		return err
	}

	if !writeBack {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	return os.WriteFile(args[0], buf.Bytes(), 0o644)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
