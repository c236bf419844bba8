package query

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/types"
)

type valueKind int

const (
	valSet valueKind = iota
	valPath
	valPaths
	valStrings
)

// Value is the tagged result of evaluating one expression: a deduplicated
// target set, a single ordered path, a collection of ordered paths, or a
// list of plain strings (buildfiles' file paths).
type Value struct {
	kind    valueKind
	ids     []types.TargetID
	path    []types.TargetID
	paths   [][]types.TargetID
	strings []string
}

func setValue(ids []types.TargetID) Value {
	return Value{kind: valSet, ids: dedupSorted(ids)}
}

func dedupSorted(ids []types.TargetID) []types.TargetID {
	seen := make(map[types.TargetID]struct{}, len(ids))
	out := make([]types.TargetID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// IDs returns the value's target set, flattening a path/paths result into
// its member ids — useful for renderers that only care about membership.
func (v Value) IDs() []types.TargetID {
	switch v.kind {
	case valSet:
		return v.ids
	case valPath:
		return v.path
	case valPaths:
		var all []types.TargetID
		for _, p := range v.paths {
			all = append(all, p...)
		}
		return dedupSorted(all)
	default:
		return nil
	}
}

type evalCtx struct {
	g   *graph.Graph
	env map[string]Value
}

// Eval evaluates a parsed Program against g.
func Eval(prog *Program, g *graph.Graph) (Value, error) {
	ctx := &evalCtx{g: g, env: make(map[string]Value)}
	for _, st := range prog.stmts {
		v, err := ctx.evalNode(st.expr)
		if err != nil {
			return Value{}, fmt.Errorf("let %s: %w", st.name, err)
		}
		ctx.env[st.name] = v
	}
	return ctx.evalNode(prog.final)
}

func (c *evalCtx) evalNode(n node) (Value, error) {
	switch n.kind {
	case nodeTarget:
		id, err := types.Intern(n.target)
		if err != nil {
			return Value{}, fmt.Errorf("invalid target literal %q: %w", n.target, err)
		}
		return setValue([]types.TargetID{id}), nil
	case nodeVar:
		if n.name == "all" {
			return setValue(c.g.AllIDs()), nil
		}
		v, ok := c.env[n.name]
		if !ok {
			return Value{}, fmt.Errorf("undefined variable %q", n.name)
		}
		return v, nil
	case nodeString:
		return Value{kind: valStrings, strings: []string{n.str}}, nil
	case nodeNumber:
		return Value{}, fmt.Errorf("a bare number is not a valid query result")
	case nodeBinOp:
		return c.evalBinOp(n)
	case nodeCall:
		return c.evalCall(n)
	default:
		return Value{}, fmt.Errorf("unhandled node kind %d", n.kind)
	}
}

func (c *evalCtx) evalBinOp(n node) (Value, error) {
	left, err := c.evalNode(*n.left)
	if err != nil {
		return Value{}, err
	}
	right, err := c.evalNode(*n.right)
	if err != nil {
		return Value{}, err
	}
	l, r := left.IDs(), right.IDs()
	switch n.op {
	case '+':
		return setValue(append(append([]types.TargetID{}, l...), r...)), nil
	case '&':
		rset := make(map[types.TargetID]struct{}, len(r))
		for _, id := range r {
			rset[id] = struct{}{}
		}
		var out []types.TargetID
		for _, id := range l {
			if _, ok := rset[id]; ok {
				out = append(out, id)
			}
		}
		return setValue(out), nil
	case '-':
		rset := make(map[types.TargetID]struct{}, len(r))
		for _, id := range r {
			rset[id] = struct{}{}
		}
		var out []types.TargetID
		for _, id := range l {
			if _, ok := rset[id]; !ok {
				out = append(out, id)
			}
		}
		return setValue(out), nil
	default:
		return Value{}, fmt.Errorf("unknown operator %q", n.op)
	}
}

func (c *evalCtx) evalCall(n node) (Value, error) {
	switch n.name {
	case "deps":
		return c.evalDeps(n, false)
	case "rdeps":
		return c.evalDeps(n, true)
	case "allpaths":
		return c.evalPaths(n, true)
	case "somepath":
		return c.evalPaths(n, false)
	case "shortest":
		return c.evalPaths(n, false)
	case "kind":
		return c.evalKind(n)
	case "attr":
		return c.evalAttr(n, false)
	case "filter":
		return c.evalAttr(n, true)
	case "siblings":
		return c.evalSiblings(n)
	case "buildfiles":
		return c.evalBuildFiles(n)
	default:
		return Value{}, fmt.Errorf("unknown function %q", n.name)
	}
}

func (c *evalCtx) singleID(n node) (types.TargetID, error) {
	v, err := c.evalNode(n)
	if err != nil {
		return types.TargetID{}, err
	}
	ids := v.IDs()
	if len(ids) != 1 {
		return types.TargetID{}, fmt.Errorf("expected exactly one target, got %d", len(ids))
	}
	return ids[0], nil
}

func (c *evalCtx) evalDeps(n node, reverse bool) (Value, error) {
	if len(n.args) < 1 || len(n.args) > 2 {
		return Value{}, fmt.Errorf("%s expects 1 or 2 arguments, got %d", n.name, len(n.args))
	}
	src, err := c.evalNode(n.args[0])
	if err != nil {
		return Value{}, err
	}
	depth := 0
	if len(n.args) == 2 {
		if n.args[1].kind != nodeNumber {
			return Value{}, fmt.Errorf("%s's second argument must be a depth number", n.name)
		}
		depth = n.args[1].num
	}
	var out []types.TargetID
	for _, id := range src.IDs() {
		if reverse {
			out = append(out, c.g.TransitiveRdepsAtDepth(id, depth)...)
		} else {
			out = append(out, c.g.TransitiveDeps(id, depth)...)
		}
	}
	return setValue(out), nil
}

func (c *evalCtx) evalPaths(n node, all bool) (Value, error) {
	if len(n.args) != 2 {
		return Value{}, fmt.Errorf("%s expects 2 arguments, got %d", n.name, len(n.args))
	}
	a, err := c.singleID(n.args[0])
	if err != nil {
		return Value{}, err
	}
	b, err := c.singleID(n.args[1])
	if err != nil {
		return Value{}, err
	}
	if all {
		return Value{kind: valPaths, paths: c.g.Allpaths(a, b)}, nil
	}
	if n.name == "shortest" {
		return Value{kind: valPath, path: c.g.Shortest(a, b)}, nil
	}
	return Value{kind: valPath, path: c.g.Somepath(a, b)}, nil
}

func (c *evalCtx) evalKind(n node) (Value, error) {
	if len(n.args) != 2 {
		return Value{}, fmt.Errorf("kind expects 2 arguments, got %d", len(n.args))
	}
	if n.args[0].kind != nodeString {
		return Value{}, fmt.Errorf("kind's first argument must be a string")
	}
	want := types.Kind(n.args[0].str)
	src, err := c.evalNode(n.args[1])
	if err != nil {
		return Value{}, err
	}
	var out []types.TargetID
	for _, id := range src.IDs() {
		if k, ok := c.g.Kind(id); ok && k == want {
			out = append(out, id)
		}
	}
	return setValue(out), nil
}

// evalAttr backs both attr(name, value, X) (exact match) and
// filter(attr, regex, X) (regex match), which share everything but the
// comparison.
func (c *evalCtx) evalAttr(n node, isRegex bool) (Value, error) {
	if len(n.args) != 3 {
		return Value{}, fmt.Errorf("%s expects 3 arguments, got %d", n.name, len(n.args))
	}
	if n.args[0].kind != nodeString || n.args[1].kind != nodeString {
		return Value{}, fmt.Errorf("%s's first two arguments must be strings", n.name)
	}
	attrName := n.args[0].str
	want := n.args[1].str
	src, err := c.evalNode(n.args[2])
	if err != nil {
		return Value{}, err
	}

	var matcher func(string) bool
	if isRegex {
		re, err := regexp.Compile(want)
		if err != nil {
			return Value{}, fmt.Errorf("%s: bad regex %q: %w", n.name, want, err)
		}
		matcher = re.MatchString
	} else {
		matcher = func(v string) bool { return v == want }
	}

	var out []types.TargetID
	for _, id := range src.IDs() {
		val, ok := attrValue(c.g, id, attrName)
		if ok && matcher(val) {
			out = append(out, id)
		}
	}
	return setValue(out), nil
}

// attrValue looks up a named attribute on a target: the closed fields
// first (kind, language, output), falling back to a string-coerced
// handler_config entry for anything else.
func attrValue(g *graph.Graph, id types.TargetID, name string) (string, bool) {
	t, ok := g.Target(id)
	if !ok {
		return "", false
	}
	switch name {
	case "kind":
		return string(t.Kind), true
	case "language":
		return string(t.Language), true
	case "output":
		return t.OutputPath, true
	default:
		if v, ok := t.HandlerConfig[name]; ok {
			return fmt.Sprint(v), true
		}
		return "", false
	}
}

func (c *evalCtx) evalSiblings(n node) (Value, error) {
	if len(n.args) != 1 {
		return Value{}, fmt.Errorf("siblings expects 1 argument, got %d", len(n.args))
	}
	src, err := c.evalNode(n.args[0])
	if err != nil {
		return Value{}, err
	}
	var out []types.TargetID
	for _, id := range src.IDs() {
		out = append(out, c.g.Siblings(id)...)
	}
	return setValue(out), nil
}

func (c *evalCtx) evalBuildFiles(n node) (Value, error) {
	if len(n.args) != 1 {
		return Value{}, fmt.Errorf("buildfiles expects 1 argument, got %d", len(n.args))
	}
	src, err := c.evalNode(n.args[0])
	if err != nil {
		return Value{}, err
	}
	return Value{kind: valStrings, strings: c.g.BuildFiles(src.IDs())}, nil
}
