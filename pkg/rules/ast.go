package rules

import "github.com/lattice-health/physioreason/pkg/model"

// Expr is a node in a parsed `when` expression AST. The grammar is fixed:
// `and`, `or`, `not`, and atoms of three forms (`ctx.<flag>`,
// `<node_id>.up`/`<node_id>.down`, and the literals `true`/`false`).
// Anything outside this grammar is a parse error, never a silent fallback.
type Expr interface {
	eval(evalCtx evalContext) bool
	referencedNodes(out map[string]struct{})
}

type evalContext struct {
	context map[string]bool
	seeds   map[string]model.Direction
}

type literalExpr struct{ value bool }

func (e *literalExpr) eval(evalContext) bool                { return e.value }
func (e *literalExpr) referencedNodes(map[string]struct{})  {}

type ctxAtom struct{ flag string }

func (e *ctxAtom) eval(ec evalContext) bool { return ec.context[e.flag] }
func (e *ctxAtom) referencedNodes(map[string]struct{}) {}

type nodeDirAtom struct {
	nodeID string
	dir    model.Direction
}

func (e *nodeDirAtom) eval(ec evalContext) bool {
	return ec.seeds[e.nodeID] == e.dir
}

func (e *nodeDirAtom) referencedNodes(out map[string]struct{}) {
	out[e.nodeID] = struct{}{}
}

type notExpr struct{ x Expr }

func (e *notExpr) eval(ec evalContext) bool { return !e.x.eval(ec) }
func (e *notExpr) referencedNodes(out map[string]struct{}) {
	e.x.referencedNodes(out)
}

type andExpr struct{ left, right Expr }

func (e *andExpr) eval(ec evalContext) bool { return e.left.eval(ec) && e.right.eval(ec) }
func (e *andExpr) referencedNodes(out map[string]struct{}) {
	e.left.referencedNodes(out)
	e.right.referencedNodes(out)
}

type orExpr struct{ left, right Expr }

func (e *orExpr) eval(ec evalContext) bool { return e.left.eval(ec) || e.right.eval(ec) }
func (e *orExpr) referencedNodes(out map[string]struct{}) {
	e.left.referencedNodes(out)
	e.right.referencedNodes(out)
}

// ReferencedNodes returns the set of node identifiers named by `<id>.up`/
// `<id>.down` atoms anywhere in the expression, used by the loader to warn
// on rules that reference unknown nodes.
func ReferencedNodes(e Expr) []string {
	set := make(map[string]struct{})
	e.referencedNodes(set)
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
