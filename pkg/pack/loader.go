// Package pack loads a sequence of parsed knowledge-pack documents, merges
// them into a single canonical graph, and reports the diagnostics produced
// along the way. It knows nothing about YAML, files, or watching a
// directory; those concerns belong to pkg/watch.
package pack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/rules"
)

// Load merges docs into a single Graph. Any fatal condition (incompatible
// node redeclaration, conflicting alias, missing edge endpoint, self-loop,
// malformed weight) aborts the load and returns a *model.LoadError; the
// caller is expected to keep serving the previously loaded graph. Non-fatal
// problems (a rule referencing an unknown node) are reported as diagnostics
// and the offending record is dropped.
func Load(docs []model.Document) (*model.Graph, []model.Diagnostic, error) {
	nodes, diags, err := mergeNodes(docs)
	if err != nil {
		return nil, nil, err
	}

	aliasToID, err := buildAliasIndex(nodes)
	if err != nil {
		return nil, nil, err
	}

	edges, err := mergeEdges(docs, nodes)
	if err != nil {
		return nil, nil, err
	}

	graphRules, ruleDiags := filterRules(docs, nodes)
	diags = append(diags, ruleDiags...)

	syndromes := mergeSyndromes(docs)

	graph := model.NewGraph(nodes, aliasToID, edges, graphRules, syndromes)
	return graph, diags, nil
}

func mergeNodes(docs []model.Document) (map[string]model.Node, []model.Diagnostic, error) {
	nodes := make(map[string]model.Node)
	var diags []model.Diagnostic

	for _, doc := range docs {
		for _, n := range doc.Nodes {
			existing, ok := nodes[n.ID]
			if !ok {
				nodes[n.ID] = n
				continue
			}
			if existing.Domain != n.Domain || existing.Type != n.Type || existing.StateType != n.StateType {
				return nil, nil, &model.LoadError{
					Document: doc.Name,
					Record:   fmt.Sprintf("node %q", n.ID),
					Field:    "domain/type/state_type",
					Cause:    model.ErrIncompatibleNode,
				}
			}
			existing.Aliases = unionAliases(existing.Aliases, n.Aliases)
			if existing.Label == "" {
				existing.Label = n.Label
			}
			if existing.Subdomain == "" {
				existing.Subdomain = n.Subdomain
			}
			if existing.Unit == "" {
				existing.Unit = n.Unit
			}
			if existing.NormalRange == nil {
				existing.NormalRange = n.NormalRange
			}
			nodes[n.ID] = existing
		}
	}

	return nodes, diags, nil
}

func unionAliases(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, alias := range a {
		key := model.NormalizeAlias(alias)
		if !seen[key] {
			seen[key] = true
			out = append(out, alias)
		}
	}
	for _, alias := range b {
		key := model.NormalizeAlias(alias)
		if !seen[key] {
			seen[key] = true
			out = append(out, alias)
		}
	}
	return out
}

func buildAliasIndex(nodes map[string]model.Node) (map[string]string, error) {
	aliasToID := make(map[string]string)
	// Sort node ids first so that a conflict is reported deterministically
	// regardless of map iteration order.
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, alias := range nodes[id].Aliases {
			key := model.NormalizeAlias(alias)
			if existing, ok := aliasToID[key]; ok && existing != id {
				return nil, &model.LoadError{
					Record: fmt.Sprintf("alias %q", alias),
					Field:  "aliases",
					Cause:  model.ErrDuplicateAlias,
				}
			}
			aliasToID[key] = id
		}
	}
	return aliasToID, nil
}

// edgeKey identifies edges that should be merged rather than duplicated:
// same source, target, relation, and context requirement.
func edgeKey(e model.Edge) string {
	flags := make([]string, 0, len(e.Context))
	for flag, want := range e.Context {
		flags = append(flags, fmt.Sprintf("%s=%t", flag, want))
	}
	sort.Strings(flags)
	return strings.Join([]string{e.Source, e.Target, string(e.Rel), strings.Join(flags, ",")}, "|")
}

func mergeEdges(docs []model.Document, nodes map[string]model.Node) ([]model.Edge, error) {
	order := make([]string, 0)
	byKey := make(map[string]model.Edge)

	for _, doc := range docs {
		for _, e := range doc.Edges {
			if _, ok := nodes[e.Source]; !ok {
				return nil, &model.LoadError{
					Document: doc.Name,
					Record:   fmt.Sprintf("edge %s->%s", e.Source, e.Target),
					Field:    "source",
					Cause:    model.ErrMissingEdgeEndpoint,
				}
			}
			if _, ok := nodes[e.Target]; !ok {
				return nil, &model.LoadError{
					Document: doc.Name,
					Record:   fmt.Sprintf("edge %s->%s", e.Source, e.Target),
					Field:    "target",
					Cause:    model.ErrMissingEdgeEndpoint,
				}
			}
			if (e.Rel == model.RelIncreases || e.Rel == model.RelDecreases) && e.Source == e.Target {
				return nil, &model.LoadError{
					Document: doc.Name,
					Record:   fmt.Sprintf("edge %s->%s", e.Source, e.Target),
					Field:    "source/target",
					Cause:    model.ErrSelfLoop,
				}
			}
			if e.Weight <= 0 || e.Weight > 1 {
				return nil, &model.LoadError{
					Document: doc.Name,
					Record:   fmt.Sprintf("edge %s->%s", e.Source, e.Target),
					Field:    "weight",
					Cause:    model.ErrMalformedWeight,
				}
			}

			key := edgeKey(e)
			if prior, ok := byKey[key]; ok {
				merged := e
				merged.Description = concatDescriptions(prior.Description, e.Description)
				byKey[key] = merged
				continue
			}
			byKey[key] = e
			order = append(order, key)
		}
	}

	edges := make([]model.Edge, 0, len(order))
	for _, key := range order {
		edges = append(edges, byKey[key])
	}
	return edges, nil
}

func concatDescriptions(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}

func filterRules(docs []model.Document, nodes map[string]model.Node) ([]model.Rule, []model.Diagnostic) {
	var kept []model.Rule
	var diags []model.Diagnostic

	for _, doc := range docs {
		for _, r := range doc.Rules {
			expr, err := rules.Parse(r.When)
			if err != nil {
				diags = append(diags, model.Diagnostic{
					Document: doc.Name,
					Record:   fmt.Sprintf("rule %s", r.ID),
					Message:  fmt.Sprintf("dropped: %v", err),
				})
				continue
			}

			unknown := unknownReferencedNodes(rules.ReferencedNodes(expr), nodes)
			for nodeID := range r.Then {
				if _, ok := nodes[nodeID]; !ok {
					unknown = append(unknown, nodeID)
				}
			}
			if len(unknown) > 0 {
				diags = append(diags, model.Diagnostic{
					Document: doc.Name,
					Record:   fmt.Sprintf("rule %s", r.ID),
					Message:  fmt.Sprintf("dropped: references unknown node(s) %s", strings.Join(unknown, ", ")),
				})
				continue
			}

			kept = append(kept, r)
		}
	}

	return kept, diags
}

func unknownReferencedNodes(referenced []string, nodes map[string]model.Node) []string {
	var unknown []string
	for _, id := range referenced {
		if _, ok := nodes[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

func mergeSyndromes(docs []model.Document) []model.Syndrome {
	byID := make(map[string]model.Syndrome)
	order := make([]string, 0)
	for _, doc := range docs {
		for _, s := range doc.Syndromes {
			if _, ok := byID[s.ID]; !ok {
				order = append(order, s.ID)
			}
			byID[s.ID] = s
		}
	}
	out := make([]model.Syndrome, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}
