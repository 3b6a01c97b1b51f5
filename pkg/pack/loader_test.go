package pack

import (
	"errors"
	"testing"

	"github.com/lattice-health/physioreason/pkg/model"
)

func nodeDoc(name string, nodes ...model.Node) model.Document {
	return model.Document{Name: name, Nodes: nodes}
}

func TestLoad_MergesCompatibleNodeRedeclarations(t *testing.T) {
	docs := []model.Document{
		nodeDoc("a.yaml", model.Node{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative, Aliases: []string{"X-Alias"}}),
		nodeDoc("b.yaml", model.Node{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative, Aliases: []string{"Second Alias"}}),
	}

	graph, diags, err := Load(docs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if graph.NodeCount() != 1 {
		t.Fatalf("expected 1 merged node, got %d", graph.NodeCount())
	}
	if _, ok := graph.Resolve("x-alias"); !ok {
		t.Error("expected first document's alias to resolve")
	}
	if _, ok := graph.Resolve("second alias"); !ok {
		t.Error("expected second document's alias to resolve")
	}
}

func TestLoad_IncompatibleNodeRedeclarationIsFatal(t *testing.T) {
	docs := []model.Document{
		nodeDoc("a.yaml", model.Node{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}),
		nodeDoc("b.yaml", model.Node{ID: "x", Domain: model.DomainRenal, Type: model.NodeTypeVariable, StateType: model.StateQualitative}),
	}

	_, _, err := Load(docs)
	if err == nil {
		t.Fatal("expected a fatal error for incompatible node redeclaration")
	}
	if !errors.Is(err, model.ErrIncompatibleNode) {
		t.Errorf("expected ErrIncompatibleNode, got %v", err)
	}
}

func TestLoad_DuplicateAliasAcrossDifferentNodesIsFatal(t *testing.T) {
	docs := []model.Document{
		nodeDoc("a.yaml",
			model.Node{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative, Aliases: []string{"shared"}},
			model.Node{ID: "y", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative, Aliases: []string{"Shared"}},
		),
	}

	_, _, err := Load(docs)
	if err == nil {
		t.Fatal("expected a fatal error for conflicting alias")
	}
	if !errors.Is(err, model.ErrDuplicateAlias) {
		t.Errorf("expected ErrDuplicateAlias, got %v", err)
	}
}

func TestLoad_MissingEdgeEndpointIsFatal(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Edges: []model.Edge{{Source: "x", Target: "missing", Rel: model.RelIncreases, Weight: 0.5, Delay: model.DelayImmediate}},
		},
	}
	_, _, err := Load(docs)
	if !errors.Is(err, model.ErrMissingEdgeEndpoint) {
		t.Errorf("expected ErrMissingEdgeEndpoint, got %v", err)
	}
}

func TestLoad_SelfLoopIsFatal(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Edges: []model.Edge{{Source: "x", Target: "x", Rel: model.RelIncreases, Weight: 0.5, Delay: model.DelayImmediate}},
		},
	}
	_, _, err := Load(docs)
	if !errors.Is(err, model.ErrSelfLoop) {
		t.Errorf("expected ErrSelfLoop, got %v", err)
	}
}

func TestLoad_MalformedWeightIsFatal(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}, {ID: "y", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Edges: []model.Edge{{Source: "x", Target: "y", Rel: model.RelIncreases, Weight: 1.5, Delay: model.DelayImmediate}},
		},
	}
	_, _, err := Load(docs)
	if !errors.Is(err, model.ErrMalformedWeight) {
		t.Errorf("expected ErrMalformedWeight, got %v", err)
	}
}

func TestLoad_DuplicateEdgeMergesWithLaterWeightWinning(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}, {ID: "y", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Edges: []model.Edge{{Source: "x", Target: "y", Rel: model.RelIncreases, Weight: 0.3, Delay: model.DelayImmediate, Description: "first"}},
		},
		{
			Name:  "b.yaml",
			Edges: []model.Edge{{Source: "x", Target: "y", Rel: model.RelIncreases, Weight: 0.9, Delay: model.DelayImmediate, Description: "second"}},
		},
	}
	graph, _, err := Load(docs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	edges := graph.Edges()
	if len(edges) != 1 {
		t.Fatalf("expected edges to merge into one, got %d", len(edges))
	}
	if edges[0].Weight != 0.9 {
		t.Errorf("expected later weight to win, got %v", edges[0].Weight)
	}
	if edges[0].Description != "first; second" {
		t.Errorf("expected concatenated description, got %q", edges[0].Description)
	}
}

func TestLoad_RuleReferencingUnknownNodeIsDroppedWithDiagnostic(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Rules: []model.Rule{{ID: "bad-rule", When: "x.up", Then: map[string]string{"nonexistent": "increase"}}},
		},
	}
	graph, diags, err := Load(docs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(graph.Rules()) != 0 {
		t.Errorf("expected the bad rule to be dropped, got %d rules", len(graph.Rules()))
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
}

func TestLoad_ValidRuleIsKept(t *testing.T) {
	docs := []model.Document{
		{
			Name:  "a.yaml",
			Nodes: []model.Node{{ID: "x", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}, {ID: "y", Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}},
			Rules: []model.Rule{{ID: "good-rule", When: "x.up", Then: map[string]string{"y": "increase"}}},
		},
	}
	graph, diags, err := Load(docs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(graph.Rules()) != 1 {
		t.Fatalf("expected the rule to be kept, got %d", len(graph.Rules()))
	}
}

func TestLoad_SyndromesMergeByIDWithLaterWinning(t *testing.T) {
	docs := []model.Document{
		{Name: "a.yaml", Syndromes: []model.Syndrome{{ID: "s1", Label: "first", Sequence: []string{"a"}}}},
		{Name: "b.yaml", Syndromes: []model.Syndrome{{ID: "s1", Label: "second", Sequence: []string{"a", "b"}}}},
	}
	graph, _, err := Load(docs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	syndromes := graph.Syndromes()
	if len(syndromes) != 1 || syndromes[0].Label != "second" {
		t.Errorf("expected later syndrome declaration to win, got %+v", syndromes)
	}
}
