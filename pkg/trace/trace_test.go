package trace

import (
	"testing"

	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/propagate"
)

func labeledNode(id, label string) model.Node {
	return model.Node{ID: id, Label: label, Domain: model.DomainCardio, Type: model.NodeTypeVariable, StateType: model.StateQualitative}
}

func TestBuild_RendersHumanReadableSteps(t *testing.T) {
	nodes := map[string]model.Node{
		"a": labeledNode("a", "MAP"),
		"b": labeledNode("b", "Sympathetic Tone"),
	}
	edges := []model.Edge{
		{Source: "a", Target: "b", Rel: model.RelDecreases, Weight: 0.8, Delay: model.DelayImmediate, Description: "baroreflex"},
	}
	graph := model.NewGraph(nodes, map[string]string{}, edges, nil, nil)

	result, err := propagate.Execute(graph, []model.Perturbation{{NodeID: "a", Op: model.OpDecrease}}, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	traces := Build(result, 0)
	steps, ok := traces["b"]
	if !ok || len(steps) == 0 {
		t.Fatalf("expected a trace for b, got %+v", traces)
	}
	if len(steps[0].Steps) != 1 {
		t.Fatalf("expected exactly one rendered step, got %d", len(steps[0].Steps))
	}
	want := "MAP ↓ Sympathetic Tone (baroreflex)"
	if steps[0].Steps[0] != want {
		t.Errorf("step = %q, want %q", steps[0].Steps[0], want)
	}
}

func TestBuild_PathConfidenceIsProductOfEdgeWeights(t *testing.T) {
	nodes := map[string]model.Node{
		"a": labeledNode("a", "A"),
		"b": labeledNode("b", "B"),
		"c": labeledNode("c", "C"),
	}
	edges := []model.Edge{
		{Source: "a", Target: "b", Rel: model.RelIncreases, Weight: 0.8, Delay: model.DelayImmediate},
		{Source: "b", Target: "c", Rel: model.RelIncreases, Weight: 0.5, Delay: model.DelayImmediate},
	}
	graph := model.NewGraph(nodes, map[string]string{}, edges, nil, nil)

	result, err := propagate.Execute(graph, []model.Perturbation{{NodeID: "a", Op: model.OpIncrease}}, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	traces := Build(result, 0)
	steps := traces["c"]
	if len(steps) == 0 {
		t.Fatal("expected at least one path to c")
	}
	want := 0.8 * 0.5
	if diff := steps[0].Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("path confidence = %v, want %v", steps[0].Confidence, want)
	}
}

func TestBuild_TopKLimitsPathCount(t *testing.T) {
	nodes := map[string]model.Node{
		"target": labeledNode("target", "Target"),
	}
	edges := []model.Edge{}
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		nodes[id] = labeledNode(id, id)
		edges = append(edges, model.Edge{Source: id, Target: "target", Rel: model.RelIncreases, Weight: 0.9, Delay: model.DelayImmediate})
	}
	graph := model.NewGraph(nodes, map[string]string{}, edges, nil, nil)

	var perturbations []model.Perturbation
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		perturbations = append(perturbations, model.Perturbation{NodeID: id, Op: model.OpIncrease})
	}

	result, err := propagate.Execute(graph, perturbations, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	traces := Build(result, 3)
	if len(traces["target"]) != 3 {
		t.Fatalf("expected topK=3 paths, got %d", len(traces["target"]))
	}
}

func TestBuild_MacroSummaryMatchesSyndromeSubsequence(t *testing.T) {
	nodes := map[string]model.Node{
		"a": labeledNode("a", "A"),
		"b": labeledNode("b", "B"),
		"c": labeledNode("c", "C"),
	}
	edges := []model.Edge{
		{Source: "a", Target: "b", Rel: model.RelIncreases, Weight: 0.9, Delay: model.DelayImmediate},
		{Source: "b", Target: "c", Rel: model.RelIncreases, Weight: 0.9, Delay: model.DelayImmediate},
	}
	syndromes := []model.Syndrome{{ID: "s1", Label: "A-to-C activation", Sequence: []string{"a", "c"}}}
	graph := model.NewGraph(nodes, map[string]string{}, edges, nil, syndromes)

	result, err := propagate.Execute(graph, []model.Perturbation{{NodeID: "a", Op: model.OpIncrease}}, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	traces := Build(result, 0)
	steps := traces["c"]
	if len(steps) == 0 {
		t.Fatal("expected a trace for c")
	}
	if steps[0].Summary != "A-to-C activation" {
		t.Errorf("Summary = %q, want the matched syndrome label", steps[0].Summary)
	}
}

func TestBuild_NoTraceForUnchangedOrUnreached(t *testing.T) {
	nodes := map[string]model.Node{"a": labeledNode("a", "A"), "b": labeledNode("b", "B")}
	graph := model.NewGraph(nodes, map[string]string{}, nil, nil, nil)

	result, err := propagate.Execute(graph, []model.Perturbation{{NodeID: "a", Op: model.OpIncrease}}, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	traces := Build(result, 0)
	if _, ok := traces["b"]; ok {
		t.Error("expected no trace entry for an unreached node")
	}
}

func TestBuild_SeedGetsSingleNodePath(t *testing.T) {
	nodes := map[string]model.Node{"a": labeledNode("a", "A")}
	graph := model.NewGraph(nodes, map[string]string{}, nil, nil, nil)

	result, err := propagate.Execute(graph, []model.Perturbation{{NodeID: "a", Op: model.OpIncrease}}, nil, model.DefaultSimulationOptions())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	traces := Build(result, 0)
	steps, ok := traces["a"]
	if !ok || len(steps) != 1 {
		t.Fatalf("expected a single-node path for the seed, got %+v", traces)
	}
	if len(steps[0].Path) != 1 || steps[0].Path[0] != "a" {
		t.Errorf("Path = %+v, want [a]", steps[0].Path)
	}
	if len(steps[0].Steps) != 0 {
		t.Errorf("expected no rendered steps for a bare seed, got %+v", steps[0].Steps)
	}
}
