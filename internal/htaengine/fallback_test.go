package htaengine

import (
	"testing"

	"forest/internal/domain"
)

func TestFallbackBranchesCountWithinRange(t *testing.T) {
	complexity := domain.Complexity{Score: 6, Level: domain.ComplexityComplex, RecommendedDepth: 5}
	branches := FallbackBranches("Master portrait photography", complexity)
	if len(branches) < 3 || len(branches) > 7 {
		t.Fatalf("expected 3-7 branches, got %d", len(branches))
	}
}

func TestFallbackBranchesHaveUniqueNames(t *testing.T) {
	complexity := domain.Complexity{Score: 8, Level: domain.ComplexityExpert, RecommendedDepth: 6}
	branches := FallbackBranches("Learn to build distributed systems", complexity)
	seen := make(map[string]bool)
	for _, b := range branches {
		if seen[b.Name] {
			t.Fatalf("duplicate branch name %q", b.Name)
		}
		seen[b.Name] = true
	}
}

func TestFallbackBranchesPopulateOutputContractFields(t *testing.T) {
	complexity := domain.Complexity{Score: 6, Level: domain.ComplexityComplex, RecommendedDepth: 5}
	branches := FallbackBranches("Master portrait photography", complexity)
	for _, b := range branches {
		if len(b.ExpectedOutcomes) == 0 {
			t.Fatalf("branch %q: expected_outcomes must not be empty", b.Name)
		}
		if len(b.ContextAdaptations) == 0 {
			t.Fatalf("branch %q: context_adaptations must not be empty", b.Name)
		}
		if len(b.ExplorationOpportunities) == 0 {
			t.Fatalf("branch %q: exploration_opportunities must not be empty", b.Name)
		}
		if b.Focus == "" {
			t.Fatalf("branch %q: focus must default to a non-empty value", b.Name)
		}
	}
}

func TestMaterializeFrontierEmitsNPerBranch(t *testing.T) {
	complexity := domain.Complexity{Score: 6, Level: domain.ComplexityComplex, RecommendedDepth: 5}
	branches := []domain.StrategicBranch{
		{Name: "Lighting Fundamentals", Priority: 1},
		{Name: "Composition Techniques", Priority: 2},
	}
	nodes := MaterializeFrontier(branches, complexity, FrontierContext{})

	wantPerBranch := clampInt(6*3, 15, 25)
	if len(nodes) != wantPerBranch*len(branches) {
		t.Fatalf("expected %d nodes (n=%d per branch x %d branches), got %d", wantPerBranch*len(branches), wantPerBranch, len(branches), len(nodes))
	}
}

func TestMaterializeFrontierPrerequisiteChainsAreLinear(t *testing.T) {
	complexity := domain.Complexity{Score: 3, Level: domain.ComplexitySimple, RecommendedDepth: 3}
	branches := []domain.StrategicBranch{{Name: "Basics", Priority: 1}}
	nodes := MaterializeFrontier(branches, complexity, FrontierContext{})

	if len(nodes) < 2 {
		t.Fatalf("expected multiple nodes, got %d", len(nodes))
	}
	if len(nodes[0].Prerequisites) != 0 {
		t.Fatalf("first node in branch must have no prerequisites, got %v", nodes[0].Prerequisites)
	}
	for i := 1; i < len(nodes); i++ {
		if len(nodes[i].Prerequisites) != 1 || nodes[i].Prerequisites[0] != nodes[i-1].ID {
			t.Fatalf("node %d prerequisites should be [%s], got %v", i, nodes[i-1].ID, nodes[i].Prerequisites)
		}
	}
}

func TestMaterializeFrontierDifficultyAndDurationStayInRange(t *testing.T) {
	complexity := domain.Complexity{Score: 9, Level: domain.ComplexityExpert, RecommendedDepth: 6}
	branches := []domain.StrategicBranch{{Name: "Deep Specialization", Priority: 1}}
	nodes := MaterializeFrontier(branches, complexity, FrontierContext{PreferHandsOn: true})

	for _, n := range nodes {
		if n.Difficulty < 1 || n.Difficulty > 5 {
			t.Fatalf("difficulty out of range: %v", n.Difficulty)
		}
		if n.DurationMinutes < 10 || n.DurationMinutes > 60 {
			t.Fatalf("duration out of range: %v", n.DurationMinutes)
		}
	}
}

func TestMaterializeFrontierPriorityFormula(t *testing.T) {
	complexity := domain.Complexity{Score: 5, Level: domain.ComplexityModerate, RecommendedDepth: 4}
	branches := []domain.StrategicBranch{{Name: "Branch One", Priority: 2}}
	nodes := MaterializeFrontier(branches, complexity, FrontierContext{})

	for i, n := range nodes {
		want := 2*100 + i*10
		if n.Priority != want {
			t.Fatalf("node %d: expected priority %d, got %d", i, want, n.Priority)
		}
	}
}
