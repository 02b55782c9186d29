package htaengine

import (
	"testing"

	"forest/internal/domain"
)

func TestAnalyzeGoalTechnicalKeywordsRaiseDepth(t *testing.T) {
	c := AnalyzeGoal("Learn to program distributed systems and debug network code", ExperienceNeutral)
	if c.RecommendedDepth < 5 {
		t.Fatalf("expected technical goal to recommend depth >= 5, got %d", c.RecommendedDepth)
	}
}

func TestAnalyzeGoalExploratoryGoalCapsDepth(t *testing.T) {
	c := AnalyzeGoal("Explore and discover new places", ExperienceNeutral)
	if c.RecommendedDepth > 4 {
		t.Fatalf("expected exploratory goal to cap depth <= 4, got %d", c.RecommendedDepth)
	}
}

func TestAnalyzeGoalBeginnerExperienceIncreasesDepth(t *testing.T) {
	neutral := AnalyzeGoal("Master advanced portrait photography", ExperienceNeutral)
	beginner := AnalyzeGoal("Master advanced portrait photography", ExperienceBeginner)
	if beginner.RecommendedDepth != neutral.RecommendedDepth+1 && neutral.RecommendedDepth != 6 {
		t.Fatalf("expected beginner depth to exceed neutral depth (neutral=%d beginner=%d)", neutral.RecommendedDepth, beginner.RecommendedDepth)
	}
}

func TestAnalyzeGoalExpertExperienceDecreasesDepth(t *testing.T) {
	neutral := AnalyzeGoal("Master advanced portrait photography", ExperienceNeutral)
	expert := AnalyzeGoal("Master advanced portrait photography", ExperienceExpert)
	if expert.RecommendedDepth > neutral.RecommendedDepth {
		t.Fatalf("expected expert depth <= neutral depth (neutral=%d expert=%d)", neutral.RecommendedDepth, expert.RecommendedDepth)
	}
}

func TestAnalyzeGoalScoreStaysInRange(t *testing.T) {
	c := AnalyzeGoal("comprehensive advanced sophisticated integrate analyze synthesize optimize distributed systems engineering at scale with many qualifiers repeated over and over to inflate length", ExperienceNeutral)
	if c.Score < 1 || c.Score > 10 {
		t.Fatalf("score out of range: %d", c.Score)
	}
	if c.Level != domain.ComplexityExpert {
		t.Fatalf("expected expert complexity for heavily-qualified goal, got %s", c.Level)
	}
}

func TestAnalyzeGoalDepthStaysInRange(t *testing.T) {
	for _, exp := range []UserExperience{ExperienceBeginner, ExperienceNeutral, ExperienceExpert} {
		c := AnalyzeGoal("learn", exp)
		if c.RecommendedDepth < 2 || c.RecommendedDepth > 6 {
			t.Fatalf("depth out of range for experience=%s: %d", exp, c.RecommendedDepth)
		}
	}
}
