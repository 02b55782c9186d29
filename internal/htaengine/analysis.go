// Package htaengine implements the Schema HTA Engine (C5): six-level
// hierarchical decomposition via schema-constrained Intelligence Bridge
// requests, a retry/fallback ladder, and deterministic goal-characteristic
// analysis.
package htaengine

import (
	"strings"

	"forest/internal/domain"
)

// keywordFamily classifies a goal's dominant character.
type keywordFamily string

const (
	familyTechnical      keywordFamily = "technical"
	familyCreative       keywordFamily = "creative"
	familyProcessOriented keywordFamily = "process-oriented"
	familyMasteryFocused keywordFamily = "mastery-focused"
	familyExploratory    keywordFamily = "exploratory"
)

var familyKeywords = map[keywordFamily][]string{
	familyTechnical:       {"code", "program", "software", "algorithm", "engineer", "system", "build", "develop", "debug", "api", "database", "network"},
	familyCreative:        {"art", "design", "paint", "photography", "music", "write", "compose", "draw", "craft", "create", "portrait"},
	familyProcessOriented: {"process", "workflow", "manage", "organize", "plan", "pipeline", "method", "procedure"},
	familyMasteryFocused:  {"master", "expert", "advanced", "professional", "proficiency", "fluency"},
	familyExploratory:     {"explore", "discover", "learn about", "understand", "survey", "overview"},
}

var complexQualifiers = []string{
	"advanced", "sophisticated", "comprehensive", "integrate", "analyze", "synthesize", "optimize",
}

// UserExperience influences recommended depth.
type UserExperience string

const (
	ExperienceBeginner UserExperience = "beginner"
	ExperienceExpert   UserExperience = "expert"
	ExperienceNeutral  UserExperience = ""
)

// AnalyzeGoal runs the deterministic goal-characteristic analysis: tokenize
// the goal, classify by keyword family, bucket complexity by length and
// qualifier count, and derive a recommended depth (spec.md §4.4).
func AnalyzeGoal(goal string, experience UserExperience) domain.Complexity {
	lower := strings.ToLower(goal)
	words := strings.Fields(lower)

	families := dominantFamilies(lower)
	qualifierCount := 0
	for _, q := range complexQualifiers {
		if strings.Contains(lower, q) {
			qualifierCount++
		}
	}

	score := 3 + qualifierCount*2 + len(words)/8
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	level := domain.ComplexityModerate
	switch {
	case score >= 8:
		level = domain.ComplexityExpert
	case score >= 6:
		level = domain.ComplexityComplex
	case score <= 3:
		level = domain.ComplexitySimple
	}

	depth := 4
	switch {
	case level == domain.ComplexityExpert:
		depth = 6
	case level == domain.ComplexitySimple || families[familyExploratory]:
		depth = 3
	case families[familyTechnical] || families[familyMasteryFocused]:
		depth = 5
	}
	switch experience {
	case ExperienceBeginner:
		depth++
	case ExperienceExpert:
		depth--
	}
	if depth < 2 {
		depth = 2
	}
	if depth > 6 {
		depth = 6
	}

	var factors []string
	for fam, present := range families {
		if present {
			factors = append(factors, string(fam))
		}
	}
	if qualifierCount > 0 {
		factors = append(factors, "qualifier_density")
	}

	return domain.Complexity{
		Score:            score,
		Level:            level,
		RecommendedDepth: depth,
		Factors:          factors,
	}
}

func dominantFamilies(lowerGoal string) map[keywordFamily]bool {
	found := make(map[keywordFamily]bool)
	for fam, keywords := range familyKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowerGoal, kw) {
				found[fam] = true
				break
			}
		}
	}
	if len(found) == 0 {
		found[familyExploratory] = true
	}
	return found
}
