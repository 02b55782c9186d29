package htaengine

import (
	"fmt"
	"math"
	"strings"

	"forest/internal/domain"
)

var goalStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "to": true, "in": true, "for": true,
	"master": true, "mastering": true, "learn": true, "learning": true, "understand": true,
	"understanding": true, "become": true, "becoming": true, "at": true, "with": true, "and": true,
}

// coreSubject strips filler verbs/stopwords from a goal, leaving the noun
// phrase branch and task names are built from (Design Notes: preserve goal
// words, prune redundant prefixes).
func coreSubject(goal string) string {
	words := strings.Fields(goal)
	var kept []string
	for _, w := range words {
		if !goalStopwords[strings.ToLower(strings.Trim(w, ".,!?"))] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return goal
	}
	return strings.Join(kept, " ")
}

var branchFocusCycle = []domain.BranchFocus{
	domain.FocusTheory, domain.FocusHandsOn, domain.FocusProject, domain.FocusBalanced,
}

// FallbackBranches deterministically synthesizes 3-7 strategic branches from
// goal-characteristic analysis, used when the retry ladder is exhausted
// (spec.md §4.4 "goal-adaptive fallback").
func FallbackBranches(goal string, complexity domain.Complexity) []domain.StrategicBranch {
	core := coreSubject(goal)
	templates := []string{
		"%s Fundamentals",
		"%s Techniques",
		"Applied %s",
		"%s Practice",
		"Advanced %s",
		"%s Mastery",
		"%s Exploration",
	}

	n := clampInt(3+complexity.Score/3, 3, 7)
	branches := make([]domain.StrategicBranch, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf(templates[i%len(templates)], core)
		focus := branchFocusCycle[i%len(branchFocusCycle)]
		branches = append(branches, domain.StrategicBranch{
			Name:        name,
			Description: fmt.Sprintf("Builds %s skill through a %s focus on %s.", core, focus, strings.ToLower(name)),
			Priority:    i + 1,
			DomainFocus: core,
			Rationale:   fmt.Sprintf("Derived deterministically from goal-characteristic analysis (score=%d, level=%s).", complexity.Score, complexity.Level),
			ExpectedOutcomes: []string{
				fmt.Sprintf("Can demonstrate working knowledge of %s.", strings.ToLower(name)),
			},
			ContextAdaptations: []string{
				fmt.Sprintf("Low-resource: favor reading and reflection over %s's hands-on steps.", name),
				fmt.Sprintf("High-resource: add project work that exercises %s directly.", strings.ToLower(name)),
			},
			ExplorationOpportunities: []string{
				fmt.Sprintf("Adjacent topics near %s worth a side excursion once the core branch is underway.", strings.ToLower(name)),
			},
			Focus: focus,
		})
	}
	return branches
}

// FrontierContext carries the optional signals the duration formula's
// context multiplier reacts to (spec.md §4.4).
type FrontierContext struct {
	Urgency       string // "high" lowers duration
	PreferHandsOn bool   // raises duration
	PreferReading bool   // lowers duration
}

var progressionTemplates = []string{
	"Introduction to %s",
	"Exploring %s",
	"Understanding %s",
	"Mastering %s",
	"Advanced %s",
}

// MaterializeFrontier implements the initial frontier materialization
// formulas exactly: n tasks per branch, progressive titles, difficulty and
// duration ramps, and a linear prerequisite chain within each branch.
func MaterializeFrontier(branches []domain.StrategicBranch, complexity domain.Complexity, ctx FrontierContext) []domain.FrontierNode {
	n := clampInt(int(math.Floor(float64(complexity.Score)*3)), 15, 25)

	contextMult := 1.0
	if ctx.Urgency == "high" {
		contextMult = 0.8
	} else if ctx.PreferHandsOn {
		contextMult = 1.2
	} else if ctx.PreferReading {
		contextMult = 0.8
	}

	var nodes []domain.FrontierNode
	for _, branch := range branches {
		slug := slugify(branch.Name)
		cleaned := coreSubject(branch.Name)

		var prevID string
		for i := 0; i < n; i++ {
			title := fmt.Sprintf(progressionTemplates[i%len(progressionTemplates)], cleaned)

			difficulty := math.Floor(float64(complexity.Score)/2) + 0.5*float64(i)
			difficulty = clampFloat(difficulty, 1, 5)

			complexityMult := 1 + (float64(complexity.Score)-3)*0.2
			progressionMult := 1 + float64(i)*0.3
			duration := 25 * complexityMult * progressionMult * contextMult
			duration = clampFloat(duration, 10, 60)

			id := fmt.Sprintf("%s-%02d", slug, i)
			var prereqs []string
			if i > 0 {
				prereqs = []string{prevID}
			}

			nodes = append(nodes, domain.FrontierNode{
				ID:              id,
				Title:           title,
				Description:     fmt.Sprintf("%s within %s.", title, branch.Name),
				Branch:          branch.Name,
				Difficulty:      difficulty,
				DurationMinutes: int(math.Round(duration)),
				Priority:        branch.Priority*100 + i*10,
				Prerequisites:   prereqs,
				Status:          domain.TaskPending,
				Generated:       true,
				LearningOutcome: fmt.Sprintf("Can demonstrate %s.", strings.ToLower(title)),
				DomainFocus:     branch.DomainFocus,
			})
			prevID = id
		}
	}
	return nodes
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
