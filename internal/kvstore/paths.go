// Package kvstore implements the KV Store (C1): a filesystem-backed JSON
// document store rooted at FOREST_DATA_DIR, matching the persisted-state
// layout of spec.md §6.
package kvstore

import "path/filepath"

// GlobalConfigPath is global/config.json.
func GlobalConfigPath() string {
	return filepath.Join("global", "config.json")
}

// ProjectConfigPath is projects/<id>/config.json.
func ProjectConfigPath(projectID string) string {
	return filepath.Join("projects", projectID, "config.json")
}

// OnboardingStatePath is projects/<id>/onboarding_state.json.
func OnboardingStatePath(projectID string) string {
	return filepath.Join("projects", projectID, "onboarding_state.json")
}

// TreePath is projects/<id>/<path>/hta.json.
func TreePath(projectID, path string) string {
	return filepath.Join("projects", projectID, path, "hta.json")
}

// LearningHistoryPath is projects/<id>/<path>/learning_history.json.
func LearningHistoryPath(projectID, path string) string {
	return filepath.Join("projects", projectID, path, "learning_history.json")
}

// GoalMetadataPath is projects/<id>/goal_metadata.json.
func GoalMetadataPath(projectID string) string {
	return filepath.Join("projects", projectID, "goal_metadata.json")
}

// BranchMetadataPath is projects/<id>/branch_metadata.json.
func BranchMetadataPath(projectID string) string {
	return filepath.Join("projects", projectID, "branch_metadata.json")
}

// TaskMetadataPath is projects/<id>/task_metadata.json.
func TaskMetadataPath(projectID string) string {
	return filepath.Join("projects", projectID, "task_metadata.json")
}

// ProjectDir is projects/<id>, the unit factory_reset_forest removes for a
// single project.
func ProjectDir(projectID string) string {
	return filepath.Join("projects", projectID)
}
