package embedding

import "forest/internal/logging"

// ContentKind identifies which part of an HTA tree a piece of text came
// from, mirroring the vector id scheme's five prefixes (goal, branch, task,
// learning, breakthrough).
type ContentKind string

const (
	ContentKindGoal        ContentKind = "goal"
	ContentKindBranch      ContentKind = "branch"
	ContentKindTask        ContentKind = "task"
	ContentKindLearning    ContentKind = "learning"
	ContentKindBreakthrough ContentKind = "breakthrough"
)

// SelectTaskType chooses the GenAI task type best suited to embedding a
// given content kind, optimizing retrieval quality when C3 is backed by the
// GenAI adapter. Other adapters ignore the result.
func SelectTaskType(kind ContentKind, isQuery bool) string {
	var taskType string

	switch kind {
	case ContentKindGoal, ContentKindBranch:
		taskType = "RETRIEVAL_DOCUMENT"
		if isQuery {
			taskType = "RETRIEVAL_QUERY"
		}
	case ContentKindTask:
		taskType = "RETRIEVAL_DOCUMENT"
	case ContentKindLearning, ContentKindBreakthrough:
		taskType = "SEMANTIC_SIMILARITY"
	default:
		taskType = "SEMANTIC_SIMILARITY"
		logging.EmbeddingDebug("SelectTaskType: unrecognized content kind=%s, defaulting to SEMANTIC_SIMILARITY", kind)
	}

	logging.EmbeddingDebug("SelectTaskType: kind=%s is_query=%v -> task_type=%s", kind, isQuery, taskType)
	return taskType
}
