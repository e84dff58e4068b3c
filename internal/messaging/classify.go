package messaging

import (
	"strings"

	"github.com/ankittk/devcrew/pkg/models"
)

// keyword rules are checked in order; the first hit wins.
var classifyRules = []struct {
	typ      models.RequestType
	keywords []string
}{
	{models.RequestCodeReview, []string{"review"}},
	{models.RequestTaskAssignment, []string{"task", "assign", "work on"}},
	{models.RequestStatusUpdate, []string{"status", "update", "progress"}},
	{models.RequestCollaboration, []string{"help", "collaborate", "work together"}},
	{models.RequestDebugging, []string{"bug", "debug", "error", "issue"}},
	{models.RequestArchitectureDiscussion, []string{"architecture", "design", "structure"}},
}

// Classify guesses the request type of free text by keyword. Unmatched text is a status update.
func Classify(text string) models.RequestType {
	lower := strings.ToLower(text)
	for _, r := range classifyRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.typ
			}
		}
	}
	return models.RequestStatusUpdate
}
