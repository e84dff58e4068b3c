package httpapi

import (
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

func taskFromModel(t models.Task) *store.Task {
	return &store.Task{
		TaskID:             t.TaskID,
		Title:              t.Title,
		Description:        t.Description,
		AssignedAgent:      t.AssignedAgent,
		AssignedBy:         t.AssignedBy,
		Priority:           t.Priority,
		EstimatedDuration:  t.EstimatedDuration,
		Dependencies:       t.Dependencies,
		AcceptanceCriteria: t.AcceptanceCriteria,
	}
}

func taskToModel(t *store.Task) models.Task {
	return models.Task{
		TaskID:             t.TaskID,
		Title:              t.Title,
		Description:        t.Description,
		AssignedAgent:      t.AssignedAgent,
		AssignedBy:         t.AssignedBy,
		Priority:           t.Priority,
		EstimatedDuration:  t.EstimatedDuration,
		Dependencies:       t.Dependencies,
		AcceptanceCriteria: t.AcceptanceCriteria,
		Status:             t.Status,
		Result:             t.Result,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}
}

func tasksToModel(in []store.Task) []models.Task {
	out := make([]models.Task, 0, len(in))
	for i := range in {
		out = append(out, taskToModel(&in[i]))
	}
	return out
}

func activitiesToModel(in []store.Activity) []models.Activity {
	out := make([]models.Activity, 0, len(in))
	for _, a := range in {
		out = append(out, models.Activity{
			ID:        a.ID,
			AgentID:   a.AgentID,
			AgentName: a.AgentName,
			Type:      a.Type,
			Action:    a.Action,
			Details:   a.Details,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
