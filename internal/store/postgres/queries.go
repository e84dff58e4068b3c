package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const taskColumns = `task_id, title, description, assigned_agent, assigned_by, priority, estimated_duration, dependencies, acceptance_criteria, status, result, created_at, updated_at, completed_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) GetAgentState(ctx context.Context, agentName string) (*store.AgentState, error) {
	var (
		st              store.AgentState
		status          string
		memory, ctxJSON string
	)
	err := s.Pool.QueryRow(ctx, `SELECT agent_name, agent_id, status, current_task, last_activity, memory, context, updated_at FROM agent_states WHERE agent_name = $1`, agentName).
		Scan(&st.AgentName, &st.AgentID, &status, &st.CurrentTask, &st.LastActivity, &memory, &ctxJSON, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent state %s: %w", agentName, store.ErrNotFound)
		}
		return nil, err
	}
	st.Status = models.AgentStatus(status)
	st.LastActivity = st.LastActivity.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	if st.Memory, err = store.DecodeMap(memory); err != nil {
		return nil, err
	}
	if st.Context, err = store.DecodeContext(ctxJSON); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) PutAgentState(ctx context.Context, st *store.AgentState) error {
	if st == nil || st.AgentName == "" {
		return errors.New("agent state requires agent name")
	}
	memory, err := store.EncodeJSON(st.Memory)
	if err != nil {
		return err
	}
	ctxJSON, err := store.EncodeJSON(st.Context)
	if err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err = s.Pool.Exec(ctx, `
INSERT INTO agent_states(agent_name, agent_id, status, current_task, last_activity, memory, context, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (agent_name) DO UPDATE SET
  agent_id=EXCLUDED.agent_id, status=EXCLUDED.status, current_task=EXCLUDED.current_task,
  last_activity=EXCLUDED.last_activity, memory=EXCLUDED.memory, context=EXCLUDED.context, updated_at=EXCLUDED.updated_at`,
		st.AgentName, st.AgentID, string(st.Status), st.CurrentTask, st.LastActivity, memory, ctxJSON, st.UpdatedAt)
	return err
}

func (s *Store) CreateTask(ctx context.Context, t *store.Task) error {
	deps, crit, err := encodeLists(t)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.TaskID, t.Title, t.Description, t.AssignedAgent, t.AssignedBy, t.Priority, t.EstimatedDuration,
		deps, crit, string(t.Status), t.Result, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("task %s: %w", t.TaskID, store.ErrConflict)
	}
	return err
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*store.Task, error) {
	t, err := scanTask(s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *store.Task) error {
	deps, crit, err := encodeLists(t)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `
UPDATE tasks SET title=$1, description=$2, assigned_agent=$3, assigned_by=$4, priority=$5, estimated_duration=$6,
  dependencies=$7, acceptance_criteria=$8, status=$9, result=$10, updated_at=$11, completed_at=$12
WHERE task_id=$13`,
		t.Title, t.Description, t.AssignedAgent, t.AssignedBy, t.Priority, t.EstimatedDuration,
		deps, crit, string(t.Status), t.Result, t.UpdatedAt, t.CompletedAt, t.TaskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", t.TaskID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.AssignedAgent != "" {
		args = append(args, f.AssignedAgent)
		q += ` AND assigned_agent = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	args = append(args, f.EffectiveLimit())
	q += ` ORDER BY created_at DESC, task_id ASC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) AppendActivity(ctx context.Context, a *store.Activity) error {
	details, err := store.EncodeJSON(a.Details)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO agent_activities(activity_id, agent_id, agent_name, activity_type, action, details, created_at) VALUES($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.AgentID, a.AgentName, a.Type, a.Action, details, a.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("activity %s: %w", a.ID, store.ErrConflict)
	}
	return err
}

func (s *Store) ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	q := `SELECT activity_id, agent_id, agent_name, activity_type, action, details, created_at FROM agent_activities WHERE 1=1`
	var args []any
	if f.AgentName != "" {
		args = append(args, f.AgentName)
		q += ` AND agent_name = $` + strconv.Itoa(len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		q += ` AND activity_type = $` + strconv.Itoa(len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		q += ` AND action = $` + strconv.Itoa(len(args))
	}
	args = append(args, f.EffectiveLimit())
	q += ` ORDER BY created_at DESC, seq DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Activity
	for rows.Next() {
		var (
			a       store.Activity
			details string
		)
		if err := rows.Scan(&a.ID, &a.AgentID, &a.AgentName, &a.Type, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if a.Details, err = store.DecodeMap(details); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	stats := models.Stats{TasksByStatus: map[string]int{}}
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_states`).Scan(&stats.AgentStates); err != nil {
		return stats, err
	}
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_activities`).Scan(&stats.Activities); err != nil {
		return stats, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		stats.TasksByStatus[status] = n
		stats.Tasks += n
	}
	return stats, rows.Err()
}

func scanTask(row pgx.Row) (*store.Task, error) {
	var (
		t                  store.Task
		status, deps, crit string
	)
	if err := row.Scan(&t.TaskID, &t.Title, &t.Description, &t.AssignedAgent, &t.AssignedBy, &t.Priority,
		&t.EstimatedDuration, &deps, &crit, &status, &t.Result, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.CompletedAt != nil {
		ts := t.CompletedAt.UTC()
		t.CompletedAt = &ts
	}
	var err error
	if t.Dependencies, err = store.DecodeStrings(deps); err != nil {
		return nil, err
	}
	if t.AcceptanceCriteria, err = store.DecodeStrings(crit); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeLists(t *store.Task) (deps, crit string, err error) {
	if t == nil || t.TaskID == "" {
		return "", "", errors.New("task requires an id")
	}
	if deps, err = store.EncodeJSON(t.Dependencies); err != nil {
		return "", "", err
	}
	if crit, err = store.EncodeJSON(t.AcceptanceCriteria); err != nil {
		return "", "", err
	}
	return deps, crit, nil
}
