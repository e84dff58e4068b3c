package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ankittk/devcrew/pkg/models"
)

const taskColumns = `task_id, title, description, assigned_agent, assigned_by, priority, estimated_duration, dependencies, acceptance_criteria, status, result, created_at, updated_at, completed_at`

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(ns int64) time.Time { return time.Unix(0, ns).UTC() }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *sqliteStore) GetAgentState(ctx context.Context, agentName string) (*AgentState, error) {
	var (
		st                          AgentState
		status, memory, contextJSON string
		currentTask                 sql.NullString
		lastActivity, updatedAt     int64
	)
	err := s.stmtGetState.QueryRowContext(ctx, agentName).Scan(&st.AgentName, &st.AgentID, &status, &currentTask, &lastActivity, &memory, &contextJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agent state %s: %w", agentName, ErrNotFound)
		}
		return nil, err
	}
	st.Status = models.AgentStatus(status)
	if currentTask.Valid {
		id := currentTask.String
		st.CurrentTask = &id
	}
	st.LastActivity = fromNanos(lastActivity)
	st.UpdatedAt = fromNanos(updatedAt)
	if st.Memory, err = DecodeMap(memory); err != nil {
		return nil, err
	}
	if st.Context, err = DecodeContext(contextJSON); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *sqliteStore) PutAgentState(ctx context.Context, st *AgentState) error {
	if st == nil || st.AgentName == "" {
		return errors.New("agent state requires agent name")
	}
	memory, err := EncodeJSON(st.Memory)
	if err != nil {
		return err
	}
	contextJSON, err := EncodeJSON(st.Context)
	if err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err = s.stmtPutState.ExecContext(ctx, st.AgentName, st.AgentID, string(st.Status), st.CurrentTask,
		toNanos(st.LastActivity), memory, contextJSON, toNanos(st.UpdatedAt))
	return err
}

func (s *sqliteStore) CreateTask(ctx context.Context, t *Task) error {
	deps, crit, err := encodeTaskLists(t)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.Title, t.Description, t.AssignedAgent, t.AssignedBy, t.Priority, t.EstimatedDuration,
		deps, crit, string(t.Status), t.Result, toNanos(t.CreatedAt), toNanos(t.UpdatedAt), nullableNanos(t.CompletedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("task %s: %w", t.TaskID, ErrConflict)
	}
	return err
}

func (s *sqliteStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	t, err := scanTask(s.stmtGetTask.QueryRowContext(ctx, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t *Task) error {
	deps, crit, err := encodeTaskLists(t)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE tasks SET title=?, description=?, assigned_agent=?, assigned_by=?, priority=?, estimated_duration=?,
  dependencies=?, acceptance_criteria=?, status=?, result=?, updated_at=?, completed_at=?
WHERE task_id=?`,
		t.Title, t.Description, t.AssignedAgent, t.AssignedBy, t.Priority, t.EstimatedDuration,
		deps, crit, string(t.Status), t.Result, toNanos(t.UpdatedAt), nullableNanos(t.CompletedAt), t.TaskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.TaskID, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.AssignedAgent != "" {
		q += ` AND assigned_agent = ?`
		args = append(args, f.AssignedAgent)
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY created_at DESC, task_id ASC LIMIT ?`
	args = append(args, f.EffectiveLimit())

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendActivity(ctx context.Context, a *Activity) error {
	details, err := EncodeJSON(a.Details)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO agent_activities(activity_id, agent_id, agent_name, activity_type, action, details, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AgentID, a.AgentName, a.Type, a.Action, details, toNanos(a.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("activity %s: %w", a.ID, ErrConflict)
	}
	return err
}

func (s *sqliteStore) ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	q := `SELECT activity_id, agent_id, agent_name, activity_type, action, details, created_at FROM agent_activities WHERE 1=1`
	var args []any
	if f.AgentName != "" {
		q += ` AND agent_name = ?`
		args = append(args, f.AgentName)
	}
	if f.Type != "" {
		q += ` AND activity_type = ?`
		args = append(args, f.Type)
	}
	if f.Action != "" {
		q += ` AND action = ?`
		args = append(args, f.Action)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, f.EffectiveLimit())

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Activity
	for rows.Next() {
		var (
			a         Activity
			details   string
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.AgentID, &a.AgentName, &a.Type, &a.Action, &details, &createdAt); err != nil {
			return nil, err
		}
		if a.Details, err = DecodeMap(details); err != nil {
			return nil, err
		}
		a.CreatedAt = fromNanos(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Stats(ctx context.Context) (models.Stats, error) {
	stats := models.Stats{TasksByStatus: map[string]int{}}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agent_states`).Scan(&stats.AgentStates); err != nil {
		return stats, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agent_activities`).Scan(&stats.Activities); err != nil {
		return stats, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer func() { _ = rows.Close() }()
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*Task, error) {
	var (
		t                    Task
		status, deps, crit   string
		createdAt, updatedAt int64
		completedAt          sql.NullInt64
	)
	if err := r.Scan(&t.TaskID, &t.Title, &t.Description, &t.AssignedAgent, &t.AssignedBy, &t.Priority,
		&t.EstimatedDuration, &deps, &crit, &status, &t.Result, &createdAt, &updatedAt, &completedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	if completedAt.Valid {
		ts := fromNanos(completedAt.Int64)
		t.CompletedAt = &ts
	}
	var err error
	if t.Dependencies, err = DecodeStrings(deps); err != nil {
		return nil, err
	}
	if t.AcceptanceCriteria, err = DecodeStrings(crit); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeTaskLists(t *Task) (deps, crit string, err error) {
	if t == nil || t.TaskID == "" {
		return "", "", errors.New("task requires an id")
	}
	if deps, err = EncodeJSON(t.Dependencies); err != nil {
		return "", "", err
	}
	if crit, err = EncodeJSON(t.AcceptanceCriteria); err != nil {
		return "", "", err
	}
	return deps, crit, nil
}

func nullableNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toNanos(*t)
}
