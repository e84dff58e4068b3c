// Package mysql is a MySQL-backed store.Store built on gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type agentStateRow struct {
	AgentName    string  `gorm:"primaryKey;size:191"`
	AgentID      string  `gorm:"size:64;not null"`
	Status       string  `gorm:"size:32;not null"`
	CurrentTask  *string `gorm:"size:191"`
	LastActivity time.Time
	Memory       string    `gorm:"type:longtext"`
	Context      string    `gorm:"type:longtext"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (agentStateRow) TableName() string { return "agent_states" }

type taskRow struct {
	TaskID             string `gorm:"primaryKey;size:191"`
	Title              string `gorm:"size:512;not null"`
	Description        string `gorm:"type:text"`
	AssignedAgent      string `gorm:"size:191;index:idx_tasks_agent"`
	AssignedBy         string `gorm:"size:191"`
	Priority           string `gorm:"size:32"`
	EstimatedDuration  string `gorm:"size:64"`
	Dependencies       string `gorm:"type:text"`
	AcceptanceCriteria string `gorm:"type:text"`
	Status             string `gorm:"size:32;index"`
	Result             string `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
	CompletedAt        *time.Time
}

func (taskRow) TableName() string { return "tasks" }

type activityRow struct {
	Seq          uint64    `gorm:"primaryKey;autoIncrement"`
	ActivityID   string    `gorm:"size:64;uniqueIndex"`
	AgentID      string    `gorm:"size:64"`
	AgentName    string    `gorm:"size:191;index:idx_activities_agent"`
	ActivityType string    `gorm:"size:64"`
	Action       string    `gorm:"size:64"`
	Details      string    `gorm:"type:longtext"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (activityRow) TableName() string { return "agent_activities" }

// Store is the MySQL implementation of store.Store.
type Store struct {
	DB *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with dsn (user:pass@tcp(host:3306)/db) and migrates the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql DSN required")
	}
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	gormLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&agentStateRow{}, &taskRow{}, &activityRow{}); err != nil {
		return nil, fmt.Errorf("mysql migrate: %w", err)
	}
	return &Store{DB: db}, nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetAgentState(ctx context.Context, agentName string) (*store.AgentState, error) {
	var row agentStateRow
	if err := s.DB.WithContext(ctx).First(&row, "agent_name = ?", agentName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent state %s: %w", agentName, store.ErrNotFound)
		}
		return nil, err
	}
	st := &store.AgentState{
		AgentID:      row.AgentID,
		AgentName:    row.AgentName,
		Status:       models.AgentStatus(row.Status),
		CurrentTask:  row.CurrentTask,
		LastActivity: row.LastActivity.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	var err error
	if st.Memory, err = store.DecodeMap(row.Memory); err != nil {
		return nil, err
	}
	if st.Context, err = store.DecodeContext(row.Context); err != nil {
		return nil, err
	}
	return st, nil
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
	row := agentStateRow{
		AgentName:    st.AgentName,
		AgentID:      st.AgentID,
		Status:       string(st.Status),
		CurrentTask:  st.CurrentTask,
		LastActivity: st.LastActivity,
		Memory:       memory,
		Context:      ctxJSON,
		UpdatedAt:    st.UpdatedAt,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *Store) CreateTask(ctx context.Context, t *store.Task) error {
	row, err := toTaskRow(t)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("task %s: %w", t.TaskID, store.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*store.Task, error) {
	var row taskRow
	if err := s.DB.WithContext(ctx).First(&row, "task_id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
		}
		return nil, err
	}
	return fromTaskRow(row)
}

func (s *Store) UpdateTask(ctx context.Context, t *store.Task) error {
	row, err := toTaskRow(t)
	if err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&taskRow{}).Where("task_id = ?", t.TaskID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.TaskID, store.ErrNotFound)
	}
	// Select("*") writes zero values too, so a cleared CompletedAt is persisted.
	return db.Model(&taskRow{}).Where("task_id = ?", t.TaskID).Select("*").Omit("task_id").Updates(&row).Error
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	q := s.DB.WithContext(ctx).Model(&taskRow{})
	if f.AssignedAgent != "" {
		q = q.Where("assigned_agent = ?", f.AssignedAgent)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var rows []taskRow
	if err := q.Order("created_at DESC, task_id ASC").Limit(f.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.Task, 0, len(rows))
	for _, r := range rows {
		t, err := fromTaskRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *Store) AppendActivity(ctx context.Context, a *store.Activity) error {
	details, err := store.EncodeJSON(a.Details)
	if err != nil {
		return err
	}
	row := activityRow{
		ActivityID:   a.ID,
		AgentID:      a.AgentID,
		AgentName:    a.AgentName,
		ActivityType: a.Type,
		Action:       a.Action,
		Details:      details,
		CreatedAt:    a.CreatedAt,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("activity %s: %w", a.ID, store.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	q := s.DB.WithContext(ctx).Model(&activityRow{})
	if f.AgentName != "" {
		q = q.Where("agent_name = ?", f.AgentName)
	}
	if f.Type != "" {
		q = q.Where("activity_type = ?", f.Type)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	var rows []activityRow
	if err := q.Order("created_at DESC, seq DESC").Limit(f.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.Activity, 0, len(rows))
	for _, r := range rows {
		details, err := store.DecodeMap(r.Details)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Activity{
			ID:        r.ActivityID,
			AgentID:   r.AgentID,
			AgentName: r.AgentName,
			Type:      r.ActivityType,
			Action:    r.Action,
			Details:   details,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	stats := models.Stats{TasksByStatus: map[string]int{}}
	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&agentStateRow{}).Count(&n).Error; err != nil {
		return stats, err
	}
	stats.AgentStates = int(n)
	if err := db.Model(&activityRow{}).Count(&n).Error; err != nil {
		return stats, err
	}
	stats.Activities = int(n)
	var groups []struct {
		Status string
		N      int
	}
	if err := db.Model(&taskRow{}).Select("status, COUNT(*) AS n").Group("status").Scan(&groups).Error; err != nil {
		return stats, err
	}
	for _, g := range groups {
		stats.TasksByStatus[g.Status] = g.N
		stats.Tasks += g.N
	}
	return stats, nil
}

func toTaskRow(t *store.Task) (taskRow, error) {
	if t == nil || t.TaskID == "" {
		return taskRow{}, errors.New("task requires an id")
	}
	deps, err := store.EncodeJSON(t.Dependencies)
	if err != nil {
		return taskRow{}, err
	}
	crit, err := store.EncodeJSON(t.AcceptanceCriteria)
	if err != nil {
		return taskRow{}, err
	}
	return taskRow{
		TaskID:             t.TaskID,
		Title:              t.Title,
		Description:        t.Description,
		AssignedAgent:      t.AssignedAgent,
		AssignedBy:         t.AssignedBy,
		Priority:           t.Priority,
		EstimatedDuration:  t.EstimatedDuration,
		Dependencies:       deps,
		AcceptanceCriteria: crit,
		Status:             string(t.Status),
		Result:             t.Result,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}, nil
}

func fromTaskRow(r taskRow) (*store.Task, error) {
	t := &store.Task{
		TaskID:            r.TaskID,
		Title:             r.Title,
		Description:       r.Description,
		AssignedAgent:     r.AssignedAgent,
		AssignedBy:        r.AssignedBy,
		Priority:          r.Priority,
		EstimatedDuration: r.EstimatedDuration,
		Status:            models.TaskStatus(r.Status),
		Result:            r.Result,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		ts := r.CompletedAt.UTC()
		t.CompletedAt = &ts
	}
	var err error
	if t.Dependencies, err = store.DecodeStrings(r.Dependencies); err != nil {
		return nil, err
	}
	if t.AcceptanceCriteria, err = store.DecodeStrings(r.AcceptanceCriteria); err != nil {
		return nil, err
	}
	return t, nil
}
