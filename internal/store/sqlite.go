package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/slotwise/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Tasks ---

func (s *SQLiteStore) PutTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "upsert", "table", "tasks", "id", task.ID)

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	now := s.now().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, priority, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, priority=excluded.priority,
		 data=excluded.data, updated_at=excluded.updated_at`,
		task.ID, task.Title, task.Priority, string(data), now, now,
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task model.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "tasks", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM tasks ORDER BY priority DESC, id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := scanJSON[model.Task](rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "tasks", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Resources and constraints ---

func (s *SQLiteStore) PutResource(ctx context.Context, res *model.Resource) error {
	s.logger.Debug("sql", "op", "upsert", "table", "resources", "id", res.ID)

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resource: %w", err)
	}
	now := s.now().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resources (id, name, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, data=excluded.data, updated_at=excluded.updated_at`,
		res.ID, res.Name, string(data), now, now,
	)
	return err
}

func (s *SQLiteStore) ListResources(ctx context.Context) ([]*model.Resource, error) {
	s.logger.Debug("sql", "op", "list", "table", "resources")

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJSON[model.Resource](rows)
}

func (s *SQLiteStore) PutConstraint(ctx context.Context, c *model.Constraint) error {
	s.logger.Debug("sql", "op", "upsert", "table", "constraints", "id", c.ID)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal constraint: %w", err)
	}
	now := s.now().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO constraints (id, kind, category, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, category=excluded.category,
		 data=excluded.data, updated_at=excluded.updated_at`,
		c.ID, string(c.Kind), string(c.Category), string(data), now, now,
	)
	return err
}

func (s *SQLiteStore) ListConstraints(ctx context.Context) ([]*model.Constraint, error) {
	s.logger.Debug("sql", "op", "list", "table", "constraints")

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM constraints ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJSON[model.Constraint](rows)
}

// LoadInputs resolves the requested tasks and the tasks they depend on.
func (s *SQLiteStore) LoadInputs(ctx context.Context, taskIDs []string) (*Inputs, error) {
	s.logger.Debug("sql", "op", "load_inputs", "tasks", len(taskIDs))

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	all, err := scanJSON[model.Task](rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	in := &Inputs{}
	if len(taskIDs) == 0 {
		for _, t := range all {
			in.Tasks = append(in.Tasks, *t)
		}
	} else {
		byID := make(map[string]*model.Task, len(all))
		for _, t := range all {
			byID[t.ID] = t
		}
		included := make(map[string]bool)
		queue := append([]string(nil), taskIDs...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if included[id] {
				continue
			}
			t, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
			}
			included[id] = true
			in.Tasks = append(in.Tasks, *t)
			for _, dep := range t.Dependencies {
				if _, stored := byID[dep.TaskID]; stored {
					queue = append(queue, dep.TaskID)
				}
			}
		}
	}

	resources, err := s.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		in.Resources = append(in.Resources, *r)
	}
	constraints, err := s.ListConstraints(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range constraints {
		in.Constraints = append(in.Constraints, *c)
	}
	return in, nil
}

// --- Schedules ---

func (s *SQLiteStore) CreateSchedule(ctx context.Context, rec *model.ScheduleRecord) error {
	sched := rec.Schedule
	s.logger.Debug("sql", "op", "insert", "table", "schedules", "id", sched.ID)

	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.UpdatedAt = rec.CreatedAt
	sum := rec.Summary()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, algorithm, start_date, end_date, optimization_score, scheduled, unscheduled,
		 data, request, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, string(sum.Algorithm),
		sum.StartDate.Format(time.RFC3339Nano), sum.EndDate.Format(time.RFC3339Nano),
		sum.OptimizationScore, sum.Scheduled, sum.Unscheduled,
		string(data), string(request),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetSchedule(ctx context.Context, id string) (*model.ScheduleRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "schedules", "id", id)

	var data, request, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, request, created_at, updated_at FROM schedules WHERE id = ?`, id,
	).Scan(&data, &request, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &model.ScheduleRecord{Schedule: &model.Schedule{}}
	if err := json.Unmarshal([]byte(data), rec.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(request), &rec.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request of %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

func (s *SQLiteStore) ListSchedules(ctx context.Context, opts model.ListOptions) ([]*model.ScheduleSummary, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "schedules", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	args := []any{}
	if opts.Algorithm != "" {
		where = " WHERE algorithm = ?"
		args = append(args, opts.Algorithm)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, algorithm, start_date, end_date, optimization_score, scheduled, unscheduled, created_at
		 FROM schedules`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.ScheduleSummary
	for rows.Next() {
		var sum model.ScheduleSummary
		var algorithm, startDate, endDate, createdAt string
		if err := rows.Scan(&sum.ID, &algorithm, &startDate, &endDate,
			&sum.OptimizationScore, &sum.Scheduled, &sum.Unscheduled, &createdAt); err != nil {
			return nil, 0, err
		}
		sum.Algorithm = model.Algorithm(algorithm)
		sum.StartDate, _ = time.Parse(time.RFC3339Nano, startDate)
		sum.EndDate, _ = time.Parse(time.RFC3339Nano, endDate)
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &sum)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) UpdateSchedule(ctx context.Context, rec *model.ScheduleRecord) error {
	sched := rec.Schedule
	s.logger.Debug("sql", "op", "update", "table", "schedules", "id", sched.ID)

	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	rec.UpdatedAt = s.now()
	sum := rec.Summary()

	result, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET algorithm=?, optimization_score=?, scheduled=?, unscheduled=?,
		 data=?, request=?, updated_at=? WHERE id=?`,
		string(sum.Algorithm), sum.OptimizationScore, sum.Scheduled, sum.Unscheduled,
		string(data), string(request), rec.UpdatedAt.Format(time.RFC3339Nano), sum.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", sched.ID, ErrNotFound)
	}
	return nil
}

// --- scan helpers ---

// scanJSON decodes a single JSON data column from every row.
func scanJSON[T any](rows *sql.Rows) ([]*T, error) {
	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
