package store

import (
	"context"
	"errors"

	"github.com/me/slotwise/pkg/model"
)

// ErrNotFound is returned by operations that need an existing record.
var ErrNotFound = errors.New("not found")

// Inputs is everything a scheduling run reads from the store.
type Inputs struct {
	Tasks       []model.Task
	Resources   []model.Resource
	Constraints []model.Constraint
}

// Store defines the persistence layer for scheduling inputs and results.
type Store interface {
	// Tasks
	PutTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, int, error)
	DeleteTask(ctx context.Context, id string) error

	// Resources and constraints
	PutResource(ctx context.Context, res *model.Resource) error
	ListResources(ctx context.Context) ([]*model.Resource, error)
	PutConstraint(ctx context.Context, c *model.Constraint) error
	ListConstraints(ctx context.Context) ([]*model.Constraint, error)

	// LoadInputs returns the named tasks plus every task they depend on, all
	// resources and all constraints. No task IDs means every stored task.
	LoadInputs(ctx context.Context, taskIDs []string) (*Inputs, error)

	// Schedules
	CreateSchedule(ctx context.Context, rec *model.ScheduleRecord) error
	GetSchedule(ctx context.Context, id string) (*model.ScheduleRecord, error)
	ListSchedules(ctx context.Context, opts model.ListOptions) ([]*model.ScheduleSummary, int, error)
	UpdateSchedule(ctx context.Context, rec *model.ScheduleRecord) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
