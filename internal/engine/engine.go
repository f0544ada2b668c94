package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/me/slotwise/pkg/model"
)

// Engine computes schedules. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	logger  *slog.Logger
	clock   Clock
	seed    *uint64
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for deadline urgency, time budgets and
// schedule timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSeed fixes the seed of the optimizer's random source so runs are
// reproducible. Without it every run draws a fresh seed from the clock.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = &seed
	}
}

// WithWorkers bounds how many candidates are scored concurrently while a
// task is placed. Values below 1 mean serial scoring.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// New creates an Engine.
func New(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:  logger.With("component", "engine"),
		clock:   SystemClock,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state of one invocation. It is owned by a single goroutine;
// only candidate scoring fans out, and it reads run state without writing.
type run struct {
	logger      *slog.Logger
	clock       Clock
	started     time.Time
	rng         *rand.Rand
	seed        uint64
	workers     int
	opts        model.Options
	tr          model.TimeRange
	loc         *time.Location
	granularity time.Duration

	tasks       []model.Task
	taskIdx     map[string]int
	graph       *DependencyGraph
	index       *AvailabilityIndex
	constraints *constraintSet
	ranked      []RankedTask
}

// Schedule runs the full pipeline for one request:
// preprocess, construct, optionally optimize, then post-process.
func (e *Engine) Schedule(ctx context.Context, req model.ScheduleRequest) (*model.Schedule, error) {
	r, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("preprocess complete",
		"tasks", len(r.tasks),
		"resources", len(r.index.IDs()),
		"hard_constraints", len(r.constraints.hard),
		"soft_constraints", len(r.constraints.soft))

	sched, err := r.construct(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("construction complete",
		"scheduled", len(sched.Slots),
		"unscheduled", len(sched.UnscheduledTasks),
		"score", sched.OptimizationScore)

	iterations := 0
	if budget := r.iterationBudget(); budget > 0 {
		sched, iterations = r.optimize(ctx, sched, budget)
	}

	r.finish(sched, iterations)
	e.logger.Info("schedule computed",
		"id", sched.ID,
		"algorithm", sched.Metadata.Algorithm,
		"scheduled", len(sched.Slots),
		"unscheduled", len(sched.UnscheduledTasks),
		"score", sched.OptimizationScore,
		"iterations", iterations,
		"duration_ms", sched.Metadata.ComputationTimeMs)
	return sched, nil
}

// Optimize re-enters the annealing pass for an existing schedule built from
// req. The input schedule is not modified; a new schedule is returned whose
// score is never below the input's.
func (e *Engine) Optimize(ctx context.Context, req model.ScheduleRequest, s *model.Schedule) (*model.Schedule, error) {
	r, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.checkCoverage(s); err != nil {
		return nil, err
	}

	sched := s.Clone()
	sched.ResourceCapacity = r.index.Capacities()
	r.annotate(sched)
	sched.OptimizationScore = ScoreSchedule(sched)

	iterations := r.opts.OptimizationIterations
	sched, performed := r.optimize(ctx, sched, iterations)

	algorithm := s.Metadata.Algorithm
	previous := s.Metadata.IterationsPerformed
	r.finish(sched, previous+performed)
	if algorithm != "" {
		sched.Metadata.Algorithm = algorithm
	}
	sched.ID = s.ID
	if sched.ID == "" {
		sched.ID = newScheduleID()
	}
	e.logger.Info("schedule optimized",
		"id", sched.ID,
		"before", s.OptimizationScore,
		"after", sched.OptimizationScore,
		"iterations", performed)
	return sched, nil
}

// prepare validates the request and builds the graph, availability index,
// constraint set and construction order.
func (e *Engine) prepare(ctx context.Context, req model.ScheduleRequest) (*run, error) {
	opts := req.Options.WithDefaults()
	if !opts.Algorithm.IsValid() {
		return nil, newError(ErrInvalidOptions, "unknown algorithm %q", opts.Algorithm)
	}
	if !req.TimeRange.End.After(req.TimeRange.Start) {
		return nil, newError(ErrInvalidTimeRange, "end %s is not after start %s",
			req.TimeRange.End.Format(time.RFC3339), req.TimeRange.Start.Format(time.RFC3339))
	}

	r := &run{
		logger:  e.logger,
		clock:   e.clock,
		started: e.clock.Now(),
		workers: e.workers,
		opts:    opts,
		tr:      req.TimeRange,
		loc:     req.TimeRange.Start.Location(),
	}
	r.granularity = time.Duration(opts.SlotGranularityMinutes) * time.Minute
	if e.seed != nil {
		r.seed = *e.seed
	} else {
		r.seed = uint64(r.started.UnixNano())
	}
	r.rng = rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15))

	tasks, taskIdx, err := normalizeTasks(req.Tasks)
	if err != nil {
		return nil, err
	}
	r.tasks, r.taskIdx = tasks, taskIdx

	if r.graph, err = BuildDependencyGraph(r.tasks); err != nil {
		return nil, err
	}
	if r.index, err = BuildAvailabilityIndex(req.Resources, r.loc); err != nil {
		return nil, err
	}
	if r.constraints, err = compileConstraints(req.Constraints, opts.SoftConstraintWeights, r.graph, r.tr, r.loc); err != nil {
		return nil, err
	}
	r.constraints.ctx = ctx
	r.bindLookahead()
	r.ranked = RankTasks(r.tasks, r.graph, r.tr, r.started)
	return r, nil
}

// normalizeTasks copies tasks, rejecting empty or duplicate IDs and
// non-positive durations, and clamps priorities into 1-10.
func normalizeTasks(in []model.Task) ([]model.Task, map[string]int, error) {
	tasks := make([]model.Task, len(in))
	idx := make(map[string]int, len(in))
	for i, t := range in {
		if t.ID == "" {
			return nil, nil, newError(ErrInvalidTask, "task at index %d has no id", i)
		}
		if _, dup := idx[t.ID]; dup {
			return nil, nil, newError(ErrInvalidTask, "duplicate task %s", t.ID)
		}
		if t.Duration <= 0 {
			return nil, nil, newError(ErrInvalidTask, "task %s has non-positive duration %d", t.ID, t.Duration)
		}
		t.Priority = min(max(t.Priority, 1), 10)
		tasks[i] = t
		idx[t.ID] = i
	}
	return tasks, idx, nil
}

// checkCoverage verifies that a schedule handed back for re-optimization
// covers exactly the request's tasks.
func (r *run) checkCoverage(s *model.Schedule) error {
	seen := make(map[string]bool, len(r.tasks))
	mark := func(id string) error {
		if _, ok := r.taskIdx[id]; !ok {
			return newError(ErrInvalidTask, "schedule references unknown task %s", id)
		}
		if seen[id] {
			return newError(ErrInvalidTask, "schedule lists task %s twice", id)
		}
		seen[id] = true
		return nil
	}
	for _, slot := range s.Slots {
		if err := mark(slot.TaskID); err != nil {
			return err
		}
	}
	for _, id := range s.UnscheduledTasks {
		if err := mark(id); err != nil {
			return err
		}
	}
	if len(seen) != len(r.tasks) {
		return newError(ErrInvalidTask, "schedule covers %d of %d tasks", len(seen), len(r.tasks))
	}
	return nil
}

// iterationBudget returns how many annealing iterations the algorithm gets.
func (r *run) iterationBudget() int {
	switch r.opts.Algorithm {
	case model.AlgorithmOptimal:
		return r.opts.OptimizationIterations
	case model.AlgorithmBalanced:
		return max(r.opts.OptimizationIterations/2, 1)
	default:
		return 0
	}
}

// budgetExceeded reports whether the wall-clock budget of the run is spent.
func (r *run) budgetExceeded() bool {
	budget := time.Duration(r.opts.MaxComputationTimeMs) * time.Millisecond
	return r.clock.Now().Sub(r.started) >= budget
}

// finish post-processes the schedule: buffer annotations, the final
// validation pass and metadata.
func (r *run) finish(s *model.Schedule, iterations int) {
	sort.SliceStable(s.Slots, func(i, j int) bool {
		if !s.Slots[i].Start.Equal(s.Slots[j].Start) {
			return s.Slots[i].Start.Before(s.Slots[j].Start)
		}
		return s.Slots[i].TaskID < s.Slots[j].TaskID
	})
	annotateBuffers(s, time.Duration(r.opts.BufferTimeMinutesDefault)*time.Minute)

	report := ValidateSchedule(s)
	if !report.IsValid {
		r.logger.Warn("final validation found violations", "count", len(report.Violations))
	}
	s.OptimizationScore = report.Score

	now := r.clock.Now()
	s.Metadata = model.ScheduleMetadata{
		GeneratedAt:         now,
		Algorithm:           r.opts.Algorithm,
		ComputationTimeMs:   now.Sub(r.started).Milliseconds(),
		IterationsPerformed: iterations,
		Seed:                r.seed,
	}
	if s.ID == "" {
		s.ID = newScheduleID()
	}
}

func newScheduleID() string {
	return "sch_" + uuid.New().String()
}
