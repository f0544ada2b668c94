package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/me/slotwise/pkg/model"
)

// workdayMinutes is the day length resource utilization is measured against.
const workdayMinutes = 8 * 60

// defaultHighPriority is the priority from which business optimization
// treats a task as high priority.
const defaultHighPriority = 7

// slotContext is one proposed placement together with the slots already
// committed around it.
type slotContext struct {
	task      *model.Task
	start     time.Time
	end       time.Time
	resources []string
	others    []model.ScheduledSlot
}

func (sc *slotContext) minutes() int {
	return int(sc.end.Sub(sc.start) / time.Minute)
}

// otherSlot returns the committed slot of a task, if any.
func (sc *slotContext) otherSlot(taskID string) *model.ScheduledSlot {
	for i := range sc.others {
		if sc.others[i].TaskID == taskID {
			return &sc.others[i]
		}
	}
	return nil
}

// compiledConstraint is a validated constraint with its clock values parsed
// and its expression compiled.
type compiledConstraint struct {
	model.Constraint

	fromMin, toMin int // parsed HH:MM bounds, -1 when unset
	rule           *ruleExpression

	// earliestFinish estimates, for dependency constraints, when each task
	// could finish at the soonest. Nil outside a scheduling run.
	earliestFinish map[string]time.Time
}

// constraintSet holds a request's constraints split by kind.
type constraintSet struct {
	hard    []*compiledConstraint
	soft    []*compiledConstraint
	weights model.SoftConstraintWeights
	graph   *DependencyGraph
	tr      model.TimeRange
	loc     *time.Location

	// ctx interrupts business-rule expressions; nil outside a scheduling run.
	ctx context.Context
}

func (cs *constraintSet) ruleContext() context.Context {
	if cs.ctx == nil {
		return context.Background()
	}
	return cs.ctx
}

// compileConstraints validates constraint records and prepares them for
// evaluation. Hard constraints must weigh exactly 1.0.
func compileConstraints(cs []model.Constraint, weights model.SoftConstraintWeights, g *DependencyGraph, tr model.TimeRange, loc *time.Location) (*constraintSet, error) {
	set := &constraintSet{weights: weights, graph: g, tr: tr, loc: loc}
	seen := make(map[string]bool, len(cs))

	for _, c := range cs {
		if c.ID != "" {
			if seen[c.ID] {
				return nil, newError(ErrInvalidConstraint, "duplicate constraint %s", c.ID)
			}
			seen[c.ID] = true
		}
		if c.Params == nil {
			p, err := model.NewParams(c.Category)
			if err != nil {
				return nil, newError(ErrInvalidConstraint, "constraint %s: %v", c.ID, err)
			}
			c.Params = p
		}
		if c.Params.Category() != c.Category {
			return nil, newError(ErrInvalidConstraint, "constraint %s: %s params given for category %s",
				c.ID, c.Params.Category(), c.Category)
		}

		cc := &compiledConstraint{Constraint: c, fromMin: -1, toMin: -1}
		if err := cc.prepare(); err != nil {
			return nil, newError(ErrInvalidConstraint, "constraint %s: %v", c.ID, err)
		}

		switch c.Kind {
		case model.ConstraintHard:
			if c.Weight != 1.0 {
				return nil, newError(ErrInvalidConstraint, "hard constraint %s has weight %g, want 1.0", c.ID, c.Weight)
			}
			set.hard = append(set.hard, cc)
		case model.ConstraintSoft:
			if c.Weight < 0 || c.Weight > 1 {
				return nil, newError(ErrInvalidConstraint, "soft constraint %s has weight %g outside [0,1]", c.ID, c.Weight)
			}
			set.soft = append(set.soft, cc)
		default:
			return nil, newError(ErrInvalidConstraint, "constraint %s has unknown kind %q", c.ID, c.Kind)
		}
	}
	return set, nil
}

func (cc *compiledConstraint) prepare() error {
	parse := func(from, to string) error {
		var err error
		if from != "" {
			if cc.fromMin, err = model.ParseClock(from); err != nil {
				return err
			}
		}
		if to != "" {
			if cc.toMin, err = model.ParseClock(to); err != nil {
				return err
			}
		}
		if cc.fromMin >= 0 && cc.toMin >= 0 && cc.toMin <= cc.fromMin {
			return fmt.Errorf("window %s-%s ends before it starts", from, to)
		}
		return nil
	}

	switch p := cc.Params.(type) {
	case *model.TemporalParams:
		if p.NotBefore != nil && p.NotAfter != nil && !p.NotAfter.After(*p.NotBefore) {
			return fmt.Errorf("not_after must be after not_before")
		}
		return validDays(p.ExcludedDays)
	case *model.CapacityParams:
		if p.ResourceID == "" {
			return fmt.Errorf("resource_id is required")
		}
		if p.MaxConcurrent < 0 || p.MaxDailyMinutes < 0 {
			return fmt.Errorf("limits must not be negative")
		}
	case *model.DependencyParams:
		if p.MinLagMinutes < 0 {
			return fmt.Errorf("min_lag_minutes must not be negative")
		}
	case *model.BusinessRulesParams:
		if err := parse(p.WorkStart, p.WorkEnd); err != nil {
			return err
		}
		if p.Expression != "" {
			re, err := compileRule(cc.ID, p.Expression)
			if err != nil {
				return err
			}
			cc.rule = re
		}
		return validDays(p.WorkingDays)
	case *model.TimePreferenceParams:
		if err := parse(p.PreferredStart, p.PreferredEnd); err != nil {
			return err
		}
		return validDays(p.PreferredDays)
	case *model.ResourceOptimizationParams:
		if p.MaxDailyUtilization < 0 {
			return fmt.Errorf("max_daily_utilization must not be negative")
		}
	case *model.PersonalPreferenceParams:
		if err := parse(p.NoEarlierThan, p.NoLaterThan); err != nil {
			return err
		}
		return validDays(p.AvoidDays)
	case *model.BusinessOptimizationParams:
	default:
		return fmt.Errorf("unsupported params %T", p)
	}
	return nil
}

func validDays(days []int) error {
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("day of week %d out of range", d)
		}
	}
	return nil
}

// check evaluates the constraint against a proposed placement and returns a
// description of the failure when it is not satisfied.
func (cs *constraintSet) check(cc *compiledConstraint, sc *slotContext) (bool, string) {
	day, startMin, endMin := localSpan(sc.start, sc.end, cs.loc)

	switch p := cc.Params.(type) {
	case *model.TemporalParams:
		if p.NotBefore != nil && sc.start.Before(*p.NotBefore) {
			return false, "starts before " + p.NotBefore.Format(time.RFC3339)
		}
		if p.NotAfter != nil && sc.end.After(*p.NotAfter) {
			return false, "ends after " + p.NotAfter.Format(time.RFC3339)
		}
		if slices.Contains(p.ExcludedDays, int(day)) {
			return false, "falls on excluded day " + day.String()
		}

	case *model.CapacityParams:
		if !slices.Contains(sc.resources, p.ResourceID) {
			return true, ""
		}
		if p.MaxConcurrent > 0 && cs.concurrent(sc, p.ResourceID) >= p.MaxConcurrent {
			return false, fmt.Sprintf("resource %s already has %d concurrent bookings", p.ResourceID, p.MaxConcurrent)
		}
		if p.MaxDailyMinutes > 0 {
			if used := cs.dailyMinutes(sc, p.ResourceID); used+sc.minutes() > p.MaxDailyMinutes {
				return false, fmt.Sprintf("resource %s would be booked %d minutes that day (max %d)",
					p.ResourceID, used+sc.minutes(), p.MaxDailyMinutes)
			}
		}

	case *model.DependencyParams:
		lag := time.Duration(p.MinLagMinutes) * time.Minute
		for _, pred := range cs.graph.Predecessors(sc.task.ID) {
			other := sc.otherSlot(pred)
			if other == nil {
				if ef, ok := cc.earliestFinish[pred]; ok && ef.Add(lag).After(sc.start) {
					return false, fmt.Sprintf("must leave room for %s to finish first", pred)
				}
				continue
			}
			if other.End.Add(lag).After(sc.start) {
				return false, fmt.Sprintf("must start after %s ends", pred)
			}
		}
		for _, succ := range cs.graph.Successors(sc.task.ID) {
			if other := sc.otherSlot(succ); other != nil && sc.end.Add(lag).After(other.Start) {
				return false, fmt.Sprintf("must end before %s starts", succ)
			}
		}

	case *model.BusinessRulesParams:
		if cc.fromMin >= 0 && startMin < cc.fromMin {
			return false, "starts before working hours"
		}
		if cc.toMin >= 0 && endMin > cc.toMin {
			return false, "ends after working hours"
		}
		if len(p.WorkingDays) > 0 && !slices.Contains(p.WorkingDays, int(day)) {
			return false, day.String() + " is not a working day"
		}
		if p.MaxTasksPerDay > 0 && cs.tasksOnDay(sc) >= p.MaxTasksPerDay {
			return false, fmt.Sprintf("day already has %d tasks", p.MaxTasksPerDay)
		}
		if cc.rule != nil {
			ok, err := cc.rule.Eval(cs.ruleContext(), slotValues(sc, day, startMin, endMin), taskValues(sc.task))
			if err != nil {
				return false, "rule error: " + err.Error()
			}
			if !ok {
				return false, "rule not satisfied: " + cc.rule.source
			}
		}

	case *model.TimePreferenceParams:
		if cc.fromMin >= 0 && startMin < cc.fromMin {
			return false, "starts before preferred hours"
		}
		if cc.toMin >= 0 && endMin > cc.toMin {
			return false, "ends after preferred hours"
		}
		if len(p.PreferredDays) > 0 && !slices.Contains(p.PreferredDays, int(day)) {
			return false, day.String() + " is not a preferred day"
		}

	case *model.ResourceOptimizationParams:
		if p.MaxDailyUtilization <= 0 {
			return true, ""
		}
		limit := p.MaxDailyUtilization * workdayMinutes
		for _, r := range sc.resources {
			if used := cs.dailyMinutes(sc, r); float64(used+sc.minutes()) > limit {
				return false, fmt.Sprintf("resource %s over %.0f%% daily utilization", r, p.MaxDailyUtilization*100)
			}
		}

	case *model.PersonalPreferenceParams:
		if slices.Contains(p.AvoidDays, int(day)) {
			return false, "falls on avoided day " + day.String()
		}
		if cc.fromMin >= 0 && startMin < cc.fromMin {
			return false, "starts earlier than preferred"
		}
		if cc.toMin >= 0 && endMin > cc.toMin {
			return false, "ends later than preferred"
		}

	case *model.BusinessOptimizationParams:
		threshold := p.HighPriorityThreshold
		if threshold <= 0 {
			threshold = defaultHighPriority
		}
		if p.PreferEarly && sc.task.Priority >= threshold {
			mid := cs.tr.Start.Add(cs.tr.End.Sub(cs.tr.Start) / 2)
			if sc.start.After(mid) {
				return false, "high-priority task placed in second half of range"
			}
		}
	}
	return true, ""
}

// concurrent counts committed slots on resourceID overlapping the proposal.
func (cs *constraintSet) concurrent(sc *slotContext, resourceID string) int {
	return countConcurrent(sc.others, resourceID, sc.start, sc.end)
}

func countConcurrent(slots []model.ScheduledSlot, resourceID string, start, end time.Time) int {
	n := 0
	for i := range slots {
		if slots[i].UsesResource(resourceID) && model.Overlaps(slots[i].Start, slots[i].End, start, end) {
			n++
		}
	}
	return n
}

// dailyMinutes sums committed minutes on resourceID during the proposal's day.
func (cs *constraintSet) dailyMinutes(sc *slotContext, resourceID string) int {
	day := dayKey(sc.start, cs.loc)
	total := 0
	for i := range sc.others {
		o := &sc.others[i]
		if o.UsesResource(resourceID) && dayKey(o.Start, cs.loc) == day {
			total += o.ActualDuration
		}
	}
	return total
}

func (cs *constraintSet) tasksOnDay(sc *slotContext) int {
	day := dayKey(sc.start, cs.loc)
	n := 0
	for i := range sc.others {
		if dayKey(sc.others[i].Start, cs.loc) == day {
			n++
		}
	}
	return n
}

// hardOK reports whether every hard constraint holds.
func (cs *constraintSet) hardOK(sc *slotContext) bool {
	for _, cc := range cs.hard {
		if ok, _ := cs.check(cc, sc); !ok {
			return false
		}
	}
	return true
}

// softEval returns the weighted share of soft constraints that hold, in
// [0,1], and a violation for each one that does not. With no soft
// constraints the share is 1.
func (cs *constraintSet) softEval(sc *slotContext) (float64, []model.Violation) {
	var total, satisfied float64
	var violations []model.Violation
	for _, cc := range cs.soft {
		w := cc.Weight * cs.weights.For(cc.Category)
		total += w
		ok, why := cs.check(cc, sc)
		if ok {
			satisfied += w
			continue
		}
		violations = append(violations, model.Violation{
			Type:         string(cc.Category),
			Severity:     severityFor(cc.Weight),
			Description:  fmt.Sprintf("task %s: %s", sc.task.ID, why),
			ConstraintID: cc.ID,
		})
	}
	if total == 0 {
		if len(violations) > 0 {
			return 0, violations
		}
		return 1, violations
	}
	return satisfied / total, violations
}

func severityFor(weight float64) string {
	switch {
	case weight < 0.34:
		return model.SeverityLow
	case weight < 0.67:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

// ids returns the IDs of hard and soft constraints.
func (cs *constraintSet) ids() model.ScheduleConstraints {
	out := model.ScheduleConstraints{Hard: []string{}, Soft: []string{}}
	for _, cc := range cs.hard {
		out.Hard = append(out.Hard, cc.ID)
	}
	for _, cc := range cs.soft {
		out.Soft = append(out.Soft, cc.ID)
	}
	return out
}

func slotValues(sc *slotContext, day time.Weekday, startMin, endMin int) map[string]any {
	resources := make([]any, len(sc.resources))
	for i, id := range sc.resources {
		resources[i] = id
	}
	return map[string]any{
		"start":       sc.start.Format(time.RFC3339),
		"end":         sc.end.Format(time.RFC3339),
		"day":         int(day),
		"startMinute": startMin,
		"endMinute":   endMin,
		"duration":    sc.minutes(),
		"resources":   resources,
	}
}

func taskValues(t *model.Task) map[string]any {
	return map[string]any{
		"id":       t.ID,
		"priority": t.Priority,
		"duration": t.Duration,
	}
}
