package engine

import (
	"slices"
	"time"

	"github.com/me/slotwise/pkg/model"
)

// feasible reports whether a proposal passes every hard check: each booked
// resource is available and below its concurrent capacity, and every hard
// constraint record holds. The resource checks apply whether or not a
// matching constraint record was supplied.
func (r *run) feasible(sc *slotContext) bool {
	for _, id := range sc.resources {
		if !r.index.Available(id, sc.start, sc.end) {
			return false
		}
		if countConcurrent(sc.others, id, sc.start, sc.end) >= r.index.Capacity(id) {
			return false
		}
	}
	return r.constraints.hardOK(sc)
}

// resourceChoices lists the resource sets a task may be booked with, most
// preferred first. Required resources are always included; one optional
// resource is added when the task names any. A task naming no resources at
// all draws one from the whole pool.
func (r *run) resourceChoices(ti int) [][]string {
	t := &r.tasks[ti]
	var choices [][]string

	pool := r.eligiblePool(ti)
	for _, id := range pool {
		choice := append(append([]string(nil), t.RequiredResources...), id)
		choices = append(choices, choice)
	}
	if len(t.RequiredResources) > 0 || len(choices) == 0 {
		choices = append(choices, append([]string(nil), t.RequiredResources...))
	}
	return choices
}

// eligiblePool returns the non-required resources a task may use.
func (r *run) eligiblePool(ti int) []string {
	t := &r.tasks[ti]
	var pool []string
	switch {
	case len(t.OptionalResources) > 0:
		for _, id := range t.OptionalResources {
			if !t.Requires(id) && !slices.Contains(pool, id) {
				pool = append(pool, id)
			}
		}
	case len(t.RequiredResources) == 0:
		pool = append(pool, r.index.IDs()...)
	}
	return pool
}

// bindLookahead prepares every dependency constraint with the earliest
// finish of each task. Construction places dependents before the tasks they
// follow, so a dependent must leave room for its unplaced predecessors.
func (r *run) bindLookahead() {
	all := append(append([]*compiledConstraint(nil), r.constraints.hard...), r.constraints.soft...)
	for _, cc := range all {
		p, ok := cc.Params.(*model.DependencyParams)
		if !ok {
			continue
		}
		cc.earliestFinish = r.earliestFinishes(time.Duration(p.MinLagMinutes) * time.Minute)
	}
}

// earliestFinishes walks the dependency graph from the roots and returns the
// end of the first candidate of each task whose resources are available and
// which starts after all its predecessors could finish. Tasks without such a
// candidate finish at the end of their window.
func (r *run) earliestFinishes(lag time.Duration) map[string]time.Time {
	out := make(map[string]time.Time, len(r.tasks))
	var visit func(ti int) time.Time
	visit = func(ti int) time.Time {
		t := &r.tasks[ti]
		if ef, ok := out[t.ID]; ok {
			return ef
		}
		lo, hi := flexWindow(t, r.tr)
		for _, pred := range r.graph.Predecessors(t.ID) {
			if ready := visit(r.taskIdx[pred]).Add(lag); ready.After(lo) {
				lo = ready
			}
		}
		ef := hi
		choices := r.resourceChoices(ti)
		for _, c := range generateCandidates(t, r.tr, r.granularity, r.loc) {
			if !c.start.Before(lo) && r.anyAvailable(choices, c.start, c.end) {
				ef = c.end
				break
			}
		}
		out[t.ID] = ef
		return ef
	}
	for i := range r.tasks {
		visit(i)
	}
	return out
}

// anyAvailable reports whether every resource of at least one choice is
// available for [start, end).
func (r *run) anyAvailable(choices [][]string, start, end time.Time) bool {
	for _, choice := range choices {
		ok := true
		for _, id := range choice {
			if !r.index.Available(id, start, end) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
