package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ruleTimeout bounds a single predicate evaluation.
const ruleTimeout = 250 * time.Millisecond

var errRuleTimeout = errors.New("rule evaluation timed out")

// ruleExpression is a compiled JavaScript predicate from a business rule.
// The program is shared; every evaluation gets its own runtime so no state
// carries over from one candidate to the next.
type ruleExpression struct {
	source  string
	program *goja.Program
}

// compileRule compiles a boolean JavaScript expression such as
// `slot.startMinute >= 600 && task.priority > 3`.
func compileRule(name, source string) (*ruleExpression, error) {
	prog, err := goja.Compile(name, "("+source+")", true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &ruleExpression{source: source, program: prog}, nil
}

// Eval runs the predicate with `slot` and `task` bound. Anything other than
// a boolean true, including a runtime error, fails the rule. The evaluation
// is interrupted when ctx ends or after ruleTimeout.
func (re *ruleExpression) Eval(ctx context.Context, slot, task map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()
	timer := time.AfterFunc(ruleTimeout, func() { vm.Interrupt(errRuleTimeout) })
	defer timer.Stop()

	if err := vm.Set("slot", slot); err != nil {
		return false, fmt.Errorf("set slot: %w", err)
	}
	if err := vm.Set("task", task); err != nil {
		return false, fmt.Errorf("set task: %w", err)
	}
	val, err := vm.RunProgram(re.program)
	if err != nil {
		return false, err
	}
	ok, isBool := val.Export().(bool)
	return isBool && ok, nil
}
