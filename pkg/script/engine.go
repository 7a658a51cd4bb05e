// Package script runs template-supplied Starlark scripts in a hermetic
// interpreter with a small allow-listed set of modules.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultMaxSteps bounds the computation of a single script execution.
const DefaultMaxSteps uint64 = 50_000_000

type Config struct {
	// MaxSteps caps executed Starlark steps per call. Zero means DefaultMaxSteps.
	MaxSteps uint64
	// AllowedEnv lists the environment variables os.getenv may read.
	AllowedEnv []string
}

// Engine executes scripts. Every call gets a fresh thread and a fresh
// global environment, so scripts never observe each other.
type Engine struct {
	maxSteps   uint64
	allowedEnv map[string]struct{}
	logger     *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedEnv))
	for _, name := range cfg.AllowedEnv {
		allowed[name] = struct{}{}
	}

	return &Engine{
		maxSteps:   maxSteps,
		allowedEnv: allowed,
		logger:     logger.With("module", "script_engine"),
	}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

func (e *Engine) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"time": time.Module,
		"json": json.Module,
		"math": math.Module,
		"re":   reModule(),
		"path": pathModule(),
		"os":   osModule(e.allowedEnv),
	}
}

// Execute loads source, then calls entryPoint with args converted to Starlark values.
// A *DataSource argument is bound to ctx so its queries honor cancellation.
func (e *Engine) Execute(ctx context.Context, source, entryPoint string, args ...any) (Result, error) {
	thread := &starlark.Thread{
		Name: entryPoint,
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.InfoContext(ctx, "Script output", "entry_point", entryPoint, "message", msg)
		},
	}
	thread.SetMaxExecutionSteps(e.maxSteps)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "template_script", source, e.predeclared())
	if err != nil {
		return Result{}, fmt.Errorf("failed to load script: %w", err)
	}

	fn, ok := globals[entryPoint].(starlark.Callable)
	if !ok {
		return Result{}, &EntryPointMissingError{Name: entryPoint}
	}

	callArgs := make(starlark.Tuple, 0, len(args))

	for i, arg := range args {
		if binder, ok := arg.(interface {
			Bind(ctx context.Context) starlark.Value
		}); ok {
			callArgs = append(callArgs, binder.Bind(ctx))

			continue
		}

		value, err := ToStarlark(arg)
		if err != nil {
			return Result{}, fmt.Errorf("argument %d: %w", i, err)
		}

		callArgs = append(callArgs, value)
	}

	value, err := starlark.Call(thread, fn, callArgs, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%s failed: %w", entryPoint, err)
	}

	return Result{value: value}, nil
}

// Backtrace returns the Starlark call stack of a script failure, or "" for other errors.
func Backtrace(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}

	return ""
}

// Result is the value returned by a script entry point.
type Result struct {
	value starlark.Value
}

// Truth applies Starlark truthiness. An empty result is false.
func (r Result) Truth() bool {
	if r.value == nil {
		return false
	}

	return bool(r.value.Truth())
}

// Mapping returns the result as a Go map when the script returned a dict with string keys.
func (r Result) Mapping() (map[string]any, bool) {
	dict, ok := r.value.(*starlark.Dict)
	if !ok {
		return nil, false
	}

	converted, err := FromStarlark(dict)
	if err != nil {
		return nil, false
	}

	mapping, ok := converted.(map[string]any)

	return mapping, ok
}

// Value returns the result converted to plain Go values.
func (r Result) Value() any {
	if r.value == nil {
		return nil
	}

	converted, err := FromStarlark(r.value)
	if err != nil {
		return r.value.String()
	}

	return converted
}
