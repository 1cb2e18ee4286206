package sandbox

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps a goja VM with security controls. Each sandbox owns one
// runtime for its whole life; runtimes are never recycled between sandboxes.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// engine stays set after Close so Interrupt never needs mu
	engine  *goja.Runtime
	stopped atomic.Bool

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// window.addEventListener('message', fn) registrations
	messageHandlers []goja.Callable
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	r := &Runtime{
		vm:      vm,
		engine:  vm,
		config:  config,
		console: []LogEntry{},
	}

	if config.MaxMemoryMB > 0 {
		vm.SetMaxCallStackSize(1024)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	return r, nil
}

// Execute runs a script under the configured timeout. name labels the
// script in stack traces and console entries.
func (r *Runtime) Execute(ctx context.Context, name, script string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vm := r.vm
	if vm == nil || r.stopped.Load() {
		return nil, ErrRuntimeClosed
	}

	start := time.Now()
	mark := r.consoleLen()

	err := r.guard(ctx, vm, func() error {
		_, err := vm.RunScript(name, script)
		return err
	})

	if err != nil {
		r.log("error", err.Error(), name)
	}

	result := &Result{
		Console:  r.consoleSince(mark),
		Duration: time.Since(start),
		Error:    err,
	}
	return result, err
}

// Evaluate runs an expression and exports its value
func (r *Runtime) Evaluate(ctx context.Context, expr string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vm := r.vm
	if vm == nil || r.stopped.Load() {
		return nil, ErrRuntimeClosed
	}

	var val goja.Value
	err := r.guard(ctx, vm, func() error {
		var err error
		val, err = vm.RunString(expr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return exportValue(val), nil
}

// DispatchMessage delivers data to every registered message listener and to
// window.onmessage, in that order.
func (r *Runtime) DispatchMessage(ctx context.Context, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vm := r.vm
	if vm == nil || r.stopped.Load() {
		return ErrRuntimeClosed
	}

	handlers := append([]goja.Callable{}, r.messageHandlers...)
	if fn, ok := goja.AssertFunction(vm.Get("onmessage")); ok {
		handlers = append(handlers, fn)
	}
	if len(handlers) == 0 {
		return nil
	}

	event := vm.NewObject()
	event.Set("type", "message")
	event.Set("data", data)

	return r.guard(ctx, vm, func() error {
		for _, fn := range handlers {
			if _, err := fn(goja.Undefined(), event); err != nil {
				r.log("error", err.Error(), "message")
			}
		}
		return nil
	})
}

// Set exposes a Go value as a global
func (r *Runtime) Set(name string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrRuntimeClosed
	}
	return r.vm.Set(name, value)
}

// Console returns every captured console entry
func (r *Runtime) Console() []LogEntry {
	return r.consoleSince(0)
}

// guard runs fn with timeout and cancellation wired to vm.Interrupt. The
// watcher goroutine has exited before the interrupt flag is cleared, so a
// late timer cannot leak into the next run.
func (r *Runtime) guard(ctx context.Context, vm *goja.Runtime, fn func() error) error {
	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timeout:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	err := fn()

	close(stop)
	<-exited
	vm.ClearInterrupt()

	return err
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	global := r.vm.GlobalObject()
	r.vm.Set("window", global)
	r.vm.Set("self", global)
	r.vm.Set("addEventListener", r.addEventListener)

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		r.vm.Set("console", console)
	}

	// Setup timers (no-op for security)
	noop := func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)
	r.vm.Set("clearTimeout", noop)
	r.vm.Set("clearInterval", noop)
	r.vm.Set("requestAnimationFrame", noop)

	return nil
}

// addEventListener records message listeners; other event types are
// accepted and ignored since nothing dispatches them.
func (r *Runtime) addEventListener(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 || call.Argument(0).String() != "message" {
		return goja.Undefined()
	}
	if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
		r.messageHandlers = append(r.messageHandlers, fn)
	}
	return goja.Undefined()
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.log(level, strings.Join(parts, " "), "")
		return goja.Undefined()
	}
}

func (r *Runtime) log(level, msg, source string) {
	if !r.config.EnableConsole {
		return
	}
	r.consoleMu.Lock()
	r.console = append(r.console, LogEntry{
		Level:   level,
		Message: msg,
		Source:  source,
		Time:    time.Now(),
	})
	r.consoleMu.Unlock()
}

func (r *Runtime) consoleLen() int {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return len(r.console)
}

func (r *Runtime) consoleSince(mark int) []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	if mark > len(r.console) {
		mark = len(r.console)
	}
	return append([]LogEntry{}, r.console[mark:]...)
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Interrupt aborts the running script, if any, and refuses every later
// one. It does not wait for the script to return.
func (r *Runtime) Interrupt() {
	if r.stopped.CompareAndSwap(false, true) {
		r.engine.Interrupt("runtime closed")
	}
}

// Close interrupts any running script, then releases the VM
func (r *Runtime) Close() error {
	r.Interrupt()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.messageHandlers = nil
	return nil
}
