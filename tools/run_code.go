package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const (
	RunCodeToolName        = "run_code"
	RunCodeToolDescription = "Use this to execute JavaScript code and do math. If you want to see the output of a value, you should print it out with `console.log(...)`. This is visible to the user."
	DefaultCodeTimeout     = 10 * time.Second
)

// RunCodeInput represents the input parameters for the code execution tool.
type RunCodeInput struct {
	Code string `json:"code" jsonschema_description:"The JavaScript code to execute. Print results with console.log(...)." jsonschema:"required"`
}

// CodeRunner executes snippets in a fresh goja runtime per call. Nothing
// but console.log/print is exposed to the script.
type CodeRunner struct {
	timeout time.Duration
}

func NewCodeRunner(timeout time.Duration) *CodeRunner {
	if timeout <= 0 {
		timeout = DefaultCodeTimeout
	}
	return &CodeRunner{timeout: timeout}
}

// RunCode is the tool handler exposed to the coder. Execution faults are
// reported in the returned text and never as an error.
func (r *CodeRunner) RunCode(ctx context.Context, input RunCodeInput) (string, error) {
	stdout, err := r.Execute(ctx, input.Code)
	if err != nil {
		return fmt.Sprintf("Failed to execute. Error: %v", err), nil
	}
	return fmt.Sprintf("Successfully executed:\n```javascript\n%s\n```\nStdout: %s", input.Code, stdout), nil
}

// Execute runs code and returns everything it printed.
func (r *CodeRunner) Execute(ctx context.Context, code string) (stdout string, err error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("no code given")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vm := goja.New()
	var out strings.Builder
	printer := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = formatValue(vm, arg)
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteString("\n")
		return goja.Undefined()
	}
	console := vm.NewObject()
	if err := console.Set("log", printer); err != nil {
		return "", err
	}
	if err := vm.Set("console", console); err != nil {
		return "", err
	}
	if err := vm.Set("print", printer); err != nil {
		return "", err
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if _, err := vm.RunString(code); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return out.String(), fmt.Errorf("execution interrupted: %v", interrupted.Value())
		}
		return out.String(), err
	}
	return out.String(), nil
}

func formatValue(vm *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() != "Function" {
		stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
		if ok {
			if s, err := stringify(goja.Undefined(), v); err == nil && !goja.IsUndefined(s) {
				return s.String()
			}
		}
	}
	return v.String()
}
