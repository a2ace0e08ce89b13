package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Call is one recorded command invocation.
type Call struct {
	Name string
	Args []string
}

// Joined returns the args separated by spaces.
func (c Call) Joined() string { return strings.Join(c.Args, " ") }

// Output returns the final argument, which ffmpeg-style tools treat as the
// output path.
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// CommandRecorder is a concurrency-safe fake command runner. By default it
// creates the final argument as a file so callers that stat their outputs
// succeed.
type CommandRecorder struct {
	mu    sync.Mutex
	calls []Call
	// Fail returns a non-nil error to make a call fail.
	Fail func(call Call) error
	// SkipOutput disables writing the final argument.
	SkipOutput bool
}

// Run implements the func(ctx, name, args...) error runner signature.
func (r *CommandRecorder) Run(ctx context.Context, name string, args ...string) error {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	fail := r.Fail
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fail != nil {
		if err := fail(call); err != nil {
			return err
		}
	}
	if r.SkipOutput {
		return nil
	}
	out := call.Output()
	if out == "" || strings.HasPrefix(out, "-") || !filepath.IsAbs(out) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte("RIFF"+name), 0o644)
}

// Calls returns a snapshot of the recorded calls.
func (r *CommandRecorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsMatching returns calls whose joined args contain fragment.
func (r *CommandRecorder) CallsMatching(fragment string) []Call {
	var out []Call
	for _, call := range r.Calls() {
		if strings.Contains(call.Joined(), fragment) {
			out = append(out, call)
		}
	}
	return out
}
