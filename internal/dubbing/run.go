package dubbing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"dubber/internal/logging"
	"dubber/internal/services"
)

// WorkspacePrefix names run workspaces inside the work directory.
const WorkspacePrefix = "dubber-"

// Run is the per-run context: a unique id plus the workspace that owns
// every temporary file the run creates.
type Run struct {
	ID        string
	Workspace string
	// SourceAudio is the canonical audio extracted from the input.
	SourceAudio string

	keep      bool
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewRun creates a run with a fresh workspace under workDir. When keep is
// set, Close leaves the workspace on disk.
func NewRun(workDir string, keep bool, logger *slog.Logger) (*Run, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "run", "create workspace", "Work directory is required", nil)
	}
	id := uuid.NewString()
	workspace := filepath.Join(workDir, WorkspacePrefix+id)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "create workspace", "Failed to create run workspace", err)
	}
	return &Run{
		ID:        id,
		Workspace: workspace,
		keep:      keep,
		logger:    logging.NewComponentLogger(logger, "run"),
	}, nil
}

// Path joins name onto the workspace.
func (r *Run) Path(name ...string) string {
	return filepath.Join(append([]string{r.Workspace}, name...)...)
}

// ClipPath is where the rendered clip for interval index lives.
func (r *Run) ClipPath(index int) string {
	return r.Path("clips", fmt.Sprintf("%06d.wav", index))
}

// IntervalDir creates and returns the scratch directory for interval index.
func (r *Run) IntervalDir(index int) (string, error) {
	dir := r.Path("intervals", fmt.Sprintf("%06d", index))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Context tags ctx with the run id.
func (r *Run) Context(ctx context.Context) context.Context {
	return services.WithRunID(ctx, r.ID)
}

// Close removes the workspace unless the run was created with keep. It is
// safe to call more than once; removal failures are logged and returned.
func (r *Run) Close() error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		if r.keep {
			r.logger.Info("workspace kept",
				logging.String("workspace", r.Workspace),
				logging.String(logging.FieldEventType, "workspace_kept"),
			)
			return
		}
		if err := os.RemoveAll(r.Workspace); err != nil {
			r.closeErr = err
			logging.WarnWithContext(r.logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("workspace", r.Workspace),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the directory manually or let retention prune it"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	})
	return r.closeErr
}
