package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// ScriptWorker runs an inference script through an external interpreter,
// passing the serialized request as the single script argument.
type ScriptWorker struct {
	interpreter string
	scriptPath  string
}

var _ providers.InferenceWorker = (*ScriptWorker)(nil)

// NewScriptWorker creates a worker for the given interpreter and script.
// The script must exist and be readable at construction time.
func NewScriptWorker(interpreter, scriptPath string) (*ScriptWorker, error) {
	if interpreter == "" {
		return nil, errors.New("worker interpreter is required")
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("worker script %s not accessible: %w", scriptPath, err)
	}
	return &ScriptWorker{interpreter: interpreter, scriptPath: scriptPath}, nil
}

// Run executes the script with payload as its argument, capturing stdout
// and stderr separately. The process is killed once the timeout elapses.
// A non-zero exit status is reported through WorkerOutput rather than an
// error; errors are reserved for spawn failures and timeouts.
func (w *ScriptWorker) Run(ctx context.Context, payload []byte, timeout time.Duration) (*providers.WorkerOutput, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, w.interpreter, w.scriptPath, string(payload))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("worker timed out after %s: %w", timeout, context.DeadlineExceeded)
	}

	output := &providers.WorkerOutput{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			output.ExitCode = exitErr.ExitCode()
			return output, nil
		}
		return nil, fmt.Errorf("failed to run worker %s: %w", w.scriptPath, err)
	}

	return output, nil
}
