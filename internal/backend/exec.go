package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

// ExecBackend runs each task by launching the resource's agent command as a
// child process. The task entry, device address, params, and pipeline
// overrides are passed as a JSON document on stdin; the process exit status
// maps to the task outcome. Abort kills the process group so Python agents
// that spawn helpers do not outlive the run.
type ExecBackend struct{}

// NewExecBackend creates a process-backed backend.
func NewExecBackend() *ExecBackend {
	return &ExecBackend{}
}

// taskPayload is the JSON document handed to the agent process.
type taskPayload struct {
	RunID     string                    `json:"run_id"`
	Device    string                    `json:"device"`
	Address   string                    `json:"address,omitempty"`
	Task      string                    `json:"task"`
	Entry     string                    `json:"entry"`
	Params    map[string]any            `json:"params,omitempty"`
	Overrides map[string]map[string]any `json:"pipeline_overrides,omitempty"`
}

// StartTask launches the agent process for one task.
func (b *ExecBackend) StartTask(ctx context.Context, spec TaskSpec) (Handle, error) {
	if spec.AgentPath == "" {
		return nil, fmt.Errorf("%w: resource declares no agent for device %s",
			mfwerrors.ErrBackendUnavailable, spec.Device)
	}

	payload, err := json.Marshal(taskPayload{
		RunID:     spec.RunID,
		Device:    spec.Device,
		Address:   spec.Address,
		Task:      spec.TaskName,
		Entry:     spec.Entry,
		Params:    spec.Params,
		Overrides: spec.Overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding task payload: %w", err)
	}

	args := append([]string{}, spec.AgentArgs...)
	args = append(args, "--entry", spec.Entry)

	// Not exec.CommandContext: only Abort may kill the process, during
	// two-phase teardown.
	cmd := exec.Command(spec.AgentPath, args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = bytes.NewReader(payload)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting agent %s: %v",
			mfwerrors.ErrBackendUnavailable, spec.AgentPath, err)
	}

	h := &execHandle{cmd: cmd, stderr: &stderr, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// execHandle tracks one agent process.
type execHandle struct {
	cmd     *exec.Cmd
	stderr  *strings.Builder
	done    chan struct{}
	waitErr error

	abortOnce sync.Once
	abortErr  error
}

// Await blocks until the agent process exits or the context is canceled.
func (h *execHandle) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, context.Cause(ctx)
	case <-h.done:
	}

	if h.waitErr == nil {
		return Outcome{Status: StatusSucceeded}, nil
	}

	detail := strings.TrimSpace(h.stderr.String())
	if detail == "" {
		detail = h.waitErr.Error()
	}
	var exitErr *exec.ExitError
	if mfwerrors.As(h.waitErr, &exitErr) {
		return Outcome{Status: StatusFailed, Detail: detail}, nil
	}
	return Outcome{}, h.waitErr
}

// Abort kills the agent's process group. Safe to call more than once and
// after the process has already exited.
func (h *execHandle) Abort() error {
	h.abortOnce.Do(func() {
		select {
		case <-h.done:
			// Already exited; nothing to kill.
			return
		default:
		}
		h.abortErr = killProcessGroup(h.cmd)
	})
	return h.abortErr
}
