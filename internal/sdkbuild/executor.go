package sdkbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Executor runs external tools. Each child gets its own process group so a
// cancelled context takes down the whole tool tree (xcodebuild, gradle daemons).
type Executor struct {
	Context context.Context // The context to use for cancellation
	Env     []string        // Extra KEY=VALUE pairs appended to the inherited environment
}

func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// Run executes the given command, wiring up stdio and isolating the child in
// its own process group for cleanup.
func (e *Executor) Run(cmd *exec.Cmd) error {
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}

	finalCmd := exec.CommandContext(ctx, cmd.Path, cmd.Args[1:]...)
	finalCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		finalCmd.Env = cmd.Env
	} else {
		finalCmd.Env = os.Environ()
	}
	finalCmd.Env = append(finalCmd.Env, e.Env...)
	finalCmd.Stdin = cmd.Stdin
	finalCmd.Stdout = cmd.Stdout
	finalCmd.Stderr = cmd.Stderr

	finalCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := finalCmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	pgid := finalCmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	if waitErr := finalCmd.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %w", ctx.Err())
		}
		return waitErr
	}
	return nil
}

// ToolRun describes one external tool invocation belonging to a pipeline stage.
type ToolRun struct {
	Stage   string // configure, build, merge, package...
	Target  string // raw target id, empty for whole-pipeline steps
	Dir     string // working directory, created when missing
	LogPath string // output is appended here; empty sends it to stdout
	Tool    string
	Args    []string
}

// RunTool runs an external tool and reports any failure as a ToolchainError.
// A tool that is not installed fails here, before its working directory is created.
func (e *Executor) RunTool(r ToolRun) error {
	path, err := exec.LookPath(r.Tool)
	if err != nil {
		return &ToolchainError{Stage: r.Stage, Target: r.Target, Tool: r.Tool, Err: err}
	}
	if r.Dir != "" {
		if err := os.MkdirAll(r.Dir, 0o755); err != nil {
			return &ToolchainError{Stage: r.Stage, Target: r.Target, Tool: r.Tool, Err: err}
		}
	}

	var out io.Writer = os.Stdout
	if r.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(r.LogPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile, err := os.OpenFile(r.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open build log: %w", err)
		}
		defer logFile.Close()
		fmt.Fprintf(logFile, "$ %s %s\n", r.Tool, strings.Join(r.Args, " "))
		out = logFile
		if Verbose {
			out = io.MultiWriter(os.Stdout, logFile)
		}
	}

	debugf("=> [%s] %s %s (in %s)\n", r.Stage, r.Tool, strings.Join(r.Args, " "), r.Dir)

	cmd := exec.Command(path, r.Args...)
	cmd.Dir = r.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	if err := e.Run(cmd); err != nil {
		te := &ToolchainError{Stage: r.Stage, Target: r.Target, Tool: r.Tool, LogPath: r.LogPath}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		} else {
			te.Err = err
		}
		return te
	}
	return nil
}

// haveTool reports whether an executable is on PATH.
func haveTool(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
