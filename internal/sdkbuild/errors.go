package sdkbuild

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every pipeline failure wraps exactly one of these.
var (
	ErrResolution = errors.New("target resolution failed")
	ErrToolchain  = errors.New("toolchain step failed")
	ErrMerge      = errors.New("artifact merge failed")
	ErrIntegrity  = errors.New("integrity check failed")
)

// UnknownTargetError reports a raw target id missing from the lookup tables.
type UnknownTargetError struct {
	Platform  string
	ID        string
	Supported []string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("%s: unknown %s target %q (supported: %s)",
		ErrResolution, e.Platform, e.ID, strings.Join(e.Supported, ", "))
}

func (e *UnknownTargetError) Unwrap() error { return ErrResolution }

// ToolchainError reports an external tool that could not be started or exited non-zero.
type ToolchainError struct {
	Stage    string
	Target   string
	Tool     string
	ExitCode int
	LogPath  string
	Err      error
}

func (e *ToolchainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrToolchain, e.Stage)
	if e.Target != "" {
		fmt.Fprintf(&b, " [%s]", e.Target)
	}
	fmt.Fprintf(&b, ": %s", e.Tool)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.LogPath != "" {
		fmt.Fprintf(&b, " (log: %s)", e.LogPath)
	}
	return b.String()
}

func (e *ToolchainError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolchain}
	}
	return []error{ErrToolchain, e.Err}
}

// MergeError reports inputs that cannot be combined into one multi-architecture library.
type MergeError struct {
	Output string
	Msg    string
	Err    error
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrMerge, e.Output, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MergeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMerge}
	}
	return []error{ErrMerge, e.Err}
}

// IntegrityError reports a missing packaging input or an unverifiable artifact.
type IntegrityError struct {
	Artifact string
	Msg      string
	Err      error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrIntegrity, e.Artifact, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IntegrityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIntegrity}
	}
	return []error{ErrIntegrity, e.Err}
}

func resolutionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResolution, fmt.Sprintf(format, args...))
}
