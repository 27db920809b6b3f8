package core

import (
	"fmt"
	"strings"
)

// FileError is returned when a local file cannot be opened or read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// DigestError is returned when a file's sha256 digest doesn't match the expected one.
type DigestError struct {
	Path string
	Want string
	Got  string
}

func (e *DigestError) Error() string {
	return fmt.Sprintf("validation error for file %s: expected %q, got %q", e.Path, e.Want, e.Got)
}

// DownloadError is returned when a remote file cannot be fetched.
// StatusCode is zero when no HTTP response was received.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("downloading %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// VerificationError is returned when the provenance of an artifact could not be verified.
// ExitCode is -1 when the verifier was never run.
type VerificationError struct {
	ExitCode int
	Stderr   string
	Reason   string
	Err      error
}

func (e *VerificationError) Error() string {
	var msg string
	switch {
	case e.Reason != "":
		msg = e.Reason
	case e.Err != nil:
		msg = e.Err.Error()
	default:
		msg = fmt.Sprintf("slsa-verifier exited %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return "failed to verify binary provenance: " + msg
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ScanError is returned when the repository root can't be resolved or the
// todos scanner fails or produces unparsable output.
type ScanError struct {
	Command  string
	ExitCode int
	Stderr   string
	Reason   string
	Err      error
}

func (e *ScanError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exited %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
