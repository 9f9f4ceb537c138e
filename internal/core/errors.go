package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by a Store when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would overlap existing usage or
	// sales orders, or when the tenant watermark moved underneath the writer.
	ErrConflict = errors.New("conflict")

	// ErrSweepRunning is returned when another sweep holds the sweep lock.
	ErrSweepRunning = errors.New("usage collection already running")
)

// ValidationError is a rejected input, reported before anything is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError carries the tenant and range of a rejected write. It
// matches ErrConflict with errors.Is.
type ConflictError struct {
	TenantID string
	Start    time.Time
	End      time.Time
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict for tenant %s [%s, %s): %v",
		e.TenantID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// UpstreamError is a failure of the metering source.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
