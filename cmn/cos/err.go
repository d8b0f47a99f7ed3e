// Package cos provides common low-level types and utilities shared by every
// dstore package: typed errors, small multi-error aggregation.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"sync"
	ratomic "sync/atomic"

	pkgerrors "github.com/pkg/errors"
)

type (
	// ErrNotFound is returned by get/delete/stat/get_all when the key is absent.
	ErrNotFound struct {
		what string
	}
	// ErrInvalidValueType is the "programmer-error" kind from put: the value
	// passed to Put was not one of the five accepted shapes.
	ErrInvalidValueType struct {
		got string
	}
	// Errs aggregates up to maxErrs distinct errors, used by teardown paths
	// that must close several resources without masking the first failure.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

var (
	// ErrClosedResource: operation attempted after aclose.
	ErrClosedResource = errors.New("closed resource")
	// ErrBrokenResource: a side sender (or the underlying stream) failed unexpectedly.
	ErrBrokenResource = errors.New("broken resource")
	// ErrWouldBlock: a non-blocking path has no data, or could not acquire its lock.
	ErrWouldBlock = errors.New("would block")
	// ErrEndOfChannel: upstream object channel is drained.
	ErrEndOfChannel = errors.New("end of channel")
	// ErrTeeBusy: StartTaskSoon could not acquire the tee's lock non-blockingly.
	ErrTeeBusy = errors.New("tee busy")
)

func NewErrNotFound(what string) *ErrNotFound {
	return &ErrNotFound{what}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func NewErrInvalidValueType(got string) *ErrInvalidValueType {
	return &ErrInvalidValueType{got: got}
}

func (e *ErrInvalidValueType) Error() string {
	return fmt.Sprintf("put: %s is not a valid source value (must be RStream, channel, func, iterator, or []byte)", e.got)
}

func IsErrInvalidValueType(err error) bool {
	var e *ErrInvalidValueType
	return errors.As(err, &e)
}

// WrapInternal wraps a backend- or provider-specific failure as the
// "internal" error kind: surfaced to the caller verbatim, but
// carrying a stack trace via pkg/errors so the failure can be diagnosed
// without the core itself ever inspecting it.
func WrapInternal(err error, what string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, "internal: %s", what)
}

const maxErrs = 4

// Add records err unless an equal error was already recorded, or the
// aggregator is already at capacity (oldest-first, first error always kept).
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

// Err returns the first recorded error (nil if none), wrapping the count of
// additional recorded errors into the message. Duplicates and errors added
// after maxErrs were reached are not recorded and not counted.
func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	first := e.errs[0]
	if len(e.errs) == 1 {
		return first
	}
	return fmt.Errorf("%w (and %d more error%s)", first, len(e.errs)-1, plural(len(e.errs)-1))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
