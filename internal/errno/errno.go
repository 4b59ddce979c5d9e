// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errno maps master-protocol status codes to POSIX errno values and
// classifies failures into the validation/transient/fatal taxonomy every
// cache component reports through.
package errno

import "syscall"

// MasterStatus is the wire status code a master RPC reply carries. Its
// concrete values come from the (out-of-scope) master protocol codec; this
// package only needs the subset that the fixed mapping table below names.
type MasterStatus int

// Master status codes this mount must translate, per spec.md §4.8/§6. The
// full master protocol defines many more; codes this mount never produces
// locally (and so never needs to map) are left out rather than guessed.
const (
	StatusOK MasterStatus = iota
	StatusEPERM
	StatusENOTDIR
	StatusENOENT
	StatusEACCES
	StatusEEXIST
	StatusEINVAL
	StatusENOTEMPTY
	StatusIO
	StatusEROFS
	StatusQUOTA
	StatusCHUNKLOST
	StatusNOCHUNKSERVERS
	StatusNOTSUP
	StatusLOCKED
	StatusEAGAIN
	StatusCSNOTPRESENT
	StatusENAMETOOLONG
)

// table is the fixed master-status -> POSIX errno mapping. Preserved
// verbatim: tools and scripts around this mount depend on these exact
// errnos surfacing for these exact statuses.
var table = map[MasterStatus]syscall.Errno{
	StatusOK:             0,
	StatusEPERM:          syscall.EPERM,
	StatusENOTDIR:        syscall.ENOTDIR,
	StatusENOENT:         syscall.ENOENT,
	StatusEACCES:         syscall.EACCES,
	StatusEEXIST:         syscall.EEXIST,
	StatusEINVAL:         syscall.EINVAL,
	StatusENOTEMPTY:      syscall.ENOTEMPTY,
	StatusIO:             syscall.EIO,
	StatusEROFS:          syscall.EROFS,
	StatusQUOTA:          syscall.EDQUOT,
	StatusCHUNKLOST:      syscall.ENXIO,
	StatusNOCHUNKSERVERS: syscall.ENOSPC,
	StatusNOTSUP:         syscall.ENOTSUP,
	StatusLOCKED:         syscall.EAGAIN,
	StatusEAGAIN:         syscall.EAGAIN,
	StatusCSNOTPRESENT:   syscall.ENXIO,
	StatusENAMETOOLONG:   syscall.ENAMETOOLONG,
}

// ToErrno translates a master status to the POSIX errno the dispatcher must
// hand back to the kernel. An unrecognized status maps to EIO: per spec.md
// §7(d), a fatal/unrecognized session error must surface as EIO rather than
// inventing more specific local state.
func ToErrno(status MasterStatus) syscall.Errno {
	if e, ok := table[status]; ok {
		return e
	}
	return syscall.EIO
}

// IsRetryable reports whether status belongs to the transient class of
// spec.md §7(c): LOCKED and chunk-server contention are worth a capped
// backoff-retry rather than an immediate failure.
func IsRetryable(status MasterStatus) bool {
	switch status {
	case StatusLOCKED, StatusEAGAIN, StatusCSNOTPRESENT, StatusNOCHUNKSERVERS:
		return true
	default:
		return false
	}
}

// ValidationError is returned for spec.md §7(a) failures: the request is
// rejected locally, without any network round trip, because it is
// malformed on its face (name too long, offset beyond MAX_FILE_SIZE).
type ValidationError struct {
	Op  string
	Err syscall.Errno
}

func (e *ValidationError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(op string, errno syscall.Errno) *ValidationError {
	return &ValidationError{Op: op, Err: errno}
}

// TransientError is returned for spec.md §7(c) failures: the master refused
// the request for a reason a caller may reasonably retry (capped backoff).
type TransientError struct {
	Op     string
	Status MasterStatus
	Cause  error
}

func (e *TransientError) Error() string {
	msg := e.Op + ": transient master status " + ToErrno(e.Status).Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}
func (e *TransientError) Unwrap() error { return e.Cause }

func NewTransientError(op string, status MasterStatus, cause error) *TransientError {
	return &TransientError{Op: op, Status: status, Cause: cause}
}

// FatalError is returned for spec.md §7(d) failures: the session itself is
// broken (connection reset mid-RPC, protocol desync). Callers must surface
// EIO and must not invent local cache state to paper over it.
type FatalError struct {
	Op    string
	Cause error
}

func (e *FatalError) Error() string {
	if e.Cause == nil {
		return e.Op + ": fatal session error"
	}
	return e.Op + ": fatal session error: " + e.Cause.Error()
}
func (e *FatalError) Unwrap() error { return e.Cause }

func NewFatalError(op string, cause error) *FatalError {
	return &FatalError{Op: op, Cause: cause}
}

// Errno extracts the POSIX errno a dispatcher should return to the kernel
// for any error produced by this package, defaulting to EIO for anything
// else. A nil error yields 0.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch e := err.(type) {
	case *ValidationError:
		return e.Err
	case *TransientError:
		return ToErrno(e.Status)
	case *FatalError:
		return syscall.EIO
	case syscall.Errno:
		return e
	default:
		return syscall.EIO
	}
}
