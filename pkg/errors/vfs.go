package errors

import stderrors "errors"

// VFS-facing constructors. Every storage backend and the virtual filesystem
// facade return one of these so that routes can map them 1:1 onto an HTTP
// status via GetDefaultHTTPStatus (see spec §7).

// NotFound reports a missing path or adapter instance.
func NotFound(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSNotFound, message).WithComponent(component)
}

// InvalidArgument reports a malformed request: a bad range header, a
// non-file target for a file operation, or a cross-adapter move.
func InvalidArgument(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSInvalidArgument, message).WithComponent(component)
}

// IsADirectory reports a file operation attempted against a directory.
func IsADirectory(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSIsADirectory, message).WithComponent(component)
}

// NotADirectory reports a directory operation attempted against a file.
func NotADirectory(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSNotADirectory, message).WithComponent(component)
}

// AlreadyExists reports a refused overwrite or a race lost after a
// pre-existence check.
func AlreadyExists(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSAlreadyExists, message).WithComponent(component)
}

// RangeNotSatisfiable reports a byte range past end-of-file.
func RangeNotSatisfiable(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSRangeNotSatisfiable, message).WithComponent(component)
}

// Expired reports an expired temp link or share.
func Expired(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSExpired, message).WithComponent(component)
}

// Invalid reports a temp link that failed signature verification.
func Invalid(component, message string) *ObjectFSError {
	return NewError(ErrCodeVFSInvalidArgument, message).WithComponent(component)
}

// UpstreamError reports a non-retryable error surfaced by a remote backend.
func UpstreamError(component, operation string, status int, detail string) *ObjectFSError {
	return NewError(ErrCodeVFSUpstreamError, detail).
		WithComponent(component).
		WithOperation(operation).
		WithDetail("upstream_status", status)
}

// NotImplemented reports a capability the adapter does not support.
func NotImplemented(component, operation string) *ObjectFSError {
	return NewError(ErrCodeVFSNotImplemented, operation+" is not implemented").
		WithComponent(component).
		WithOperation(operation)
}

// IsNotFound reports whether err (or a wrapped cause) is a VFS NotFound error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeVFSNotFound)
}

// IsAlreadyExists reports whether err is a VFS AlreadyExists error.
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeVFSAlreadyExists)
}

// IsNotImplemented reports whether err is a VFS NotImplemented error.
func IsNotImplemented(err error) bool {
	return hasCode(err, ErrCodeVFSNotImplemented)
}

func hasCode(err error, code ErrorCode) bool {
	var ofsErr *ObjectFSError
	if stderrors.As(err, &ofsErr) {
		return ofsErr.Code == code
	}
	return false
}
