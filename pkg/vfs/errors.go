package vfs

// ErrorCode is a POSIX-style errno tag carried by every error the core emits.
type ErrorCode int

const (
	// ENOENT indicates the requested path does not exist.
	ENOENT ErrorCode = iota
	// EEXIST indicates the target of a create/mount/link already exists.
	EEXIST
	// ENOTDIR indicates a path component that should be a directory is not.
	ENOTDIR
	// EISDIR indicates an operation expected a file but found a directory.
	EISDIR
	// ENOTEMPTY indicates rmdir/overwrite on a non-empty directory.
	ENOTEMPTY
	// EINVAL indicates a malformed argument (bad mode, non-absolute path, ...).
	EINVAL
	// EROFS indicates a mutator was attempted on a read-only filesystem.
	EROFS
	// EPERM indicates the operation is not permitted for the caller.
	EPERM
	// EACCES indicates a permission-bit check failed.
	EACCES
	// ENOTSUP indicates the backend does not implement the operation.
	ENOTSUP
	// EIO indicates an underlying store or transport failure.
	EIO
)

func (c ErrorCode) String() string {
	switch c {
	case ENOENT:
		return "ENOENT"
	case EEXIST:
		return "EEXIST"
	case ENOTDIR:
		return "ENOTDIR"
	case EISDIR:
		return "EISDIR"
	case ENOTEMPTY:
		return "ENOTEMPTY"
	case EINVAL:
		return "EINVAL"
	case EROFS:
		return "EROFS"
	case EPERM:
		return "EPERM"
	case EACCES:
		return "EACCES"
	case ENOTSUP:
		return "ENOTSUP"
	case EIO:
		return "EIO"
	default:
		return "EUNKNOWN"
	}
}

// Error is the single error type the core emits: an errno code, an optional
// path and syscall name, and a human message.
type Error struct {
	Code    ErrorCode
	Path    string
	Syscall string
	Message string
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Syscall != "" {
		msg += " " + e.Syscall
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	return msg
}

// New builds an Error with no path/syscall context.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a path and syscall attached, matching the errno-with-path
// shape most core operations return.
func Newf(code ErrorCode, syscall, path, message string) *Error {
	return &Error{Code: code, Path: path, Syscall: syscall, Message: message}
}

// Wrap tags an arbitrary error as EIO unless it already carries a code, per
// the propagation rule that StoreFS converts store-layer failures to EIO
// unless the store reports a more specific code.
func Wrap(err error, syscall, path string) error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*Error); ok {
		if ve.Path == "" {
			ve.Path = path
		}
		if ve.Syscall == "" {
			ve.Syscall = syscall
		}
		return ve
	}
	return &Error{Code: EIO, Path: path, Syscall: syscall, Message: err.Error()}
}

// Is reports whether err is a *Error carrying code.
func Is(err error, code ErrorCode) bool {
	ve, ok := err.(*Error)
	return ok && ve.Code == code
}

func IsNotExist(err error) bool   { return Is(err, ENOENT) }
func IsExist(err error) bool      { return Is(err, EEXIST) }
func IsNotDir(err error) bool     { return Is(err, ENOTDIR) }
func IsDir(err error) bool        { return Is(err, EISDIR) }
func IsNotEmpty(err error) bool   { return Is(err, ENOTEMPTY) }
func IsInvalid(err error) bool    { return Is(err, EINVAL) }
func IsReadOnly(err error) bool   { return Is(err, EROFS) }
func IsPermission(err error) bool { return Is(err, EPERM) || Is(err, EACCES) }
func IsNotSupported(err error) bool { return Is(err, ENOTSUP) }
func IsIO(err error) bool         { return Is(err, EIO) }
