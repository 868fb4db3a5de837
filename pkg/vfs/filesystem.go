package vfs

import "context"

// FilesystemType is the constant every backend reports from Metadata().Type.
const FilesystemType uint64 = 0x7A656E6673 // "zenfs"

// Metadata describes a mounted filesystem's static and dynamic properties.
type Metadata struct {
	Name         string
	Readonly     bool
	TotalSpace   uint64
	FreeSpace    uint64
	BlockSize    uint32
	TotalNodes   uint64
	FreeNodes    uint64
	Type         uint64
	NoAsyncCache bool
}

// OpenFlag is a parsed form of the "r"|"r+"|"w"|"w+"|"a"|"a+" flag strings.
type OpenFlag struct {
	Read      bool
	Write     bool
	Create    bool
	Truncate  bool
	Append    bool
	Exclusive bool
}

// ParseFlag parses a POSIX-style fopen mode string into an OpenFlag.
func ParseFlag(s string) (OpenFlag, error) {
	switch s {
	case "r":
		return OpenFlag{Read: true}, nil
	case "r+":
		return OpenFlag{Read: true, Write: true}, nil
	case "w":
		return OpenFlag{Write: true, Create: true, Truncate: true}, nil
	case "w+":
		return OpenFlag{Read: true, Write: true, Create: true, Truncate: true}, nil
	case "a":
		return OpenFlag{Write: true, Create: true, Append: true}, nil
	case "a+":
		return OpenFlag{Read: true, Write: true, Create: true, Append: true}, nil
	default:
		return OpenFlag{}, New(EINVAL, "unknown file flag "+s)
	}
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name string
	Ino  Ino
	Mode FileMode
}

// FileHandle is the contract an open file exposes to callers.
type FileHandle interface {
	Read(ctx context.Context, buf []byte, position int64) (int, error)
	Write(ctx context.Context, buf []byte, position int64) (int, error)
	Stat(ctx context.Context) (Stats, error)
	Truncate(ctx context.Context, size uint64) error
	Chmod(ctx context.Context, mode FileMode) error
	Chown(ctx context.Context, uid, gid uint32) error
	Sync(ctx context.Context) error
	Close(ctx context.Context) error
}

// FileSystem is the contract every backend — bare StoreFS or a composed
// stack of composers — implements.
type FileSystem interface {
	Ready(ctx context.Context) error
	Metadata(ctx context.Context) (Metadata, error)

	Stat(ctx context.Context, path string, cred Credential) (Stats, error)
	Exists(ctx context.Context, path string, cred Credential) (bool, error)
	OpenFile(ctx context.Context, path string, flag OpenFlag, cred Credential) (FileHandle, error)
	CreateFile(ctx context.Context, path string, flag OpenFlag, mode FileMode, cred Credential) (FileHandle, error)
	Readdir(ctx context.Context, path string, cred Credential) ([]DirEntry, error)
	Mkdir(ctx context.Context, path string, mode FileMode, cred Credential) error
	Unlink(ctx context.Context, path string, cred Credential) error
	Rmdir(ctx context.Context, path string, cred Credential) error
	Rename(ctx context.Context, oldPath, newPath string, cred Credential) error
	Link(ctx context.Context, src, dst string, cred Credential) error
	Sync(ctx context.Context, path string, data []byte, stats Stats) error
}
