package vfs

// Credential is a real/saved/effective uid/gid tuple used for permission
// checks. The core never derives or changes credentials implicitly; callers
// supply one on every operation.
type Credential struct {
	UID  uint32
	GID  uint32
	SUID uint32
	SGID uint32
	EUID uint32
	EGID uint32
}

// Root returns the all-zero credential that bypasses permission checks.
func Root() Credential {
	return Credential{}
}

// IsRoot reports whether c bypasses permission checks the way root does:
// effective uid or effective gid of zero.
func (c Credential) IsRoot() bool {
	return c.EUID == 0 || c.EGID == 0
}
