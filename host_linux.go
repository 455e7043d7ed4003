//go:build linux

package capfs

import (
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// NewOSHost returns the production host. On Linux every lookup step is an
// openat-family syscall against a real directory fd.
func NewOSHost() Host {
	return unixHost{}
}

func hostDescriptorOpens() bool {
	return true
}

type fdHandle struct {
	fd int
}

func (h *fdHandle) Close() error {
	return unix.Close(h.fd)
}

type unixHost struct{}

func hostFD(h Handle) (int, error) {
	fh, ok := h.(*fdHandle)
	if !ok {
		return -1, fmt.Errorf("handle %T does not belong to this host", h)
	}
	return fh.fd, nil
}

func (f OpenFlags) sysFlags() int {
	var sys int
	switch {
	case f&OpenRead != 0 && f&OpenWrite != 0:
		sys = unix.O_RDWR
	case f&OpenWrite != 0:
		sys = unix.O_WRONLY
	default:
		sys = unix.O_RDONLY
	}
	if f&OpenCreate != 0 {
		sys |= unix.O_CREAT
	}
	if f&OpenTrunc != 0 {
		sys |= unix.O_TRUNC
	}
	if f&OpenAppend != 0 {
		sys |= unix.O_APPEND
	}
	if f&OpenNoFollow != 0 {
		sys |= unix.O_NOFOLLOW
	}
	if f&OpenDirectory != 0 {
		sys |= unix.O_DIRECTORY
	}
	return sys | unix.O_CLOEXEC
}

func (unixHost) Open(dir Handle, name string, flags OpenFlags) (Handle, error) {
	dirfd := unix.AT_FDCWD
	if dir != nil {
		fd, err := hostFD(dir)
		if err != nil {
			return nil, err
		}
		dirfd = fd
	}
	var mode uint32
	if flags&OpenCreate != 0 {
		mode = 0o644
	}
	fd, err := unix.Openat(dirfd, name, flags.sysFlags(), mode)
	if err != nil {
		return nil, &fs.PathError{Op: "openat", Path: name, Err: err}
	}
	return &fdHandle{fd: fd}, nil
}

func (unixHost) Mode(dir Handle, name string) (fs.FileMode, error) {
	dirfd := unix.AT_FDCWD
	if dir != nil {
		fd, err := hostFD(dir)
		if err != nil {
			return 0, err
		}
		dirfd = fd
	}
	var st unix.Stat_t
	if err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return 0, &fs.PathError{Op: "fstatat", Path: name, Err: err}
	}
	return sysToFileMode(st.Mode), nil
}

func sysToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	switch m & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= fs.ModeDir
	case unix.S_IFLNK:
		mode |= fs.ModeSymlink
	case unix.S_IFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case unix.S_IFBLK:
		mode |= fs.ModeDevice
	case unix.S_IFIFO:
		mode |= fs.ModeNamedPipe
	case unix.S_IFSOCK:
		mode |= fs.ModeSocket
	}
	return mode
}

func (unixHost) Readlink(dir Handle, name string) (string, error) {
	dirfd := unix.AT_FDCWD
	if dir != nil {
		fd, err := hostFD(dir)
		if err != nil {
			return "", err
		}
		dirfd = fd
	}
	for size := 256; ; size *= 2 {
		buf := make([]byte, size)
		n, err := unix.Readlinkat(dirfd, name, buf)
		if err != nil {
			return "", &fs.PathError{Op: "readlinkat", Path: name, Err: err}
		}
		if n < size {
			return string(buf[:n]), nil
		}
	}
}

func (unixHost) Dup(h Handle) (Handle, error) {
	fd, err := hostFD(h)
	if err != nil {
		return nil, err
	}
	nfd, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("dup: %w", err)
	}
	unix.CloseOnExec(nfd)
	return &fdHandle{fd: nfd}, nil
}

func (unixHost) Read(h Handle, p []byte) (int, error) {
	fd, err := hostFD(h)
	if err != nil {
		return 0, err
	}
	return unix.Read(fd, p)
}

func (unixHost) Write(h Handle, p []byte) (int, error) {
	fd, err := hostFD(h)
	if err != nil {
		return 0, err
	}
	return unix.Write(fd, p)
}

func (unixHost) Seek(h Handle, offset int64, whence int) (int64, error) {
	fd, err := hostFD(h)
	if err != nil {
		return 0, err
	}
	return unix.Seek(fd, offset, whence)
}

func (c FcntlCmd) sysCmd() (int, bool) {
	switch c {
	case FcntlGetFL:
		return unix.F_GETFL, true
	case FcntlSetFL:
		return unix.F_SETFL, true
	case FcntlGetOwn:
		return unix.F_GETOWN, true
	case FcntlSetOwn:
		return unix.F_SETOWN, true
	}
	return 0, false
}

func (unixHost) Fcntl(h Handle, cmd FcntlCmd, arg int) (int, error) {
	fd, err := hostFD(h)
	if err != nil {
		return 0, err
	}
	sys, ok := cmd.sysCmd()
	if !ok {
		return 0, fmt.Errorf("unknown fcntl command %d", cmd)
	}
	return unix.FcntlInt(uintptr(fd), sys, arg)
}

func (unixHost) Ioctl(h Handle, req IoctlReq) (int, error) {
	fd, err := hostFD(h)
	if err != nil {
		return 0, err
	}
	return unix.IoctlGetInt(fd, uint(req))
}

func (unixHost) Chdir(h Handle) error {
	fd, err := hostFD(h)
	if err != nil {
		return err
	}
	return unix.Fchdir(fd)
}
