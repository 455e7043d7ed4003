//go:build !linux

package capfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// NewOSHost returns the production host. Without the openat family the
// fallback host carries the resolved path in each handle and re-joins at
// every step, so single-component lookups still cannot wander.
func NewOSHost() Host {
	return pathHost{}
}

func hostDescriptorOpens() bool {
	return false
}

var errHostUnsupported = errors.New("not supported by this host")

type pathHandle struct {
	path string
	f    *os.File
}

func (h *pathHandle) Close() error {
	if h.f != nil {
		return h.f.Close()
	}
	return nil
}

type pathHost struct{}

func hostPath(dir Handle, name string) (string, error) {
	if filepath.IsAbs(name) || dir == nil {
		return name, nil
	}
	ph, ok := dir.(*pathHandle)
	if !ok {
		return "", fmt.Errorf("handle %T does not belong to this host", dir)
	}
	return filepath.Join(ph.path, name), nil
}

func (f OpenFlags) osFlags() int {
	var sys int
	switch {
	case f&OpenRead != 0 && f&OpenWrite != 0:
		sys = os.O_RDWR
	case f&OpenWrite != 0:
		sys = os.O_WRONLY
	default:
		sys = os.O_RDONLY
	}
	if f&OpenCreate != 0 {
		sys |= os.O_CREATE
	}
	if f&OpenTrunc != 0 {
		sys |= os.O_TRUNC
	}
	if f&OpenAppend != 0 {
		sys |= os.O_APPEND
	}
	return sys
}

func (pathHost) Open(dir Handle, name string, flags OpenFlags) (Handle, error) {
	full, err := hostPath(dir, name)
	if err != nil {
		return nil, err
	}
	if flags&OpenNoFollow != 0 {
		if info, err := os.Lstat(full); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.ELOOP}
		}
	}
	f, err := os.OpenFile(full, flags.osFlags(), 0o644)
	if err != nil {
		return nil, err
	}
	if flags&OpenDirectory != 0 {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if !info.IsDir() {
			f.Close()
			return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.ENOTDIR}
		}
	}
	return &pathHandle{path: full, f: f}, nil
}

func (pathHost) Mode(dir Handle, name string) (fs.FileMode, error) {
	full, err := hostPath(dir, name)
	if err != nil {
		return 0, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		return 0, err
	}
	return info.Mode(), nil
}

func (pathHost) Readlink(dir Handle, name string) (string, error) {
	full, err := hostPath(dir, name)
	if err != nil {
		return "", err
	}
	return os.Readlink(full)
}

func (pathHost) Dup(h Handle) (Handle, error) {
	ph, ok := h.(*pathHandle)
	if !ok {
		return nil, fmt.Errorf("handle %T does not belong to this host", h)
	}
	// No raw dup without a real fd; reopen read-only at the same path.
	f, err := os.Open(ph.path)
	if err != nil {
		return nil, err
	}
	return &pathHandle{path: ph.path, f: f}, nil
}

func (pathHost) Read(h Handle, p []byte) (int, error) {
	ph, ok := h.(*pathHandle)
	if !ok || ph.f == nil {
		return 0, fmt.Errorf("handle is not open for I/O")
	}
	return ph.f.Read(p)
}

func (pathHost) Write(h Handle, p []byte) (int, error) {
	ph, ok := h.(*pathHandle)
	if !ok || ph.f == nil {
		return 0, fmt.Errorf("handle is not open for I/O")
	}
	return ph.f.Write(p)
}

func (pathHost) Seek(h Handle, offset int64, whence int) (int64, error) {
	ph, ok := h.(*pathHandle)
	if !ok || ph.f == nil {
		return 0, fmt.Errorf("handle is not open for I/O")
	}
	return ph.f.Seek(offset, whence)
}

func (pathHost) Fcntl(_ Handle, _ FcntlCmd, _ int) (int, error) {
	return 0, fmt.Errorf("fcntl: %w", errHostUnsupported)
}

func (pathHost) Ioctl(_ Handle, _ IoctlReq) (int, error) {
	return 0, fmt.Errorf("ioctl: %w", errHostUnsupported)
}

func (pathHost) Chdir(h Handle) error {
	ph, ok := h.(*pathHandle)
	if !ok {
		return fmt.Errorf("handle %T does not belong to this host", h)
	}
	return os.Chdir(ph.path)
}
