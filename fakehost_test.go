package capfs

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"syscall"
)

// fakeHost is an in-memory Host with real symlink and ".." semantics for
// its ordinary resolution path, so dispatcher tests can compare strict and
// unrestricted behavior on the same tree.
type fakeHost struct {
	root *fakeNode
	cwd  *fakeNode

	open int // live handle count, for leak assertions
}

type fakeNode struct {
	name     string
	parent   *fakeNode
	dir      bool
	target   string // symlink target text when non-empty
	children map[string]*fakeNode
	data     []byte
}

type fakeHandle struct {
	host   *fakeHost
	node   *fakeNode
	offset int
	closed bool
}

func (h *fakeHandle) Close() error {
	if h.closed {
		return errors.New("fake handle closed twice")
	}
	h.closed = true
	h.host.open--
	return nil
}

func newFakeHost() *fakeHost {
	root := &fakeNode{name: "/", dir: true, children: map[string]*fakeNode{}}
	root.parent = root
	return &fakeHost{root: root, cwd: root}
}

func (h *fakeHost) mkdir(p string) *fakeNode {
	cur := h.root
	for _, c := range splitComps(p) {
		next, ok := cur.children[c]
		if !ok {
			next = &fakeNode{name: c, parent: cur, dir: true, children: map[string]*fakeNode{}}
			cur.children[c] = next
		}
		cur = next
	}
	return cur
}

func (h *fakeHost) mkfile(p, contents string) *fakeNode {
	dir, base := path.Split(p)
	parent := h.mkdir(dir)
	n := &fakeNode{name: base, parent: parent, data: []byte(contents)}
	parent.children[base] = n
	return n
}

func (h *fakeHost) symlink(p, target string) *fakeNode {
	dir, base := path.Split(p)
	parent := h.mkdir(dir)
	n := &fakeNode{name: base, parent: parent, target: target}
	parent.children[base] = n
	return n
}

func splitComps(p string) []string {
	var comps []string
	for _, c := range strings.Split(p, "/") {
		if c != "" && c != "." {
			comps = append(comps, c)
		}
	}
	return comps
}

// resolve walks name from start with ordinary host semantics: absolute
// names restart at the fake root, ".." ascends, and symlinks are followed
// except in the final component when follow is false.
func (h *fakeHost) resolve(start *fakeNode, name string, follow bool, depth int) (*fakeNode, error) {
	if depth > 40 {
		return nil, syscall.ELOOP
	}
	cur := start
	if strings.HasPrefix(name, "/") {
		cur = h.root
	}
	comps := splitComps(name)
	for i, c := range comps {
		last := i == len(comps)-1
		if c == ".." {
			cur = cur.parent
			continue
		}
		if !cur.dir {
			return nil, syscall.ENOTDIR
		}
		child, ok := cur.children[c]
		if !ok {
			return nil, syscall.ENOENT
		}
		if child.target != "" && (follow || !last) {
			resolved, err := h.resolve(cur, child.target, true, depth+1)
			if err != nil {
				return nil, err
			}
			cur = resolved
			continue
		}
		cur = child
	}
	return cur, nil
}

func (h *fakeHost) dirNode(dir Handle) (*fakeNode, error) {
	if dir == nil {
		return h.cwd, nil
	}
	fh, ok := dir.(*fakeHandle)
	if !ok {
		return nil, errors.New("foreign handle")
	}
	if fh.closed {
		return nil, errors.New("use of closed fake handle")
	}
	return fh.node, nil
}

func (h *fakeHost) Open(dir Handle, name string, flags OpenFlags) (Handle, error) {
	start, err := h.dirNode(dir)
	if err != nil {
		return nil, err
	}
	n, err := h.resolve(start, name, flags&OpenNoFollow == 0, 0)
	if err != nil {
		if flags&OpenCreate != 0 && errors.Is(err, syscall.ENOENT) {
			return h.create(start, name, flags)
		}
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if flags&OpenNoFollow != 0 && n.target != "" {
		return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.ELOOP}
	}
	if flags&OpenDirectory != 0 && !n.dir {
		return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.ENOTDIR}
	}
	if flags&OpenTrunc != 0 {
		n.data = nil
	}
	h.open++
	return &fakeHandle{host: h, node: n}, nil
}

func (h *fakeHost) create(start *fakeNode, name string, flags OpenFlags) (Handle, error) {
	dir, base := path.Split(name)
	parent := start
	if dir != "" {
		n, err := h.resolve(start, strings.TrimSuffix(dir, "/"), true, 0)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		parent = n
	}
	if !parent.dir {
		return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.ENOTDIR}
	}
	n := &fakeNode{name: base, parent: parent}
	parent.children[base] = n
	h.open++
	return &fakeHandle{host: h, node: n}, nil
}

func (h *fakeHost) Mode(dir Handle, name string) (fs.FileMode, error) {
	start, err := h.dirNode(dir)
	if err != nil {
		return 0, err
	}
	n, err := h.resolve(start, name, false, 0)
	if err != nil {
		return 0, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	switch {
	case n.target != "":
		return fs.ModeSymlink | 0o777, nil
	case n.dir:
		return fs.ModeDir | 0o755, nil
	default:
		return 0o644, nil
	}
}

func (h *fakeHost) Readlink(dir Handle, name string) (string, error) {
	start, err := h.dirNode(dir)
	if err != nil {
		return "", err
	}
	n, err := h.resolve(start, name, false, 0)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	if n.target == "" {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: syscall.EINVAL}
	}
	return n.target, nil
}

func (h *fakeHost) Dup(handle Handle) (Handle, error) {
	fh, ok := handle.(*fakeHandle)
	if !ok || fh.closed {
		return nil, errors.New("dup of closed or foreign handle")
	}
	h.open++
	return &fakeHandle{host: h, node: fh.node}, nil
}

func (h *fakeHost) Read(handle Handle, p []byte) (int, error) {
	fh := handle.(*fakeHandle)
	if fh.offset >= len(fh.node.data) {
		return 0, io.EOF
	}
	n := copy(p, fh.node.data[fh.offset:])
	fh.offset += n
	return n, nil
}

func (h *fakeHost) Write(handle Handle, p []byte) (int, error) {
	fh := handle.(*fakeHandle)
	fh.node.data = append(fh.node.data, p...)
	return len(p), nil
}

func (h *fakeHost) Seek(handle Handle, offset int64, whence int) (int64, error) {
	fh := handle.(*fakeHandle)
	switch whence {
	case io.SeekStart:
		fh.offset = int(offset)
	case io.SeekCurrent:
		fh.offset += int(offset)
	case io.SeekEnd:
		fh.offset = len(fh.node.data) + int(offset)
	}
	return int64(fh.offset), nil
}

func (h *fakeHost) Fcntl(_ Handle, _ FcntlCmd, _ int) (int, error) {
	return 0, nil
}

func (h *fakeHost) Ioctl(handle Handle, _ IoctlReq) (int, error) {
	fh := handle.(*fakeHandle)
	return len(fh.node.data), nil
}

func (h *fakeHost) Chdir(handle Handle) error {
	fh := handle.(*fakeHandle)
	if !fh.node.dir {
		return syscall.ENOTDIR
	}
	h.cwd = fh.node
	return nil
}

// buildFixture replicates the reference tree used throughout the resolver
// and dispatcher tests:
//
//	/top/topfile
//	/top/subdir/bottomfile
//	/top/symlink.samedir      -> topfile
//	/top/symlink.down         -> subdir/bottomfile
//	/top/symlink.absolute_in  -> /top/topfile
//	/top/symlink.absolute_out -> /etc/passwd
//	/top/symlink.relative_in  -> ../../top/topfile
//	/top/symlink.relative_out -> ../../etc/passwd
//	/top/subdir/symlink.up    -> ../topfile
//	/etc/passwd
func buildFixture() *fakeHost {
	h := newFakeHost()
	h.mkfile("/top/topfile", "Top-level file")
	h.mkfile("/top/subdir/bottomfile", "File in subdirectory")
	h.symlink("/top/symlink.samedir", "topfile")
	h.symlink("/top/symlink.down", "subdir/bottomfile")
	h.symlink("/top/symlink.absolute_in", "/top/topfile")
	h.symlink("/top/symlink.absolute_out", "/etc/passwd")
	h.symlink("/top/symlink.relative_in", "../../top/topfile")
	h.symlink("/top/symlink.relative_out", "../../etc/passwd")
	h.symlink("/top/subdir/symlink.up", "../topfile")
	h.mkfile("/etc/passwd", "root:x:0:0")
	return h
}
