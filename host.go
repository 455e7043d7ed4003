package capfs

import (
	"io"
	"io/fs"
)

// Handle is a raw descriptor obtained from a Host. Handles carry no rights
// of their own; the layer attaches those when it wraps them.
type Handle interface {
	io.Closer
}

// Host supplies the raw filesystem primitives this layer mediates. A nil
// dir handle is the ambient reference (the process working directory for
// relative names). Implementations resolve multi-component names passed to
// Open with ordinary host semantics; the strict-relative resolver only ever
// passes single components.
type Host interface {
	// Open opens name relative to dir (ambient when dir is nil) and
	// returns a raw handle. Absolute names ignore dir.
	Open(dir Handle, name string, flags OpenFlags) (Handle, error)

	// Mode returns the file mode of name relative to dir without
	// following a final symlink.
	Mode(dir Handle, name string) (fs.FileMode, error)

	// Readlink returns the target text of the symlink name relative
	// to dir.
	Readlink(dir Handle, name string) (string, error)

	// Dup duplicates a raw handle. The duplicate is closed independently.
	Dup(h Handle) (Handle, error)

	Read(h Handle, p []byte) (int, error)
	Write(h Handle, p []byte) (int, error)
	Seek(h Handle, offset int64, whence int) (int64, error)

	// Fcntl issues an fcntl command on the handle.
	Fcntl(h Handle, cmd FcntlCmd, arg int) (int, error)

	// Ioctl issues an ioctl request on the handle.
	Ioctl(h Handle, req IoctlReq) (int, error)

	// Chdir changes the process working directory to the handle.
	Chdir(h Handle) error
}
