package capfs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Descriptor wraps a raw host handle with a rights set. A freshly wrapped
// descriptor is unrestricted: it carries the full-rights set and is not yet
// a capability. Narrowing marks it as a capability, and from then on every
// operation is checked against its rights before the host is touched.
//
// The descriptor owns its handle exclusively and closes it exactly once.
type Descriptor struct {
	layer  *Layer
	handle Handle
	closed atomic.Bool

	mu         sync.Mutex
	rights     Set
	capability bool
}

// IsCapability reports whether the descriptor's operations are restricted
// by its rights set.
func (d *Descriptor) IsCapability() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capability
}

// Rights returns a copy of the descriptor's current rights set.
func (d *Descriptor) Rights() Set {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rights.clone()
}

// Narrow replaces the descriptor's rights set with s and marks the
// descriptor as a capability. s must be a subset of the current set,
// sub-enumerations included; widening fails with ErrRightsEscalation and
// leaves the descriptor unchanged.
func (d *Descriptor) Narrow(s Set) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !s.SubsetOf(d.rights) {
		return fmt.Errorf("narrow to [%s]: %w", s.Rights, ErrRightsEscalation)
	}
	d.rights = s.clone()
	d.capability = true
	return nil
}

// Close releases the underlying handle. The first call closes it; later
// calls fail with ErrClosed and touch nothing.
func (d *Descriptor) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return d.handle.Close()
}

// Dup duplicates the raw handle and returns an independently closable
// descriptor carrying the same rights and capability flag.
func (d *Descriptor) Dup() (*Descriptor, error) {
	rights, capability, err := d.snapshot()
	if err != nil {
		return nil, err
	}
	h, err := d.layer.host.Dup(d.handle)
	if err != nil {
		return nil, err
	}
	nd := &Descriptor{layer: d.layer, handle: h, rights: rights.clone(), capability: capability}
	return nd, nil
}

func (d *Descriptor) snapshot() (Set, bool, error) {
	if d.closed.Load() {
		return Set{}, false, ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rights, d.capability, nil
}

// require fails with ErrNotCapable unless the descriptor permits every bit
// in r. Unrestricted descriptors permit everything.
func (d *Descriptor) require(r Rights) error {
	rights, capability, err := d.snapshot()
	if err != nil {
		return err
	}
	if capability && !rights.Rights.Contains(r) {
		return fmt.Errorf("requires [%s], holds [%s]: %w", r, rights.Rights, ErrNotCapable)
	}
	return nil
}

func (d *Descriptor) Read(p []byte) (int, error) {
	if err := d.require(RightRead); err != nil {
		return 0, err
	}
	return d.layer.host.Read(d.handle, p)
}

func (d *Descriptor) Write(p []byte) (int, error) {
	if err := d.require(RightWrite); err != nil {
		return 0, err
	}
	return d.layer.host.Write(d.handle, p)
}

func (d *Descriptor) Seek(offset int64, whence int) (int64, error) {
	if err := d.require(RightSeek); err != nil {
		return 0, err
	}
	return d.layer.host.Seek(d.handle, offset, whence)
}

// Chdir changes the process working directory to the descriptor.
func (d *Descriptor) Chdir() error {
	if err := d.require(RightChdir); err != nil {
		return err
	}
	return d.layer.host.Chdir(d.handle)
}

// Fcntl issues cmd, checked against the RightFcntl bit and the fcntl
// sub-enumeration when one is present.
func (d *Descriptor) Fcntl(cmd FcntlCmd, arg int) (int, error) {
	rights, capability, err := d.snapshot()
	if err != nil {
		return 0, err
	}
	if capability && !rights.AllowsFcntl(cmd) {
		return 0, fmt.Errorf("fcntl %d: %w", cmd, ErrNotCapable)
	}
	return d.layer.host.Fcntl(d.handle, cmd, arg)
}

// Ioctl issues req, checked against the RightIoctl bit and the ioctl
// sub-enumeration when one is present.
func (d *Descriptor) Ioctl(req IoctlReq) (int, error) {
	rights, capability, err := d.snapshot()
	if err != nil {
		return 0, err
	}
	if capability && !rights.AllowsIoctl(req) {
		return 0, fmt.Errorf("ioctl %#x: %w", uint(req), ErrNotCapable)
	}
	return d.layer.host.Ioctl(d.handle, req)
}
