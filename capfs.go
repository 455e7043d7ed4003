// Package capfs is a capability-based filesystem access-control layer. It
// attaches narrowable rights sets to descriptors, provides a one-way
// process sandbox mode, and guarantees that lookups performed through a
// capability descriptor (or in sandbox mode) resolve strictly beneath the
// directory the descriptor denotes: no absolute paths, no "..", and no
// symlink whose target text would break either rule.
package capfs

import (
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Layer mediates capability-checked access to a Host. The zero number of
// layers is none: construct with New. A Layer owns its own sandbox Mode so
// the strict machinery stays testable in isolation; the package-level
// Default layer is the one production instance with ambient semantics.
type Layer struct {
	host         Host
	mode         *Mode
	logger       *slog.Logger
	symlinkLimit int
	mirror       func() error
}

// Option configures a Layer.
type Option func(*Layer)

// WithLogger attaches a logger for debug-level lookup traces.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) {
		l.logger = logger
	}
}

// WithSymlinkLimit overrides the symlink expansion bound.
func WithSymlinkLimit(n int) Option {
	return func(l *Layer) {
		l.symlinkLimit = n
	}
}

// WithKernelMirror arms the platform's kernel flag so that entering
// sandbox mode on this layer also enters it in the host kernel. Only the
// production instance wants this; test layers stay process-local.
func WithKernelMirror() Option {
	return func(l *Layer) {
		l.mirror = kernelSandboxMirror()
	}
}

// New builds a Layer over host.
func New(host Host, opts ...Option) *Layer {
	l := &Layer{
		host:         host,
		mode:         &Mode{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		symlinkLimit: DefaultSymlinkLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wrap takes ownership of a raw handle and returns an unrestricted
// descriptor carrying the full-rights set. Narrow it to make it a
// capability.
func (l *Layer) Wrap(h Handle) *Descriptor {
	return &Descriptor{layer: l, handle: h, rights: FullSet()}
}

// EnterSandbox sets the layer's sandbox flag. Idempotent; never reversed.
// On the first transition the kernel mirror runs if armed.
func (l *Layer) EnterSandbox() {
	if !l.mode.Enter() {
		return
	}
	l.logger.Info("sandbox mode entered")
	if l.mirror != nil {
		if err := l.mirror(); err != nil {
			l.logger.Warn("kernel sandbox mirror failed", slog.String("error", err.Error()))
		}
	}
}

// InSandbox reports whether sandbox mode is active.
func (l *Layer) InSandbox() bool {
	return l.mode.Entered()
}

// OpenRelative opens path relative to base, or to the ambient working
// directory when base is nil. Strict-relative resolution applies when base
// is a capability, sandbox mode is active, or OpenBeneath is set; otherwise
// the host resolves the path with its ordinary rules (an absolute path then
// ignores base entirely).
//
// A descriptor opened through a capability base is itself a capability and
// inherits the base's rights set verbatim.
func (l *Layer) OpenRelative(base *Descriptor, path string, flags OpenFlags) (*Descriptor, error) {
	sandboxed := l.mode.Entered()

	if base == nil {
		return l.openAmbient(path, flags, sandboxed)
	}

	rights, capability, err := base.snapshot()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	strict := capability || sandboxed || flags&OpenBeneath != 0
	if !strict {
		h, err := l.host.Open(base.handle, path, flags)
		if err != nil {
			return nil, err
		}
		return l.Wrap(h), nil
	}

	if capability {
		need := flags.requiredRights()
		if !rights.Rights.Contains(need) {
			return nil, fmt.Errorf("open %q requires [%s], base holds [%s]: %w",
				path, need, rights.Rights, ErrNotCapable)
		}
	}

	h, err := l.resolveStrict(base.handle, path, flags)
	if err != nil {
		l.logger.Debug("strict lookup denied",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}
	l.logger.Debug("strict lookup", slog.String("path", path))

	if capability {
		return &Descriptor{layer: l, handle: h, rights: rights.clone(), capability: true}, nil
	}
	return l.Wrap(h), nil
}

// openAmbient handles lookups whose base is the implicit working-directory
// reference. In sandbox mode these fail outright: the ambient reference has
// no containment root to resolve beneath.
func (l *Layer) openAmbient(path string, flags OpenFlags, sandboxed bool) (*Descriptor, error) {
	if sandboxed {
		return nil, fmt.Errorf("open %q: %w", path, ErrSandboxViolation)
	}
	if flags&OpenBeneath != 0 {
		root, err := l.host.Open(nil, ".", OpenRead|OpenDirectory)
		if err != nil {
			return nil, fmt.Errorf("open working directory: %w", err)
		}
		defer root.Close()
		h, err := l.resolveStrict(root, path, flags)
		if err != nil {
			return nil, err
		}
		return l.Wrap(h), nil
	}
	h, err := l.host.Open(nil, path, flags)
	if err != nil {
		return nil, err
	}
	return l.Wrap(h), nil
}

var defaultLayer = New(NewOSHost(), WithKernelMirror())

// Default returns the process-wide layer backed by the operating system.
func Default() *Layer {
	return defaultLayer
}

// Wrap wraps a raw handle on the default layer.
func Wrap(h Handle) *Descriptor {
	return defaultLayer.Wrap(h)
}

// Narrow replaces d's rights set with s; see Descriptor.Narrow.
func Narrow(d *Descriptor, s Set) error {
	return d.Narrow(s)
}

// GetRights returns a copy of d's rights set.
func GetRights(d *Descriptor) Set {
	return d.Rights()
}

// OpenRelative opens path on the default layer; see Layer.OpenRelative.
func OpenRelative(base *Descriptor, path string, flags OpenFlags) (*Descriptor, error) {
	return defaultLayer.OpenRelative(base, path, flags)
}

// EnterSandbox enters sandbox mode process-wide on the default layer.
func EnterSandbox() {
	defaultLayer.EnterSandbox()
}

// InSandbox reports whether the default layer is sandboxed.
func InSandbox() bool {
	return defaultLayer.InSandbox()
}
