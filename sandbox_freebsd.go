//go:build freebsd

package capfs

import "golang.org/x/sys/unix"

// kernelSandboxMirror returns the host primitive mirrored on sandbox entry.
// FreeBSD has true capability mode.
func kernelSandboxMirror() func() error {
	return unix.CapEnter
}

// kernelSandboxAvailable reports whether the kernel can mirror sandbox mode.
func kernelSandboxAvailable() bool {
	return true
}
