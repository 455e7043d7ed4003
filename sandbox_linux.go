//go:build linux

package capfs

import "golang.org/x/sys/unix"

// kernelSandboxMirror returns the host primitive mirrored on sandbox entry.
// Linux has no capability mode; the closest monotone process flag is
// no_new_privs, which like sandbox entry can never be cleared.
func kernelSandboxMirror() func() error {
	return func() error {
		return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
	}
}

// kernelSandboxAvailable reports whether the kernel can mirror sandbox mode.
func kernelSandboxAvailable() bool {
	return true
}
