//go:build !linux && !freebsd

package capfs

// kernelSandboxMirror returns nil: no kernel flag to mirror on this
// platform. Sandbox mode is still enforced by the layer itself.
func kernelSandboxMirror() func() error {
	return nil
}

// kernelSandboxAvailable reports whether the kernel can mirror sandbox mode.
func kernelSandboxAvailable() bool {
	return false
}
