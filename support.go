package capfs

// HostSupport describes how much of the capability model the host kernel
// enforces natively, as opposed to being emulated by this layer.
type HostSupport struct {
	DescriptorOpens bool // openat-family lookups back the production host
	KernelSandbox   bool // sandbox entry is mirrored by a kernel flag
}

// DetectHostSupport probes the running platform.
func DetectHostSupport() HostSupport {
	return HostSupport{
		DescriptorOpens: hostDescriptorOpens(),
		KernelSandbox:   kernelSandboxAvailable(),
	}
}

// EffectiveLevel summarizes the support as "native" (both), "partial"
// (one of the two), or "emulated" (neither).
func (s HostSupport) EffectiveLevel() string {
	if s.DescriptorOpens && s.KernelSandbox {
		return "native"
	}
	if s.DescriptorOpens || s.KernelSandbox {
		return "partial"
	}
	return "emulated"
}
