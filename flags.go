package capfs

// OpenFlags control how OpenRelative resolves and opens a path.
type OpenFlags uint32

const (
	// OpenRead requests read access.
	OpenRead OpenFlags = 1 << 0

	// OpenWrite requests write access.
	OpenWrite OpenFlags = 1 << 1

	// OpenCreate creates the final component if it does not exist.
	OpenCreate OpenFlags = 1 << 2

	// OpenTrunc truncates the file on open.
	OpenTrunc OpenFlags = 1 << 3

	// OpenAppend opens the file in append mode.
	OpenAppend OpenFlags = 1 << 4

	// OpenNoFollow refuses to follow a symlink in the final component.
	OpenNoFollow OpenFlags = 1 << 5

	// OpenBeneath forces strict-relative resolution even for
	// non-capability bases outside sandbox mode.
	OpenBeneath OpenFlags = 1 << 6

	// OpenDirectory requires the final component to be a directory.
	OpenDirectory OpenFlags = 1 << 7
)

// requiredRights maps open intent to the rights a capability base must hold
// for the lookup. Lookup is always required; rights on the opened file
// itself are inherited, not re-derived from the flags.
func (f OpenFlags) requiredRights() Rights {
	req := RightLookup
	if f&OpenRead != 0 {
		req |= RightRead
	}
	if f&(OpenWrite|OpenCreate|OpenTrunc|OpenAppend) != 0 {
		req |= RightWrite
	}
	return req
}
