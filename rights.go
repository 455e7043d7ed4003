package capfs

import "strings"

// Rights is a bitset of operation categories a descriptor may perform.
type Rights uint32

const (
	// RightRead permits read operations.
	RightRead Rights = 1 << 0

	// RightWrite permits write operations, including opens with write,
	// create, truncate or append intent.
	RightWrite Rights = 1 << 1

	// RightSeek permits repositioning the descriptor offset.
	RightSeek Rights = 1 << 2

	// RightLookup permits path lookups relative to the descriptor.
	RightLookup Rights = 1 << 3

	// RightChdir permits changing the working directory to the descriptor.
	RightChdir Rights = 1 << 4

	// RightFcntl permits fcntl commands, subject to the set's Fcntls
	// sub-enumeration.
	RightFcntl Rights = 1 << 5

	// RightIoctl permits ioctl requests, subject to the set's Ioctls
	// sub-enumeration.
	RightIoctl Rights = 1 << 6
)

const (
	// AllRights is the full-rights bitset carried by a freshly wrapped
	// descriptor.
	AllRights = RightRead | RightWrite | RightSeek | RightLookup | RightChdir | RightFcntl | RightIoctl

	// ReadOnlyRights permits reading and traversal but no mutation.
	ReadOnlyRights = RightRead | RightSeek | RightLookup
)

var rightNames = []struct {
	bit  Rights
	name string
}{
	{RightRead, "read"},
	{RightWrite, "write"},
	{RightSeek, "seek"},
	{RightLookup, "lookup"},
	{RightChdir, "chdir"},
	{RightFcntl, "fcntl"},
	{RightIoctl, "ioctl"},
}

// Contains reports whether every bit in required is present in r.
func (r Rights) Contains(required Rights) bool {
	return r&required == required
}

// Intersect returns the bits present in both r and other.
func (r Rights) Intersect(other Rights) Rights {
	return r & other
}

func (r Rights) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	for _, rn := range rightNames {
		if r&rn.bit != 0 {
			names = append(names, rn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseRight maps a right name ("read", "lookup", ...) to its bit.
func ParseRight(name string) (Rights, bool) {
	for _, rn := range rightNames {
		if rn.name == name {
			return rn.bit, true
		}
	}
	return 0, false
}

// FcntlCmd identifies an fcntl command subject to sub-enumeration limits.
type FcntlCmd uint32

const (
	FcntlGetFL FcntlCmd = iota + 1
	FcntlSetFL
	FcntlGetOwn
	FcntlSetOwn
)

// IoctlReq identifies an ioctl request code subject to sub-enumeration
// limits. Values are host request codes (FIONREAD and friends).
type IoctlReq uint

// Set is a rights bitset plus optional fcntl/ioctl sub-enumerations. A nil
// sub-enumeration allows every command in its category; a non-nil one allows
// exactly the listed commands (an empty non-nil slice allows none).
type Set struct {
	Rights Rights
	Fcntls []FcntlCmd
	Ioctls []IoctlReq
}

// FullSet is the set attached to a freshly wrapped descriptor: all rights,
// no sub-enumeration limits.
func FullSet() Set {
	return Set{Rights: AllRights}
}

// Contains reports whether s permits everything required does.
func (s Set) Contains(required Set) bool {
	return required.SubsetOf(s)
}

// SubsetOf reports whether s requests nothing beyond other. A nil
// sub-enumeration counts as "all", so a nil request against a non-nil
// current set is a widening.
func (s Set) SubsetOf(other Set) bool {
	if !other.Rights.Contains(s.Rights) {
		return false
	}
	return subsetOf(s.Fcntls, other.Fcntls) && subsetOf(s.Ioctls, other.Ioctls)
}

// Intersect returns the set permitting only what both s and other permit.
func (s Set) Intersect(other Set) Set {
	return Set{
		Rights: s.Rights.Intersect(other.Rights),
		Fcntls: intersectList(s.Fcntls, other.Fcntls),
		Ioctls: intersectList(s.Ioctls, other.Ioctls),
	}
}

// AllowsFcntl reports whether the set permits cmd. The RightFcntl bit must
// be present and cmd must be in the sub-enumeration when one is set.
func (s Set) AllowsFcntl(cmd FcntlCmd) bool {
	if !s.Rights.Contains(RightFcntl) {
		return false
	}
	return s.Fcntls == nil || contains(s.Fcntls, cmd)
}

// AllowsIoctl reports whether the set permits req.
func (s Set) AllowsIoctl(req IoctlReq) bool {
	if !s.Rights.Contains(RightIoctl) {
		return false
	}
	return s.Ioctls == nil || contains(s.Ioctls, req)
}

// clone copies s so that narrowed descriptors never share slice storage.
func (s Set) clone() Set {
	c := Set{Rights: s.Rights}
	if s.Fcntls != nil {
		c.Fcntls = append([]FcntlCmd{}, s.Fcntls...)
	}
	if s.Ioctls != nil {
		c.Ioctls = append([]IoctlReq{}, s.Ioctls...)
	}
	return c
}

func contains[T comparable](list []T, v T) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func subsetOf[T comparable](req, cur []T) bool {
	if cur == nil {
		return true
	}
	if req == nil {
		return false
	}
	for _, v := range req {
		if !contains(cur, v) {
			return false
		}
	}
	return true
}

func intersectList[T comparable](a, b []T) []T {
	if a == nil {
		if b == nil {
			return nil
		}
		return append([]T{}, b...)
	}
	if b == nil {
		return append([]T{}, a...)
	}
	out := []T{}
	for _, v := range a {
		if contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
