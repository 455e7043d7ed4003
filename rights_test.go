package capfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRights_Contains(t *testing.T) {
	r := RightRead | RightLookup

	assert.True(t, r.Contains(RightRead))
	assert.True(t, r.Contains(RightRead|RightLookup))
	assert.False(t, r.Contains(RightWrite))
	assert.False(t, r.Contains(RightRead|RightWrite))
}

func TestRights_Intersect(t *testing.T) {
	a := RightRead | RightWrite | RightLookup
	b := RightRead | RightSeek

	assert.Equal(t, RightRead, a.Intersect(b))
}

func TestRights_String(t *testing.T) {
	assert.Equal(t, "none", Rights(0).String())
	assert.Equal(t, "read,lookup", (RightRead | RightLookup).String())
	assert.Equal(t, "read,write,seek,lookup,chdir,fcntl,ioctl", AllRights.String())
}

func TestParseRight(t *testing.T) {
	bit, ok := ParseRight("lookup")
	require.True(t, ok)
	assert.Equal(t, RightLookup, bit)

	_, ok = ParseRight("teleport")
	assert.False(t, ok)
}

func TestSet_SubsetOf_Bits(t *testing.T) {
	full := FullSet()
	ro := Set{Rights: RightRead}

	assert.True(t, ro.SubsetOf(full))
	assert.False(t, full.SubsetOf(ro))
	assert.True(t, ro.SubsetOf(ro))
}

func TestSet_SubsetOf_FcntlSubEnumeration(t *testing.T) {
	all := Set{Rights: RightFcntl}
	getOnly := Set{Rights: RightFcntl, Fcntls: []FcntlCmd{FcntlGetFL}}
	getSet := Set{Rights: RightFcntl, Fcntls: []FcntlCmd{FcntlGetFL, FcntlSetFL}}

	// nil means "all", so any restriction is a subset of it.
	assert.True(t, getOnly.SubsetOf(all))
	assert.True(t, getOnly.SubsetOf(getSet))
	assert.False(t, getSet.SubsetOf(getOnly))

	// Requesting "all" against a restricted set is a widening.
	assert.False(t, all.SubsetOf(getOnly))
}

func TestSet_SubsetOf_EmptySubEnumerationAllowsNone(t *testing.T) {
	none := Set{Rights: RightIoctl, Ioctls: []IoctlReq{}}
	one := Set{Rights: RightIoctl, Ioctls: []IoctlReq{0x541b}}

	assert.True(t, none.SubsetOf(one))
	assert.False(t, one.SubsetOf(none))
}

func TestSet_Intersect(t *testing.T) {
	a := Set{Rights: RightRead | RightFcntl, Fcntls: []FcntlCmd{FcntlGetFL, FcntlSetFL}}
	b := Set{Rights: RightFcntl | RightWrite, Fcntls: []FcntlCmd{FcntlSetFL}}

	got := a.Intersect(b)
	assert.Equal(t, RightFcntl, got.Rights)
	assert.Equal(t, []FcntlCmd{FcntlSetFL}, got.Fcntls)
}

func TestSet_Intersect_NilMeansAll(t *testing.T) {
	a := Set{Rights: RightIoctl}
	b := Set{Rights: RightIoctl, Ioctls: []IoctlReq{0x541b}}

	got := a.Intersect(b)
	assert.Equal(t, []IoctlReq{0x541b}, got.Ioctls)

	got = a.Intersect(Set{Rights: RightIoctl})
	assert.Nil(t, got.Ioctls)
}

func TestSet_AllowsFcntl(t *testing.T) {
	s := Set{Rights: RightFcntl, Fcntls: []FcntlCmd{FcntlGetFL}}

	assert.True(t, s.AllowsFcntl(FcntlGetFL))
	assert.False(t, s.AllowsFcntl(FcntlSetFL))

	// Without the bit, the sub-enumeration is irrelevant.
	assert.False(t, Set{Fcntls: []FcntlCmd{FcntlGetFL}}.AllowsFcntl(FcntlGetFL))

	// Without a sub-enumeration, the bit alone decides.
	assert.True(t, Set{Rights: RightFcntl}.AllowsFcntl(FcntlSetFL))
}

func TestSet_AllowsIoctl(t *testing.T) {
	const fionread IoctlReq = 0x541b
	s := Set{Rights: RightIoctl, Ioctls: []IoctlReq{fionread}}

	assert.True(t, s.AllowsIoctl(fionread))
	assert.False(t, s.AllowsIoctl(0x5401))
}

func TestSet_CloneIsIndependent(t *testing.T) {
	s := Set{Rights: RightFcntl, Fcntls: []FcntlCmd{FcntlGetFL}}
	c := s.clone()
	c.Fcntls[0] = FcntlSetFL

	assert.Equal(t, FcntlGetFL, s.Fcntls[0])
}
