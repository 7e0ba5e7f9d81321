package options

import (
	"os/user"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserGroupBareUsername(t *testing.T) {
	me, err := user.Current()
	require.NoError(t, err)

	ug, err := ParseUserGroup(me.Username)
	require.NoError(t, err)

	wantUID, err := strconv.Atoi(me.Uid)
	require.NoError(t, err)
	require.Equal(t, wantUID, ug.UID)
	require.False(t, ug.GIDSet)
}

func TestParseUserGroupWithColonGroup(t *testing.T) {
	me, err := user.Current()
	require.NoError(t, err)
	group, err := user.LookupGroupId(me.Gid)
	require.NoError(t, err)

	ug, err := ParseUserGroup(me.Username + ":" + group.Name)
	require.NoError(t, err)
	require.True(t, ug.GIDSet)
}

func TestParseUserGroupUnknownUser(t *testing.T) {
	_, err := ParseUserGroup("definitely-not-a-real-user-12345")
	require.Error(t, err)
}
