package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxInt(t *testing.T) {
	require.Equal(t, 3, maxInt(1, 3))
	require.Equal(t, 5, maxInt(5, 2))
	require.Equal(t, 0, maxInt(0, 0))
}

func TestInitSupplementaryGroupsUnknownUIDIsNotFatal(t *testing.T) {
	// A nonexistent uid should be silently skipped (best-effort), not
	// bubble up as an error - the caller already committed to setgid.
	require.NoError(t, initSupplementaryGroups(999999))
}

func TestDisableCoreDumpsSucceeds(t *testing.T) {
	require.NoError(t, disableCoreDumps())
}
