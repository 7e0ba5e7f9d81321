package expand

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandEnvVar(t *testing.T) {
	require.NoError(t, os.Setenv("DAEMON_TEST_VAR", "hello"))
	defer os.Unsetenv("DAEMON_TEST_VAR")

	require.Equal(t, "hello-world", Expand("$DAEMON_TEST_VAR-world", true))
	require.Equal(t, "hello-world", Expand("${DAEMON_TEST_VAR}-world", true))
}

func TestExpandEnvDisabled(t *testing.T) {
	require.NoError(t, os.Setenv("DAEMON_TEST_VAR", "hello"))
	defer os.Unsetenv("DAEMON_TEST_VAR")

	require.Equal(t, "$DAEMON_TEST_VAR-world", Expand("$DAEMON_TEST_VAR-world", false))
}

func TestExpandUnsetVarIsEmpty(t *testing.T) {
	os.Unsetenv("DAEMON_TEST_VAR_UNSET")
	require.Equal(t, "-world", Expand("$DAEMON_TEST_VAR_UNSET-world", true))
}

func TestExpandHome(t *testing.T) {
	home := os.Getenv("HOME")
	if home == "" {
		t.Skip("no HOME set")
	}

	require.Equal(t, home+"/bin", Expand("~/bin", true))
	require.Equal(t, "x="+home+"/bin", Expand("x=~/bin", true))
}

func TestExpandTildeMidWordIsLiteral(t *testing.T) {
	require.Equal(t, "foo~bar", Expand("foo~bar", true))
}
