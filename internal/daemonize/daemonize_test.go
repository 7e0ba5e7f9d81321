package daemonize

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartDelayParsesEnv(t *testing.T) {
	require.NoError(t, os.Setenv(startDelayEnv, "250"))
	defer os.Unsetenv(startDelayEnv)

	require.Equal(t, 250*time.Millisecond, startDelay())
}

func TestStartDelayDefaultsToZero(t *testing.T) {
	os.Unsetenv(startDelayEnv)
	require.Equal(t, time.Duration(0), startDelay())
}

func TestStartDelayIgnoresGarbage(t *testing.T) {
	require.NoError(t, os.Setenv(startDelayEnv, "not-a-number"))
	defer os.Unsetenv(startDelayEnv)

	require.Equal(t, time.Duration(0), startDelay())
}

func TestWaitForReadinessSuccess(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	w.Close()

	require.Equal(t, 0, waitForReadiness(r))
}

func TestWaitForReadinessFailureCode(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	_, err = w.Write([]byte{7})
	require.NoError(t, err)
	w.Close()

	require.Equal(t, 7, waitForReadiness(r))
}
