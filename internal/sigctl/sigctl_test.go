package sigctl

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTermSetsTerminatedFlag(t *testing.T) {
	r := New(false, nil)
	r.Start()
	defer r.Stop()

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGTERM))

	require.Eventually(t, r.Terminated, time.Second, time.Millisecond)
}

func TestChldSetsAndClearsFlag(t *testing.T) {
	r := New(false, nil)
	r.Start()
	defer r.Stop()

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGCHLD))

	require.Eventually(t, r.ReceivedSIGCHLD, time.Second, time.Millisecond)
	require.False(t, r.ReceivedSIGCHLD())
}

func TestUSR1InvokesResetCallback(t *testing.T) {
	resetCalled := make(chan struct{}, 1)
	r := New(false, func() { resetCalled <- struct{}{} })
	r.Start()
	defer r.Stop()

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGUSR1))

	select {
	case <-resetCalled:
	case <-time.After(time.Second):
		t.Fatal("reset callback was not invoked")
	}
}
