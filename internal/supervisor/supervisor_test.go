package supervisor

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/coreward/daemon/internal/options"
	"github.com/coreward/daemon/internal/pidfile"
	"github.com/coreward/daemon/internal/sigctl"
)

func TestEnvExpansionEnabledFollowsIdiotGate(t *testing.T) {
	o := &options.Options{}
	// Without --idiot, expansion is enabled exactly when the test
	// process is not running as uid 0.
	require.Equal(t, os.Getuid() != 0, envExpansionEnabled(o))

	o.Idiot = true
	require.True(t, envExpansionEnabled(o))
}

func TestBuildChildEnvWithoutInherit(t *testing.T) {
	o := &options.Options{Env: []string{"FOO=bar"}}
	env := buildChildEnv(o)
	require.Equal(t, []string{"FOO=bar"}, env)
}

func TestBuildChildEnvWithInherit(t *testing.T) {
	t.Setenv("SUPERVISOR_TEST_MARKER", "1")
	o := &options.Options{Inherit: true, Env: []string{"FOO=bar"}}
	env := buildChildEnv(o)
	require.Contains(t, env, "FOO=bar")

	found := false
	for _, kv := range env {
		if kv == "SUPERVISOR_TEST_MARKER=1" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDefaultPathDirsNonRoot(t *testing.T) {
	dirs := defaultPathDirs(12345)
	require.Contains(t, dirs, "/bin")
	require.Contains(t, dirs, "/usr/bin")
}

func TestDefaultPathDirsRoot(t *testing.T) {
	dirs := defaultPathDirs(0)
	require.Equal(t, []string{"/bin", "/usr/bin"}, dirs)
}

func TestSinkOrNilHandlesNilReceiver(t *testing.T) {
	require.Nil(t, sinkOrNil(nil))
	require.Nil(t, syslogOrNil(nil))
}

func TestInterruptibleSleepStopsWhenTerminated(t *testing.T) {
	router := sigctl.New(false, func() {})
	s := &Supervisor{router: router, Log: logrus.NewEntry(logrus.New())}

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	router.Start()
	defer router.Stop()

	require.NoError(t, proc.Signal(syscall.SIGTERM))
	require.Eventually(t, func() bool {
		return router.Terminated()
	}, time.Second, 10*time.Millisecond)

	err = s.interruptibleSleep(5 * time.Second)
	require.Error(t, err)
}

func TestRunForegroundSimpleCommandExits(t *testing.T) {
	if testing.Short() {
		t.Skip("forks a real process")
	}

	dir := t.TempDir()
	o := options.Defaults()
	o.Command = "/bin/true"
	o.Foreground = true
	o.Name = "supervisor-test"
	o.PidfileDir = dir

	log := logrus.NewEntry(logrus.New())
	s := New(&o, log)

	err := s.Run()
	require.NoError(t, err)

	_, statErr := os.Stat(pidfilePathFor(dir, "supervisor-test"))
	require.True(t, os.IsNotExist(statErr), "pidfile should be cleaned up after exit")
}

func pidfilePathFor(dir, name string) string {
	p, err := pidfile.Path("", dir, name, os.Getuid())
	if err != nil {
		return ""
	}
	return p
}
