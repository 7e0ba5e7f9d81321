package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreward/daemon/internal/config"
)

func TestParseBootstrapIgnoresUnknownFlags(t *testing.T) {
	b, err := ParseBootstrap([]string{"--name", "t1", "--respawn", "/bin/sleep", "60"})
	require.NoError(t, err)
	require.Equal(t, "t1", b.Name)
}

func TestFullFlagSetReconcilesAcceptableSeconds(t *testing.T) {
	o := Defaults()
	cfs := FullFlagSet(&o)
	require.NoError(t, cfs.FlagSet.Parse([]string{"--acceptable", "42"}))
	cfs.FinishParse(&o)
	require.Equal(t, 42*time.Second, o.AcceptableSec)
}

func TestFullFlagSetReconcilesPTYSpec(t *testing.T) {
	o := Defaults()
	cfs := FullFlagSet(&o)
	require.NoError(t, cfs.FlagSet.Parse([]string{"--pty=noecho", "--foreground"}))
	cfs.FinishParse(&o)
	require.True(t, o.PTY)
	require.True(t, o.PTYNoEcho)
}

func TestApplyConfigLayerGenericThenNamed(t *testing.T) {
	o := Defaults()
	f := &config.File{Options: []config.OptionSet{
		{Name: "*", Options: []config.Option{{Name: "respawn"}}},
		{Name: "myapp", Options: []config.Option{{Name: "foreground"}}},
	}}

	require.NoError(t, ApplyConfigLayer(&o, f, "myapp"))
	require.True(t, o.Respawn)
	require.True(t, o.Foreground)
}

func TestApplyConfigLayerRejectsBootstrapOnlyOptions(t *testing.T) {
	o := Defaults()
	f := &config.File{Options: []config.OptionSet{
		{Name: "*", Options: []config.Option{{Name: "chroot", Value: "/x", HasValue: true}}},
	}}

	err := ApplyConfigLayer(&o, f, "myapp")
	require.Error(t, err)
}

func TestSanityCheckRejectsPTYWithoutForeground(t *testing.T) {
	o := Defaults()
	o.PTY = true
	o.Command = "/bin/cat"
	require.Error(t, SanityCheck(&o))
}

func TestSanityCheckRequiresNameForControlPlane(t *testing.T) {
	o := Defaults()
	o.Stop = true
	require.Error(t, SanityCheck(&o))
}

func TestSanityCheckRejectsMutuallyExclusiveControlModes(t *testing.T) {
	o := Defaults()
	o.Name = "t1"
	o.Stop = true
	o.Restart = true
	require.Error(t, SanityCheck(&o))
}

func TestClampBoundsEnforcesMinimums(t *testing.T) {
	o := Defaults()
	o.AcceptableSec = 1 * time.Second
	o.DelaySec = 2 * time.Second
	ClampBounds(&o, false)
	require.Equal(t, minAcceptable, o.AcceptableSec)
	require.Equal(t, minDelay, o.DelaySec)
}

func TestClampBoundsSkippedUnderIdiotMode(t *testing.T) {
	o := Defaults()
	o.AcceptableSec = 1 * time.Second
	ClampBounds(&o, true)
	require.Equal(t, 1*time.Second, o.AcceptableSec)
}

func TestSanityCheckRequiresRespawnForAcceptable(t *testing.T) {
	o := Defaults()
	o.Command = "/bin/cat"
	o.AcceptableSec = 20 * time.Second
	require.Error(t, SanityCheck(&o))

	o.Respawn = true
	require.NoError(t, SanityCheck(&o))
}

func TestSanityCheckRequiresRespawnForAttemptsDelayLimit(t *testing.T) {
	base := Defaults()
	base.Command = "/bin/cat"

	o := base
	o.AttemptsMax = 10
	require.Error(t, SanityCheck(&o))

	o = base
	o.DelaySec = 20 * time.Second
	require.Error(t, SanityCheck(&o))

	o = base
	o.LimitBursts = 3
	require.Error(t, SanityCheck(&o))
}

func TestSanityCheckRejectsSafeAndUnsafe(t *testing.T) {
	o := Defaults()
	o.Command = "/bin/cat"
	o.Safe = true
	o.Unsafe = true
	require.Error(t, SanityCheck(&o))
}

func TestSanityCheckRejectsConfigAndNoConfig(t *testing.T) {
	o := Defaults()
	o.Command = "/bin/cat"
	o.Config = "/etc/daemon.conf"
	o.NoConfig = true
	require.Error(t, SanityCheck(&o))
}

func TestSanityCheckRejectsListWithName(t *testing.T) {
	o := Defaults()
	o.List = true
	o.Name = "t1"
	require.Error(t, SanityCheck(&o))
}
