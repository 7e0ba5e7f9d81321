package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvAssignment(t *testing.T) {
	f, err := Parse(strings.NewReader("FOO=bar\n"))
	require.NoError(t, err)
	require.Equal(t, []EnvAssignment{{Name: "FOO", Value: "bar"}}, f.Env)
}

func TestParseGenericOptionSet(t *testing.T) {
	f, err := Parse(strings.NewReader("* respawn,acceptable=10,delay=30\n"))
	require.NoError(t, err)
	require.Len(t, f.Options, 1)
	require.Equal(t, "*", f.Options[0].Name)
	require.Equal(t, []Option{
		{Name: "respawn"},
		{Name: "acceptable", Value: "10", HasValue: true},
		{Name: "delay", Value: "30", HasValue: true},
	}, f.Options[0].Options)
}

func TestParseNamedOptionSet(t *testing.T) {
	f, err := Parse(strings.NewReader("myapp foreground,pty=noecho\n"))
	require.NoError(t, err)
	require.Equal(t, "myapp", f.Options[0].Name)
}

func TestParseSkipsComments(t *testing.T) {
	f, err := Parse(strings.NewReader("# a comment\nFOO=bar # trailing\n"))
	require.NoError(t, err)
	require.Equal(t, "bar", f.Env[0].Value)
}

func TestParseHandlesLineContinuation(t *testing.T) {
	f, err := Parse(strings.NewReader("* respawn,\\\nacceptable=10\n"))
	require.NoError(t, err)
	require.Len(t, f.Options[0].Options, 2)
}

func TestParseEscapedComma(t *testing.T) {
	f, err := Parse(strings.NewReader("* output=/tmp/a\\,b.log\n"))
	require.NoError(t, err)
	require.Equal(t, "/tmp/a,b.log", f.Options[0].Options[0].Value)
}

func TestParseBlankLinesIgnored(t *testing.T) {
	f, err := Parse(strings.NewReader("\n\nFOO=bar\n\n"))
	require.NoError(t, err)
	require.Len(t, f.Env, 1)
}
