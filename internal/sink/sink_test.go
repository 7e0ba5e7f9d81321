package sink

import (
	"log/syslog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSpecValid(t *testing.T) {
	p, err := ParseSpec("daemon.info")
	require.NoError(t, err)
	require.Equal(t, syslog.LOG_DAEMON|syslog.LOG_INFO, p)
}

func TestParseSpecCaseInsensitive(t *testing.T) {
	p, err := ParseSpec("LOCAL3.Err")
	require.NoError(t, err)
	require.Equal(t, syslog.LOG_LOCAL3|syslog.LOG_ERR, p)
}

func TestParseSpecRejectsUnknownFacility(t *testing.T) {
	_, err := ParseSpec("bogus.info")
	require.Error(t, err)
}

func TestParseSpecRejectsMalformed(t *testing.T) {
	_, err := ParseSpec("no-dot-here")
	require.Error(t, err)
}

func TestFileSinkAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	s, err := OpenFile(path)
	require.NoError(t, err)

	_, err = s.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}
