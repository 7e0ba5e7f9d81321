package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeLineSink struct {
	lines []string
}

func (f *fakeLineSink) WriteLine(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func TestEmitSyslogLinesSplitsOnNewline(t *testing.T) {
	sink := &fakeLineSink{}
	emitSyslogLines(sink, []byte("first\nsecond\nthird"))

	require.Equal(t, []string{"first", "second", "third"}, sink.lines)
}

func TestEmitSyslogLinesSkipsEmptySegments(t *testing.T) {
	sink := &fakeLineSink{}
	emitSyslogLines(sink, []byte("one\n\ntwo\n"))

	require.Equal(t, []string{"one", "two"}, sink.lines)
}

func TestFDSetRoundTrip(t *testing.T) {
	set := &unix.FdSet{}
	setFD(set, 3)
	setFD(set, 17)

	require.True(t, isFDSet(set, 3))
	require.True(t, isFDSet(set, 17))
	require.False(t, isFDSet(set, 4))
}

func TestNewRelayTracksConfiguredOutputs(t *testing.T) {
	r := New(Config{PTYMasterFD: 5})
	require.Len(t, r.outputsOpen, 1)
	require.True(t, r.outputsOpen[5])
}

type fakeRouter struct {
	terminated bool
	sigchld    bool
}

func (f *fakeRouter) Terminated() bool      { return f.terminated }
func (f *fakeRouter) ReceivedSIGCHLD() bool { return f.sigchld }

func TestShouldReapNowOnlyUnderIgnoreEOF(t *testing.T) {
	r := New(Config{IgnoreEOF: false})
	require.False(t, r.shouldReapNow(&fakeRouter{sigchld: true}))

	r = New(Config{IgnoreEOF: true})
	require.False(t, r.shouldReapNow(&fakeRouter{sigchld: false}))
	require.True(t, r.shouldReapNow(&fakeRouter{sigchld: true}))
}
