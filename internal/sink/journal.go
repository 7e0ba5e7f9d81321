package sink

import (
	"github.com/coreos/go-systemd/v22/journal"
)

// JournalSink forwards lines to the systemd journal (the dependency was
// surfaced from stephen-fox-cyberdaemon's go.mod, also exercised by
// Talismancer-gvisor-ligolo). No other package in this repository
// constructs one.
type JournalSink struct {
	priority journal.Priority
	vars     map[string]string
}

// NewJournalSink builds a journal sink at the given priority, tagged
// with the named instance. JournalAvailable should be checked by the
// caller before relying on it; WriteLine returns journal.Send's error
// when the journal socket doesn't exist.
func NewJournalSink(priority journal.Priority, name string) *JournalSink {
	return &JournalSink{priority: priority, vars: map[string]string{"DAEMON_NAME": name}}
}

// JournalAvailable reports whether the local journald socket can be
// reached.
func JournalAvailable() bool {
	return journal.Enabled()
}

func (s *JournalSink) WriteLine(line string) error {
	return journal.Send(line, s.priority, s.vars)
}
