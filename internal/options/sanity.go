package options

import (
	"fmt"
	"time"

	"github.com/coreward/daemon/internal/respawn"
)

// These hold the min/max table from §4.6, enforced at
// option-parse time unless idiot mode is active for uid 0.
var (
	minAcceptable = 10 * time.Second
	minAttempts   = 0
	maxAttempts   = 100
	minDelay      = 10 * time.Second
	minLimit      = 0
)

// ClampBounds enforces §4.6's min/max table, skipped entirely when
// idiotMode is true (idiot mode is only grantable when real uid is 0,
// enforced by the caller before this is reached).
func ClampBounds(o *Options, idiotMode bool) {
	if idiotMode {
		return
	}

	if o.AcceptableSec < minAcceptable {
		o.AcceptableSec = minAcceptable
	}
	if o.AttemptsMax < minAttempts {
		o.AttemptsMax = minAttempts
	}
	if o.AttemptsMax > maxAttempts {
		o.AttemptsMax = maxAttempts
	}
	if o.DelaySec < minDelay {
		o.DelaySec = minDelay
	}
	if o.LimitBursts < minLimit {
		o.LimitBursts = minLimit
	}
}

// SanityCheck implements §4.9 step 6: cross-option consistency checks
// that don't belong to any single flag's own validation.
func SanityCheck(o *Options) error {
	controlModes := 0
	for _, on := range []bool{o.Running, o.Restart, o.Stop, o.Signal != "", o.List} {
		if on {
			controlModes++
		}
	}
	if controlModes > 1 {
		return fmt.Errorf("options: --running/--restart/--stop/--signal/--list are mutually exclusive")
	}
	if controlModes == 1 && !o.List && o.Name == "" {
		return fmt.Errorf("options: control-plane operations require --name")
	}

	if o.List && o.Name != "" {
		return fmt.Errorf("options: --list and --name are incompatible")
	}

	if o.PTY && !o.Foreground {
		return fmt.Errorf("options: --pty requires --foreground")
	}

	if o.IgnoreEOF && o.ReadEOF {
		return fmt.Errorf("options: --ignore-eof and --read-eof are mutually exclusive")
	}

	// §4.9 step 6 / sanity_check(): --acceptable, --attempts, --delay and
	// --limit only make sense alongside --respawn. Detected the same way
	// the original does - by comparing against the unclamped defaults,
	// since any other value can only have come from the option being set.
	defaults := respawn.DefaultBounds()
	if !o.Respawn {
		if o.AcceptableSec != defaults.AcceptableSec {
			return fmt.Errorf("options: --respawn is required for --acceptable")
		}
		if o.AttemptsMax != defaults.AttemptsMax {
			return fmt.Errorf("options: --respawn is required for --attempts")
		}
		if o.DelaySec != defaults.DelaySec {
			return fmt.Errorf("options: --respawn is required for --delay")
		}
		if o.LimitBursts != defaults.LimitBursts {
			return fmt.Errorf("options: --respawn is required for --limit")
		}
	}

	if o.Safe && o.Unsafe {
		return fmt.Errorf("options: --safe and --unsafe are incompatible")
	}

	if o.Config != "" && o.NoConfig {
		return fmt.Errorf("options: --config and --noconfig are incompatible")
	}

	if o.Command == "" && len(o.Argv) == 0 && controlModes == 0 {
		return fmt.Errorf("options: no command given")
	}

	return nil
}
