// Package expand implements the shell-lite path/string expansion (§4.10):
// $NAME / ${NAME} environment substitution and ~/~user home-directory
// substitution. No globbing, no command substitution, no quoting beyond
// what's described below.
//
// Grounded on original_source/daemon/daemon.c's expand(). Callers apply
// it to every config-file value (numeric option values included) and,
// on the command line, only to --env assignments and the file-path form
// of --output/--stdout/--stderr; other command-line option arguments are
// used unexpanded.
package expand

import (
	"os"
	"os/user"
	"strings"
)

// Expand applies $NAME/${NAME} and ~/~user substitution to input.
// envEnabled gates environment-variable expansion: the spec disables it
// for uid 0 unless --idiot was given.
func Expand(input string, envEnabled bool) string {
	var b strings.Builder
	runes := []rune(input)

	atWordStart := true
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch {
		case c == '$' && envEnabled:
			name, consumed := scanVarName(runes[i+1:])
			if consumed == 0 {
				b.WriteRune(c)
				atWordStart = false
				continue
			}
			b.WriteString(os.Getenv(name))
			i += consumed
			atWordStart = false

		case c == '~' && atWordStart:
			name, consumed := scanUserName(runes[i+1:])
			home, ok := homeDirFor(name)
			if !ok {
				b.WriteRune(c)
				atWordStart = false
				continue
			}
			b.WriteString(home)
			i += consumed
			atWordStart = false

		default:
			b.WriteRune(c)
			atWordStart = c == ' ' || c == '\t' || c == ':' || c == '='
		}
	}

	return b.String()
}

// scanVarName parses a $NAME or ${NAME} reference from the start of rest,
// returning the variable name and the number of runes consumed from rest
// (not counting the leading '$').
func scanVarName(rest []rune) (string, int) {
	if len(rest) == 0 {
		return "", 0
	}

	if rest[0] == '{' {
		for j := 1; j < len(rest); j++ {
			if rest[j] == '}' {
				return string(rest[1:j]), j + 1
			}
		}
		return "", 0
	}

	end := 0
	for end < len(rest) && isNameRune(rest[end]) {
		end++
	}
	if end == 0 {
		return "", 0
	}
	return string(rest[:end]), end
}

// scanUserName parses an optional username immediately following '~'.
func scanUserName(rest []rune) (string, int) {
	end := 0
	for end < len(rest) && isNameRune(rest[end]) {
		end++
	}
	return string(rest[:end]), end
}

func isNameRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

func homeDirFor(name string) (string, bool) {
	if name == "" {
		current, err := user.Current()
		if err != nil {
			return "", false
		}
		return current.HomeDir, true
	}

	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}
