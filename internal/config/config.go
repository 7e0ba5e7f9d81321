// Package config loads daemon.conf-style configuration files (§6): a
// bespoke line grammar of VAR=VALUE environment assignments and
// NAME_OR_STAR option lists, with backslash continuation/escaping and
// '#' comments.
//
// Grounded on original_source/daemon/daemon.c's config-file reader.
// The tokenizer stays on bufio.Scanner/strings rather than a
// third-party parsing library: the grammar is small, line-oriented, and
// specific to this one file format (backslash-continued lines, a
// fixed two-shape-per-line structure) - no example repo in the pack
// parses anything resembling it, and reaching for a generic config
// library (viper, toml, yaml) would mean inventing a translation layer
// with no grounding, not saving real work.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coreward/daemon/internal/expand"
	"github.com/coreward/daemon/internal/safety"
)

// EnvAssignment is a VAR=VALUE line.
type EnvAssignment struct {
	Name  string
	Value string
}

// OptionSet is one NAME_OR_STAR opt1,opt2=val,... line. Name is "*" for
// the generic (applies-to-everyone) form.
type OptionSet struct {
	Name    string
	Options []Option
}

// Option is one long-option-name[=value] pair from an OptionSet line.
type Option struct {
	Name  string
	Value string
	HasValue bool
}

// File is the parsed contents of one config file.
type File struct {
	Env     []EnvAssignment
	Options []OptionSet
}

// candidatePaths returns the system-then-user, generic-then-program
// search list from §6, in the order they should be applied (later
// entries override earlier ones for the same option).
func candidatePaths(home string) []string {
	paths := []string{"/etc/daemon.conf"}
	if entries, err := os.ReadDir("/etc/daemon.conf.d"); err == nil {
		for _, e := range entries {
			if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				paths = append(paths, "/etc/daemon.conf.d/"+e.Name())
			}
		}
	}
	if home != "" {
		paths = append(paths, home+"/.daemonrc")
		if entries, err := os.ReadDir(home + "/.daemonrc.d"); err == nil {
			for _, e := range entries {
				if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
					paths = append(paths, home+"/.daemonrc.d/"+e.Name())
				}
			}
		}
	}
	return paths
}

// LoadAll reads every applicable config file in order, skipping ones
// that don't exist (silent, per §7's ENOENT policy) and ones that fail
// the safety classifier (warned, via warn, and skipped).
func LoadAll(home string, enforceSafety bool, warn func(string)) ([]*File, error) {
	var files []*File

	for _, path := range candidatePaths(home) {
		if enforceSafety {
			verdict, err := safety.CheckPath(path)
			if err != nil {
				continue
			}
			if !verdict.Safe {
				if warn != nil {
					warn(fmt.Sprintf("config: skipping %s: %s", path, verdict.Reason))
				}
				continue
			}
		}

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("config: open %s: %w", path, err)
		}

		parsed, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		files = append(files, parsed)
	}

	return files, nil
}

// Parse reads one config file's contents per §6's grammar.
func Parse(r io.Reader) (*File, error) {
	file := &File{}

	scanner := bufio.NewScanner(r)
	var pending string

	for scanner.Scan() {
		line := scanner.Text()

		if pending != "" {
			line = pending + line
			pending = ""
		}

		stripped, continued := stripTrailingContinuation(line)
		if continued {
			pending = stripped
			continue
		}
		line = stripped

		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := parseLine(file, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return file, nil
}

// stripTrailingContinuation reports whether line ends in an
// unescaped backslash, meaning the next line continues it.
func stripTrailingContinuation(line string) (string, bool) {
	if !strings.HasSuffix(line, "\\") {
		return line, false
	}
	// An escaped backslash ("\\\\") does not count as continuation;
	// only distinguishing the immediately preceding rune matters here
	// since a line ending "\\\\" means a literal backslash then EOL.
	trimmed := strings.TrimSuffix(line, "\\")
	if strings.HasSuffix(trimmed, "\\") {
		return line, false
	}
	return trimmed, true
}

// stripComment removes a '#'-led comment to end-of-line, honoring
// backslash-escaping of '#'.
func stripComment(line string) string {
	var b strings.Builder
	escaped := false
	for _, r := range line {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			b.WriteRune(r)
			continue
		}
		if r == '#' {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseLine(file *File, line string) error {
	if isEnvAssignment(line) {
		name, value, err := splitEnvAssignment(line)
		if err != nil {
			return err
		}
		file.Env = append(file.Env, EnvAssignment{Name: name, Value: expand.Expand(value, true)})
		return nil
	}

	set, err := parseOptionSet(line)
	if err != nil {
		return err
	}
	file.Options = append(file.Options, set)
	return nil
}

// isEnvAssignment distinguishes "VAR=VALUE" from "NAME_OR_STAR opts...":
// an env assignment is a single whitespace-free token whose text before
// the first '=' is a valid variable name.
func isEnvAssignment(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 1 {
		return false
	}
	eq := strings.IndexByte(line, '=')
	if eq <= 0 {
		return false
	}
	name := line[:eq]
	return isValidVarName(name)
}

func isValidVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func splitEnvAssignment(line string) (name, value string, err error) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", fmt.Errorf("config: malformed assignment %q", line)
	}
	return line[:eq], line[eq+1:], nil
}

func parseOptionSet(line string) (OptionSet, error) {
	fields := splitFirstToken(line)
	if len(fields) != 2 {
		return OptionSet{}, fmt.Errorf("config: malformed line %q", line)
	}

	name := fields[0]
	rest := strings.TrimSpace(fields[1])

	opts, err := splitOptions(rest)
	if err != nil {
		return OptionSet{}, err
	}

	return OptionSet{Name: name, Options: opts}, nil
}

// splitFirstToken splits line on the first run of whitespace.
func splitFirstToken(line string) []string {
	trimmed := strings.TrimLeft(line, " \t")
	idx := strings.IndexAny(trimmed, " \t")
	if idx < 0 {
		return []string{trimmed}
	}
	return []string{trimmed[:idx], trimmed[idx+1:]}
}

// splitOptions splits a comma-separated option list honoring
// backslash-escaped commas, trimming surrounding whitespace per item.
func splitOptions(rest string) ([]Option, error) {
	var opts []Option
	var cur strings.Builder
	escaped := false

	flush := func() error {
		item := strings.TrimSpace(cur.String())
		cur.Reset()
		if item == "" {
			return nil
		}
		opts = append(opts, parseOption(item))
		return nil
	}

	for _, r := range rest {
		if escaped {
			cur.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == ',' {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		cur.WriteRune(r)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return opts, nil
}

func parseOption(item string) Option {
	eq := strings.IndexByte(item, '=')
	if eq < 0 {
		return Option{Name: item}
	}
	return Option{Name: item[:eq], Value: expand.Expand(item[eq+1:], true), HasValue: true}
}
