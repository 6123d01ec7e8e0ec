// Package command screens bash command strings for a small set of patterns
// that are almost never intentional in an agent-driven session — wholesale
// filesystem destruction, raw disk writes, fork bombs — before exec hands
// them to a real shell.
package command

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fwojciec/agentruntime/shell"
)

// simpleCommandSep splits a command line into simple commands on the
// metacharacters bash uses to sequence or pipe commands. This is a
// best-effort approximation, not a full shell grammar: it exists so each
// simple command's leading words can be screened independently, not to
// parse arbitrary shell syntax correctly.
var simpleCommandSep = regexp.MustCompile(`[;&|]+`)

// forkBomb matches the canonical `:(){ :|:& };:` fork bomb, tolerating
// extra internal whitespace.
var forkBomb = regexp.MustCompile(`:\s*\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)

var rootLikePaths = map[string]bool{
	"/": true, "/*": true, "~": true, "~/": true, "$HOME": true, "${HOME}": true,
}

// Validate returns a non-nil error describing why cmd should not be
// executed, or nil if it finds no blocked pattern. It does not attempt to
// catch every way a command could be destructive — only the handful of
// patterns that are essentially never a legitimate step in an agent
// session.
func Validate(cmd string) error {
	if forkBomb.MatchString(cmd) {
		return fmt.Errorf("refusing to run command: looks like a fork bomb")
	}

	for _, segment := range simpleCommandSep.Split(cmd, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		words, err := shell.Split(segment)
		if err != nil || len(words) == 0 {
			continue
		}
		if err := validateSimpleCommand(words); err != nil {
			return err
		}
	}
	return nil
}

func validateSimpleCommand(words []string) error {
	name := words[0]
	args := words[1:]

	switch {
	case strings.HasPrefix(name, "mkfs"):
		return fmt.Errorf("refusing to run command: %s formats a filesystem", name)

	case name == "rm":
		recursive, force, root := false, false, false
		for _, a := range args {
			if a == "-r" || a == "-R" || a == "--recursive" || strings.Contains(a, "r") && strings.HasPrefix(a, "-") {
				recursive = true
			}
			if a == "-f" || a == "--force" || strings.Contains(a, "f") && strings.HasPrefix(a, "-") {
				force = true
			}
			if rootLikePaths[a] {
				root = true
			}
		}
		if recursive && force && root {
			return fmt.Errorf("refusing to run command: recursive force-delete of a root-level path")
		}

	case name == "dd":
		for _, a := range args {
			if strings.HasPrefix(a, "of=/dev/") {
				return fmt.Errorf("refusing to run command: dd writing directly to a device (%s)", a)
			}
		}
	}
	return nil
}
