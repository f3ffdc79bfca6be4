package dynflag

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LoadConfig applies one directive per line, in textual order:
//
//	+pattern    activate
//	-pattern    deactivate
//	!pattern    unhook
//	?pattern    rehook
//
// Blank lines and lines starting with # are skipped. LoadConfig stops at
// the first bad directive; directives already applied stay applied. It
// returns the number of directives applied.
func (r *Registry) LoadConfig(src io.Reader) (int, error) {
	sc := bufio.NewScanner(src)
	applied := 0

	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		op, pattern := line[0], strings.TrimSpace(line[1:])

		var err error
		switch op {
		case '+':
			_, err = r.Activate(pattern)
		case '-':
			_, err = r.Deactivate(pattern)
		case '!':
			_, err = r.Unhook(pattern)
		case '?':
			_, err = r.Rehook(pattern)
		default:
			return applied, fmt.Errorf("dynflag: config line %d: unknown directive %q", lineno, string(op))
		}
		if err != nil {
			return applied, fmt.Errorf("dynflag: config line %d: %w", lineno, err)
		}
		applied++
	}

	if err := sc.Err(); err != nil {
		return applied, err
	}
	return applied, nil
}
