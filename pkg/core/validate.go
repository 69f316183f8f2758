// pkg/core/validate.go
package core

import (
	"fmt"
	"strings"
)

// ValidateCoordinates reports whether (x, y) lies on the grid.
func ValidateCoordinates(x, y int) bool {
	return x >= GridMin && x <= GridMax && y >= GridMin && y <= GridMax
}

// ValidateDirection reports whether s is exactly one of N, S, E, W.
func ValidateDirection(s string) bool {
	switch Direction(s) {
	case North, South, East, West:
		return true
	}
	return false
}

// ValidateCommands reports whether cmds is non-empty and made only of f, b, l, r.
func ValidateCommands(cmds []string) bool {
	if len(cmds) == 0 {
		return false
	}
	for _, c := range cmds {
		switch Command(c) {
		case Forward, Backward, Left, Right:
		default:
			return false
		}
	}
	return true
}

// CommandStrings converts a command batch to its wire tokens.
func CommandStrings(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = string(c)
	}
	return out
}

// ParseCommands splits a compact token string ("ffrl", "f,f,r" or "f f r")
// into a command batch. Tokens are not checked here; see ValidateCommands.
func ParseCommands(s string) ([]Command, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("no commands given")
	}

	var fields []string
	if strings.ContainsAny(s, ", ") {
		fields = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	} else {
		for _, r := range s {
			fields = append(fields, string(r))
		}
	}

	cmds := make([]Command, 0, len(fields))
	for _, f := range fields {
		cmds = append(cmds, Command(f))
	}
	return cmds, nil
}
