package match

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is a fixed match configuration loaded at startup: a name and the
// exact player count a room of this mode holds.
type Mode struct {
	Name    string
	Players int
}

// ParseModes reads a mode table from a "name:players" comma list, for
// example "1v1:2,2v2:4,5v5:10". Player counts must be positive.
func ParseModes(s string) ([]Mode, error) {
	parts := strings.Split(s, ",")
	modes := make([]Mode, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		name, countStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("match: bad mode entry %q", part)
		}
		count, err := strconv.Atoi(countStr)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("match: bad player count in %q", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("match: duplicate mode %q", name)
		}
		seen[name] = true
		modes = append(modes, Mode{Name: name, Players: count})
	}
	return modes, nil
}

// DefaultModes mirrors the shipped game modes.
func DefaultModes() []Mode {
	return []Mode{
		{Name: "1v1", Players: 2},
		{Name: "2v2", Players: 4},
		{Name: "5v5", Players: 10},
	}
}
