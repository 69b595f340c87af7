package clearance

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

type Level string

const (
	L1           Level = "L1"
	L2           Level = "L2"
	L3           Level = "L3"
	L4           Level = "L4"
	L5           Level = "L5"
	SiteDirector Level = "SITE_DIRECTOR"
)

// Lowest is the level of any user without a stored record.
const Lowest = L1

var ErrInvalidLevel = errors.New("invalid clearance level")

var ordered = []Level{L1, L2, L3, L4, L5, SiteDirector}

var displayNames = map[Level]string{
	L1:           "L1",
	L2:           "L2",
	L3:           "L3",
	L4:           "L4",
	L5:           "L5",
	SiteDirector: "Site Director",
}

// Levels returns every level, lowest first.
func Levels() []Level {
	return append([]Level(nil), ordered...)
}

// Rank is 1 for L1 through 6 for SITE_DIRECTOR, 0 for unknown tags.
func (l Level) Rank() int {
	for i, level := range ordered {
		if level == l {
			return i + 1
		}
	}
	return 0
}

func (l Level) Valid() bool {
	return l.Rank() > 0
}

func (l Level) DisplayName() string {
	if name, ok := displayNames[l]; ok {
		return name
	}
	return string(l)
}

// Parse accepts a tag in any case or a display name.
func Parse(value string) (Level, error) {
	trimmed := strings.TrimSpace(value)
	for _, level := range ordered {
		if strings.EqualFold(trimmed, string(level)) || strings.EqualFold(trimmed, displayNames[level]) {
			return level, nil
		}
	}
	return "", ErrInvalidLevel
}

var roleLevelRegex = regexp.MustCompile(`(?i)^(?:level-|l)(\d+)\b`)

// ParseRoleLevel extracts N from role names such as "Level-4", "LEVEL-10 | Staff" or "L3".
func ParseRoleLevel(name string) (int, bool) {
	match := roleLevelRegex.FindStringSubmatch(strings.TrimSpace(name))
	if match == nil {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return value, true
}

// HighestLevel is the maximum parsed level across names, or 0 when none match.
func HighestLevel(names []string) int {
	highest := 0
	for _, name := range names {
		if value, ok := ParseRoleLevel(name); ok && value > highest {
			highest = value
		}
	}
	return highest
}
