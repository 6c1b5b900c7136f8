package loadshed

// Level 负载等级, ordered from least to most loaded
type Level int

const (
	LevelNormal Level = iota
	LevelElevated
	LevelHigh
	LevelCritical
)

// String returns NORMAL, ELEVATED, HIGH or CRITICAL
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelElevated:
		return "ELEVATED"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the level name in JSON
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// minPriority is the lowest priority still admitted at each level
var minPriority = map[Level]int{
	LevelNormal:   0,
	LevelElevated: 3,
	LevelHigh:     7,
	LevelCritical: 9,
}

// Admits reports whether a request of the given priority is served at this level
func (l Level) Admits(priority int) bool {
	if l == LevelNormal {
		return true
	}
	return priority >= minPriority[l]
}
