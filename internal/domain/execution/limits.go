package execution

import "time"

// RunLimits bounds a single program execution. Zero fields mean no limit.
type RunLimits struct {
	TimeLimit        time.Duration
	MemoryLimitBytes int64
}

// Over returns defaults with every positive field of l applied on top.
// Negative fields are treated as unset.
func (l RunLimits) Over(defaults RunLimits) RunLimits {
	if l.TimeLimit > 0 {
		defaults.TimeLimit = l.TimeLimit
	}
	if l.MemoryLimitBytes > 0 {
		defaults.MemoryLimitBytes = l.MemoryLimitBytes
	}
	return defaults
}
