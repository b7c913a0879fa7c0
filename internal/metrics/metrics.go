// Package metrics defines the small structured record a translated
// guest's runtime returns from run, trimmed to what an
// ahead-of-time-translated guest can actually observe: there is no
// interpretive dispatch loop to sample a hot-path histogram from, so this
// tier stops at coarse counters.
package metrics

// Metrics is populated by the runtime shim as a guest runs and returned
// alongside its exit code.
type Metrics struct {
	InstCount    uint64
	BlockCount   uint64
	CyclesApprox uint64
	HaltPC       uint64
	ExitCode     int
}
