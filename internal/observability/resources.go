package observability

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// ResourceUsage is a point-in-time snapshot of this process's footprint,
// attached to periodic progress log lines.
type ResourceUsage struct {
	CPUPercent float64
	RSSBytes   uint64
	NumThreads int32
}

// ResourceSampler reports CPU and memory usage for the current process.
type ResourceSampler struct {
	proc *process.Process
}

// NewResourceSampler creates a sampler bound to the current PID. A nil
// sampler is returned when the platform cannot provide process stats;
// callers treat that as "no stats available".
func NewResourceSampler() *ResourceSampler {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}
	return &ResourceSampler{proc: p}
}

// Sample returns current usage. Individual probe failures leave the
// corresponding field zero rather than failing the whole sample.
func (s *ResourceSampler) Sample() ResourceUsage {
	var usage ResourceUsage
	if s == nil || s.proc == nil {
		return usage
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		usage.CPUPercent = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		usage.RSSBytes = mem.RSS
	}
	if n, err := s.proc.NumThreads(); err == nil {
		usage.NumThreads = n
	}
	return usage
}
