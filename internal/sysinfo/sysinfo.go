// Package sysinfo samples this process's own CPU and memory usage for the
// SystemStats operational event (wire.MsgSystemStats).
package sysinfo

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sicarius01/CryptoFeeder/internal/canonical"
)

// Sampler reports this process's own resource usage.
type Sampler struct {
	proc *process.Process
}

// New constructs a Sampler bound to the current process.
func New() (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: p}, nil
}

// Sample returns the current CPU percent (0-100, may exceed 100 on
// multi-core saturation) and resident memory in megabytes.
func (s *Sampler) Sample() (cpuPercent float64, memMB uint32, err error) {
	cpuPercent, err = s.proc.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, uint32(memInfo.RSS / (1024 * 1024)), nil
}

// BuildStatsEvent packages a sample plus externally tracked throughput
// counters into a canonical SystemEvent ready for the packet builder.
func BuildStatsEvent(cpuPercent float64, memMB uint32, packetsPerSec, bytesPerSec uint32) canonical.SystemEvent {
	return canonical.SystemEvent{
		Kind: canonical.SystemStats,
		Stats: &canonical.SystemStatsData{
			CPUPercent:    cpuPercent,
			MemMB:         memMB,
			PacketsPerSec: packetsPerSec,
			BytesPerSec:   bytesPerSec,
		},
	}
}
