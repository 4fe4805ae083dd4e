package sysinfo

import (
	"testing"

	"github.com/sicarius01/CryptoFeeder/internal/canonical"
)

func TestBuildStatsEvent(t *testing.T) {
	evt := BuildStatsEvent(12.5, 256, 1000, 1_400_000)
	if evt.Kind != canonical.SystemStats {
		t.Fatalf("Kind = %d, want SystemStats", evt.Kind)
	}
	if evt.Stats == nil {
		t.Fatalf("Stats payload missing")
	}
	if evt.Stats.CPUPercent != 12.5 || evt.Stats.MemMB != 256 {
		t.Errorf("unexpected resource fields: %+v", evt.Stats)
	}
	if evt.Stats.PacketsPerSec != 1000 || evt.Stats.BytesPerSec != 1_400_000 {
		t.Errorf("unexpected throughput fields: %+v", evt.Stats)
	}
}

func TestSamplerReportsCurrentProcess(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Skipf("process sampling unavailable: %v", err)
	}
	_, memMB, err := s.Sample()
	if err != nil {
		t.Skipf("sample unavailable on this platform: %v", err)
	}
	if memMB == 0 {
		t.Errorf("RSS reported as 0 MB for a running Go process")
	}
}
