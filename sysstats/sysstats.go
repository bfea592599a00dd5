// Package sysstats reads point-in-time memory and load figures from the host.
package sysstats

import (
	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("system stats not supported on this platform")

// MemInfo holds memory figures in KiB.
type MemInfo struct {
	Total uint64
	Free  uint64
}

func (m MemInfo) Used() uint64 {
	if m.Free > m.Total {
		return 0
	}
	return m.Total - m.Free
}

// UsedPercent is zero when Total is zero.
func (m MemInfo) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used()) / float64(m.Total) * 100
}

// Sysinfo reads host statistics from the kernel.
type Sysinfo struct{}

func (Sysinfo) Memory() (MemInfo, error) {
	return memory()
}

func (Sysinfo) LoadAverage() (float64, error) {
	return loadAverage()
}
