package sysstats

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// kernel load averages are fixed point with 16 fractional bits
const loadScale = 1 << 16

var sysinfo = unix.Sysinfo

func memory() (MemInfo, error) {
	var info unix.Sysinfo_t
	if err := sysinfo(&info); err != nil {
		return MemInfo{}, errors.Wrap(err, "unable to read sysinfo")
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return MemInfo{
		Total: uint64(info.Totalram) * unit / 1024,
		Free:  uint64(info.Freeram) * unit / 1024,
	}, nil
}

func loadAverage() (float64, error) {
	var info unix.Sysinfo_t
	if err := sysinfo(&info); err != nil {
		return 0, errors.Wrap(err, "unable to read sysinfo")
	}
	return float64(info.Loads[0]) / loadScale, nil
}
