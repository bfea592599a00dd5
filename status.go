package carburetor

import (
	"fmt"
	"github.com/pkg/errors"
	"strconv"
)

// status computes the reply line for a non-motor instruction. An error means
// the figure could not be read and nothing should be reported.
func (s *Server) status(kind Kind) (string, error) {
	switch kind {
	case KindQuery:
		return "Nice!", nil
	case KindBattery:
		level, ok := s.battery.Level()
		if !ok {
			return "Battery: unknown", nil
		}
		return fmt.Sprintf("Battery: %d%%", level), nil
	case KindMemory:
		mem, err := s.stats.Memory()
		if err != nil {
			return "", errors.Wrap(err, "unable to read memory info")
		}
		return fmt.Sprintf("Memory: %.0f%% (%d / %d)", mem.UsedPercent(), mem.Used(), mem.Total), nil
	case KindCpu:
		load, err := s.stats.LoadAverage()
		if err != nil {
			return "", errors.Wrap(err, "unable to read load average")
		}
		return "Cpu: " + strconv.FormatFloat(load, 'f', -1, 64), nil
	}
	return "", errors.Errorf("no status for %v", kind)
}
