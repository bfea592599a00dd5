//go:build !linux

package sysstats

func memory() (MemInfo, error) {
	return MemInfo{}, ErrUnsupported
}

func loadAverage() (float64, error) {
	return 0, ErrUnsupported
}
