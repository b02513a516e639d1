package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// sampler lets num out of every den calls through. A zero ratio lets everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seq   atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	num = min(num, den)
	s.ratio.Store(uint64(num)<<32 | uint64(uint32(den)))
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if den == 0 {
		return true
	}
	return (s.seq.Add(1)-1)%den < num
}

// parseSample reads "num/den" or "den" (one in den). Empty means the default
// ratio; zero or a negative value disables sampling.
func parseSample(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSampleNum, defaultSampleDen
	}
	if a, b, ok := strings.Cut(raw, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return defaultSampleNum, defaultSampleDen
		}
		return num, den
	}
	den, err := strconv.Atoi(raw)
	if err != nil {
		return defaultSampleNum, defaultSampleDen
	}
	return 1, den
}
