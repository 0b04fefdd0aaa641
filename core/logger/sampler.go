package logger

import (
	"strconv"
	"strings"
	"sync"
)

// debugSampler passes numerator out of every denominator debug events. Each
// component keeps its own counter so a busy update stream does not starve the
// background jobs.
type debugSampler struct {
	mu          sync.Mutex
	numerator   int
	denominator int
	counters    map[string]int
}

func newDebugSampler(numerator, denominator int) *debugSampler {
	s := &debugSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio and restarts every component's window.
// A non-positive part disables sampling so every event passes.
func (s *debugSampler) Set(numerator, denominator int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int)
	if numerator <= 0 || denominator <= 0 {
		s.numerator, s.denominator = 0, 0
		return
	}
	s.numerator = min(numerator, denominator)
	s.denominator = denominator
}

// Allow reports whether the next debug event of component passes.
func (s *debugSampler) Allow(component string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denominator <= 0 {
		return true
	}
	n := s.counters[component] + 1
	if n > s.denominator {
		n = 1
	}
	s.counters[component] = n
	return n <= s.numerator
}

// parseRatioSpec reads "n/d", a bare "d" meaning 1/d, or "all".
// Anything else yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return 0, 0
	case "all":
		return 1, 1
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
