package filemove

import (
	"fmt"
	"sync"

	"movetrack/internal/errors"
)

// Statistic keys reported by the move detection steps.
const (
	StatReportFiles = "reportFiles"
	StatDBFiles     = "dbFiles"
	StatAddedFiles  = "addedFiles"
	StatMovedFiles  = "movedFiles"
)

// Stat is one recorded statistic.
type Stat struct {
	Key   string `json:"key" yaml:"key" toml:"key"`
	Value int    `json:"value" yaml:"value" toml:"value"`
}

// Statistics collects counts reported by a step. Each key may be added once.
type Statistics struct {
	mu     sync.Mutex
	values map[string]int
	order  []string
}

// NewStatistics creates an empty statistics sink.
func NewStatistics() *Statistics {
	return &Statistics{values: make(map[string]int)}
}

// Add records a statistic. Adding the same key twice is an error.
func (s *Statistics) Add(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[key]; exists {
		return errors.NewCodedError(errors.InvariantViolation,
			fmt.Sprintf("statistic %q already recorded", key), nil, nil, nil)
	}
	s.values[key] = value
	s.order = append(s.order, key)
	return nil
}

// Get returns a recorded statistic.
func (s *Statistics) Get(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// All returns the statistics in the order they were recorded.
func (s *Statistics) All() []Stat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Stat, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Stat{Key: k, Value: s.values[k]})
	}
	return out
}
