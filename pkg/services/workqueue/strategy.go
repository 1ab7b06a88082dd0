package workqueue

import "sync"

// ConcurrencyStrategy controls how tasks are allowed to start concurrently.
// The strategy tracks running tasks and decides whether a new one may start.
type ConcurrencyStrategy interface {
	// CanStart returns true if a task of the given kind can start now.
	CanStart(requiresLLM bool) bool
	// OnStart is called when a task starts.
	OnStart(requiresLLM bool)
	// OnComplete is called when a task finishes, whatever the outcome.
	OnComplete(requiresLLM bool)
}

// LimitStrategy allows up to maxLLM concurrent LLM tasks and up to maxData
// concurrent tasks that only touch the database.
type LimitStrategy struct {
	mu          sync.Mutex
	maxLLM      int
	maxData     int
	llmRunning  int
	dataRunning int
}

// NewLimitStrategy creates a strategy with the given per-kind limits.
// Limits below one are raised to one.
func NewLimitStrategy(maxLLM, maxData int) *LimitStrategy {
	if maxLLM < 1 {
		maxLLM = 1
	}
	if maxData < 1 {
		maxData = 1
	}
	return &LimitStrategy{maxLLM: maxLLM, maxData: maxData}
}

// NewSerializedStrategy runs one LLM task and one data task at a time.
func NewSerializedStrategy() *LimitStrategy {
	return NewLimitStrategy(1, 1)
}

func (s *LimitStrategy) CanStart(requiresLLM bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requiresLLM {
		return s.llmRunning < s.maxLLM
	}
	return s.dataRunning < s.maxData
}

func (s *LimitStrategy) OnStart(requiresLLM bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requiresLLM {
		s.llmRunning++
	} else {
		s.dataRunning++
	}
}

func (s *LimitStrategy) OnComplete(requiresLLM bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requiresLLM {
		if s.llmRunning > 0 {
			s.llmRunning--
		}
	} else if s.dataRunning > 0 {
		s.dataRunning--
	}
}
