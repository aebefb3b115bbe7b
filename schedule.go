package drillkit

import (
	"fmt"
	"time"
)

// DefaultSequence is the review ladder in seconds: seconds, seconds, minutes, an hour, five hours.
var DefaultSequence = []int{5, 25, 120, 3600, 18000}

// ReviewState is the timer state of a single reviewable item.
type ReviewState struct {
	// IntervalSeconds is the current wait, always a member of the scheduler's sequence.
	IntervalSeconds int `json:"intervalSeconds"`
	// StartedAt is the epoch millisecond at which the interval began. Zero means never started.
	StartedAt int64 `json:"startedAt,omitempty"`
}

// Started reports whether the interval has a start time.
func (s ReviewState) Started() bool {
	return s.StartedAt != 0
}

// Scheduler computes escalating review intervals over a fixed ascending sequence.
// All methods are pure functions of their arguments; the current time is always passed in.
type Scheduler struct {
	seq []int
}

// NewScheduler creates a Scheduler for the given sequence of interval lengths in seconds.
// The sequence must be non-empty, positive and strictly ascending.
func NewScheduler(seq []int) (*Scheduler, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSequence)
	}
	for i, v := range seq {
		if v <= 0 {
			return nil, fmt.Errorf("%w: element %d is %d, must be positive", ErrInvalidSequence, i, v)
		}
		if i > 0 && v <= seq[i-1] {
			return nil, fmt.Errorf("%w: element %d (%d) is not greater than %d", ErrInvalidSequence, i, v, seq[i-1])
		}
	}

	cp := make([]int, len(seq))
	copy(cp, seq)
	return &Scheduler{seq: cp}, nil
}

// MustScheduler is like NewScheduler but panics on an invalid sequence.
func MustScheduler(seq []int) *Scheduler {
	s, err := NewScheduler(seq)
	if err != nil {
		panic(err)
	}
	return s
}

// Sequence returns a copy of the configured sequence.
func (s *Scheduler) Sequence() []int {
	cp := make([]int, len(s.seq))
	copy(cp, s.seq)
	return cp
}

// Len returns the number of steps in the ladder.
func (s *Scheduler) Len() int {
	return len(s.seq)
}

// New returns the state of an item that has never been reviewed.
func (s *Scheduler) New() ReviewState {
	return ReviewState{IntervalSeconds: s.seq[0]}
}

// Normalize clamps a missing or negative interval to the first step.
func (s *Scheduler) Normalize(state ReviewState) ReviewState {
	if state.IntervalSeconds <= 0 {
		state.IntervalSeconds = s.seq[0]
	}
	if state.StartedAt < 0 {
		state.StartedAt = 0
	}
	return state
}

// Step returns the index of the state's interval in the sequence, or 0 if it is not a member.
func (s *Scheduler) Step(state ReviewState) int {
	for i, v := range s.seq {
		if v == state.IntervalSeconds {
			return i
		}
	}
	return 0
}

// Remaining returns the whole seconds left before the item is due again.
// A state that was never started is always due.
func (s *Scheduler) Remaining(state ReviewState, now time.Time) int {
	state = s.Normalize(state)
	if !state.Started() {
		return 0
	}

	elapsed := floorDiv(now.UnixMilli()-state.StartedAt, 1000)
	rem := int64(state.IntervalSeconds) - elapsed
	if rem < 0 {
		return 0
	}
	// Clock moved backwards; never report more than one full interval.
	if rem > int64(state.IntervalSeconds) {
		return state.IntervalSeconds
	}
	return int(rem)
}

// Due reports whether the item is ready to review.
func (s *Scheduler) Due(state ReviewState, now time.Time) bool {
	return s.Remaining(state, now) == 0
}

// Advance moves the state one step up the ladder and starts the new interval at now.
// The last step saturates. An interval that is not in the sequence is treated as step 0.
func (s *Scheduler) Advance(state ReviewState, now time.Time) ReviewState {
	next := s.Step(state) + 1
	if next > len(s.seq)-1 {
		next = len(s.seq) - 1
	}
	return ReviewState{
		IntervalSeconds: s.seq[next],
		StartedAt:       now.UnixMilli(),
	}
}

// Reset returns the item to the first step with no running interval.
func (s *Scheduler) Reset(ReviewState) ReviewState {
	return s.New()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
