package ngl

import (
	"time"
)

const (
	// Channel is the terminal log channel for bulk sends.
	Channel = "ngl"

	MinCount = 1
	MaxCount = 50

	// AttemptDelay is the pause after every attempt except the last.
	AttemptDelay = 1500 * time.Millisecond
)

// Attempt is the outcome of one submission. Immutable once appended to a Run.
type Attempt struct {
	Seq    int       `json:"seq"`
	OK     bool      `json:"ok"`
	Err    string    `json:"error,omitempty"`
	Status int       `json:"status,omitempty"` // 0 when no response was received
	At     time.Time `json:"at"`
}

// Run is the ordered result of one bulk send. len(Attempts) == Count.
type Run struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Count      int       `json:"count"`
	Attempts   []Attempt `json:"attempts"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// Outcome summarizes a run for the final log line.
type Outcome string

const (
	OutcomeAll     Outcome = "all"
	OutcomePartial Outcome = "partial"
	OutcomeNone    Outcome = "none"
)

func (r *Run) Succeeded() int {
	n := 0
	for _, a := range r.Attempts {
		if a.OK {
			n++
		}
	}
	return n
}

func (r *Run) Failed() int { return len(r.Attempts) - r.Succeeded() }

// SuccessRate is the percentage of successful attempts (0 for an empty run).
func (r *Run) SuccessRate() float64 {
	if r.Count <= 0 {
		return 0
	}
	return float64(r.Succeeded()) / float64(r.Count) * 100
}

func (r *Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

func (r *Run) Outcome() Outcome {
	ok := r.Succeeded()
	switch {
	case r.Count > 0 && ok == r.Count:
		return OutcomeAll
	case ok > 0:
		return OutcomePartial
	default:
		return OutcomeNone
	}
}

// Observer receives progress and log lines synchronously from Run.
type Observer interface {
	OnProgress(current, total int)
	OnLogLine(channel, text string)
}

type nopObserver struct{}

func (nopObserver) OnProgress(int, int)      {}
func (nopObserver) OnLogLine(string, string) {}
