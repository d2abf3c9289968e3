package orchestrator

import "fmt"

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event without blocking. If the channel is full, the
// event is dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel. No run may emit afterwards.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	label := StepLabel(event.Key)
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", label)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", label)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", label)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", label, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
}

// StepLabel names the work behind a record key for display.
func StepLabel(k Key) string {
	switch k {
	case KeyStrategy:
		return "business strategy"
	case KeyTechnical:
		return "technical plan"
	case KeyMarketing:
		return "marketing strategy"
	case KeyFinal:
		return "final report"
	default:
		return string(k)
	}
}

// FormatRunHeader formats the line printed before a run's progress.
// Returns: "[{runID}] Analyzing: {idea}" with the idea cut to 60 characters.
func FormatRunHeader(runID, idea string) string {
	r := []rune(idea)
	if len(r) > 60 {
		idea = string(r[:57]) + "..."
	}
	return fmt.Sprintf("[%s] Analyzing: %s", runID, idea)
}
