package orchestrator

import "fmt"

// Record is the write-once state of one run. It is a value: With returns a
// new Record and never modifies the receiver, so a Record can be handed to
// observers without copying.
type Record struct {
	idea    string
	entries map[Key]string
	step    Step
}

// NewRecord returns an empty record for idea.
func NewRecord(idea string) Record {
	return Record{idea: idea, step: StepNotStarted}
}

// With returns a copy of r with key set to text and the step advanced.
// Writing a key that is already set fails with ErrAlreadyWritten.
func (r Record) With(key Key, text string) (Record, error) {
	switch key {
	case KeyStrategy, KeyTechnical, KeyMarketing, KeyFinal:
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if _, ok := r.entries[key]; ok {
		return r, fmt.Errorf("%w: %s", ErrAlreadyWritten, key)
	}

	entries := make(map[Key]string, len(r.entries)+1)
	for k, v := range r.entries {
		entries[k] = v
	}
	entries[key] = text

	return Record{idea: r.idea, entries: entries, step: DoneStep(key)}, nil
}

// Failed returns a copy of r marked as failed. Entries are kept.
func (r Record) Failed() Record {
	r.step = StepFailed
	return r
}

// Get returns the text stored under key.
func (r Record) Get(key Key) (string, bool) {
	v, ok := r.entries[key]
	return v, ok
}

// Has reports whether key is set.
func (r Record) Has(key Key) bool {
	_, ok := r.entries[key]
	return ok
}

// Step returns the progress marker.
func (r Record) Step() Step { return r.step }

// Idea returns the idea the record was created for.
func (r Record) Idea() string { return r.idea }

// Completed returns the set entries keyed by result name. The final report
// is included only when withFinal is true.
func (r Record) Completed(withFinal bool) map[string]string {
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		if k == KeyFinal && !withFinal {
			continue
		}
		out[k.ResultName()] = v
	}
	return out
}
