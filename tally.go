package unpkg

import "errors"

// Tally accumulates the per-entry outcomes of a session.
type Tally struct {
	// Succeeded is the number of entries decoded without error.
	Succeeded int

	// Failed is the number of entries that yielded an error.
	Failed int

	// Failures holds every recorded error in the order it was recorded.
	Failures []*EntryError
}

// Record counts one entry outcome. A nil err is a success.
func (t *Tally) Record(err error) {
	if err == nil {
		t.Succeeded++
		return
	}
	t.Failed++
	var ee *EntryError
	if !errors.As(err, &ee) {
		ee = &EntryError{Err: err}
	}
	t.Failures = append(t.Failures, ee)
}

// Total returns the number of recorded outcomes.
func (t *Tally) Total() int {
	return t.Succeeded + t.Failed
}
