package consumer

import "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/kafka"

type entryState int

const (
	statePending entryState = iota
	stateDone
	stateFailed
)

type entry struct {
	ev    kafka.Event
	state entryState
}

// cursor tracks the offsets of one partition that were dispatched in the
// current generation, in delivery order. Only the loop goroutine touches it.
//
// Once an offset fails the partition is blocked: nothing at or after it can
// be committed until the cursor is replaced by a newer generation, so later
// offsets are no longer tracked.
type cursor struct {
	generation int32
	entries    []entry
	blocked    bool
}

func newCursor(generation int32) *cursor {
	return &cursor{generation: generation}
}

// track records a dispatched event. Payloads are not retained.
func (c *cursor) track(ev kafka.Event) {
	if c.blocked {
		return
	}
	ev.Value = nil
	ev.Key = nil
	c.entries = append(c.entries, entry{ev: ev})
}

// resolve records the outcome of offset and returns the event whose offset
// should now be committed, if any, together with the number of successful
// offsets that can no longer be committed because an earlier offset failed.
func (c *cursor) resolve(offset int64, ok bool) (commit *kafka.Event, held int) {
	idx := -1
	for i := range c.entries {
		if c.entries[i].ev.Offset == offset {
			idx = i
			break
		}
	}
	if idx < 0 {
		if ok && c.blocked {
			held = 1
		}
		return nil, held
	}

	if ok {
		c.entries[idx].state = stateDone
	} else {
		c.entries[idx].state = stateFailed
		for _, e := range c.entries[idx+1:] {
			if e.state == stateDone {
				held++
			}
		}
		c.entries = c.entries[:idx+1]
		c.blocked = true
	}

	for len(c.entries) > 0 && c.entries[0].state == stateDone {
		ev := c.entries[0].ev
		commit = &ev
		c.entries = c.entries[1:]
	}
	return commit, held
}

// outstanding reports how many tracked offsets have no outcome yet.
func (c *cursor) outstanding() int {
	n := 0
	for _, e := range c.entries {
		if e.state == statePending {
			n++
		}
	}
	return n
}
