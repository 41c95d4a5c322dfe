package settings

import (
	"fmt"
	"time"
)

// ChangeAction tells whether a change record describes a value or a key change.
type ChangeAction int

const (
	ChangeValue ChangeAction = iota
	ChangeKey
)

func (a ChangeAction) String() string {
	if a == ChangeKey {
		return "key"
	}
	return "value"
}

// Change is an immutable record of a single mutation. Records exist for
// diagnostics and are never replayed.
type Change struct {
	Key    string       `json:"key"`
	Action ChangeAction `json:"action"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	At     time.Time    `json:"at"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s: %q -> %q", c.Action, c.Key, c.From, c.To)
}

// describe renders a value for a change record.
func describe(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// changeLog is an append-only list of changes. MaxChanges is a soft cap:
// crossing it is reported but no entry is dropped.
type changeLog struct {
	entries []Change
}

// append adds batch and returns the new length of the log.
func (l *changeLog) append(batch []Change) int {
	l.entries = append(l.entries, batch...)
	return len(l.entries)
}

func (l *changeLog) clear() {
	l.entries = nil
}

func (l *changeLog) snapshot() []Change {
	out := make([]Change, len(l.entries))
	copy(out, l.entries)
	return out
}
