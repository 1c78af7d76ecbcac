package engine

import "fmt"

// ContextWindow is the bounded working history supplied to generation
// prompts. When an append pushes it past max, the oldest max-target+1
// entries are replaced atomically by one synthetic summary entry, so the
// window never exceeds max once Append returns. The summary entry starts
// out as a plain digest; the caller asks the provider for a real
// condensation and swaps the text in via Resolve. If that call fails the
// digest simply stays, which is the truncation fallback.
type ContextWindow struct {
	max     int
	target  int
	nextSeq func() int64

	entries     []Message
	compressing bool // one condensation request in flight at a time
	pendingSeq  int64
}

func NewContextWindow(max, target int, nextSeq func() int64) *ContextWindow {
	if target >= max {
		target = max / 2
	}
	return &ContextWindow{max: max, target: target, nextSeq: nextSeq}
}

func (w *ContextWindow) Len() int {
	return len(w.entries)
}

// Snapshot returns a copy of the current window. Turns work off the copy
// so a turn never observes the window mutated mid-computation.
func (w *ContextWindow) Snapshot() []Message {
	snap := make([]Message, len(w.entries))
	copy(snap, w.entries)
	return snap
}

// Append adds m to the window, compacting the oldest chunk if the window
// overflows. When a condensation request should be issued it returns the
// evicted chunk, the seq of the placeholder summary entry, and true.
// Overflows that happen while a request is already in flight are compacted
// with the digest only.
func (w *ContextWindow) Append(m Message) (chunk []Message, placeholderSeq int64, request bool) {
	w.entries = append(w.entries, m)
	if len(w.entries) <= w.max {
		return nil, 0, false
	}

	n := w.max - w.target + 1
	if n > len(w.entries) {
		n = len(w.entries)
	}
	evicted := make([]Message, n)
	copy(evicted, w.entries[:n])

	summary := Message{
		Seq:     w.nextSeq(),
		ID:      newMessageID(),
		From:    "system",
		Kind:    KindSummary,
		Content: fmt.Sprintf("(이전 대화 %d건 생략)", n),
		At:      evicted[n-1].At,
	}

	rest := w.entries[n:]
	w.entries = append([]Message{summary}, rest...)

	if w.compressing {
		return evicted, 0, false
	}
	w.compressing = true
	w.pendingSeq = summary.Seq
	return evicted, summary.Seq, true
}

// Resolve swaps the placeholder digest for the provider's condensation.
// The entry may already have been compacted away by a later overflow;
// that is fine, the in-flight flag is cleared either way.
func (w *ContextWindow) Resolve(seq int64, text string) {
	for i, e := range w.entries {
		if e.Seq == seq && e.Kind == KindSummary {
			e.Content = text
			w.entries[i] = e
			break
		}
	}
	if seq == w.pendingSeq {
		w.compressing = false
	}
}

// Abort clears the in-flight flag after a failed condensation, leaving
// the digest in place.
func (w *ContextWindow) Abort(seq int64) {
	if seq == w.pendingSeq {
		w.compressing = false
	}
}
