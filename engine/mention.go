package engine

// MentionTracker remembers which mentions have already been answered.
// Policy: a mention is answered at most once globally. Whichever bot's
// scheduled turn fires first claims it; every other bot then sees the
// message as answered and moves on, so a single question never collects
// a pile of replies.
type MentionTracker struct {
	lookback int
	answered map[int64]map[string]struct{} // seq -> bots that answered
}

func NewMentionTracker(lookback int) *MentionTracker {
	return &MentionTracker{
		lookback: lookback,
		answered: make(map[int64]map[string]struct{}),
	}
}

// FindUnanswered scans the newest lookback entries of window in
// reverse-chronological order and returns the most recent chat message
// that references bot and has not been answered by anybody, or nil.
func (t *MentionTracker) FindUnanswered(bot string, window []Message) *Message {
	start := len(window) - t.lookback
	if start < 0 {
		start = 0
	}
	for i := len(window) - 1; i >= start; i-- {
		m := window[i]
		if m.Kind != KindChat || m.From == bot {
			continue
		}
		if !references(m.Content, bot) {
			continue
		}
		if t.IsAnswered(m.Seq) {
			continue
		}
		return &m
	}
	return nil
}

// MarkAnswered records that bot answered the message. Idempotent; the
// (seq, bot) pair is recorded at most once.
func (t *MentionTracker) MarkAnswered(seq int64, bot string) {
	set, ok := t.answered[seq]
	if !ok {
		set = make(map[string]struct{})
		t.answered[seq] = set
	}
	set[bot] = struct{}{}
}

// IsAnswered reports whether any bot has answered the message.
func (t *MentionTracker) IsAnswered(seq int64) bool {
	return len(t.answered[seq]) > 0
}
