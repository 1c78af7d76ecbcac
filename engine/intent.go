package engine

import (
	"sort"
	"strings"
	"sync"
)

// Intent classifies what a bot plans to contribute before any reply text
// is generated. Sibling bots scheduled for the same turn see each other's
// intents and diversify instead of piling on with the same angle.
type Intent string

const (
	IntentQuestion    Intent = "question"
	IntentAgreement   Intent = "agreement"
	IntentRebuttal    Intent = "rebuttal"
	IntentHumor       Intent = "humor"
	IntentNewTopic    Intent = "new-topic"
	IntentInformation Intent = "information"
	IntentEmotion     Intent = "emotional-reaction"
	IntentSummary     Intent = "summary"
)

var allIntents = []Intent{
	IntentQuestion,
	IntentAgreement,
	IntentRebuttal,
	IntentHumor,
	IntentNewTopic,
	IntentInformation,
	IntentEmotion,
	IntentSummary,
}

// normalizeIntent maps a raw classification reply onto the closed set.
// Unrecognized output degrades to information rather than dropping the
// bot from the turn.
func normalizeIntent(raw string) Intent {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, it := range allIntents {
		if strings.Contains(lower, string(it)) {
			return it
		}
		if spaced := strings.ReplaceAll(string(it), "-", " "); strings.Contains(lower, spaced) {
			return it
		}
	}
	return IntentInformation
}

// intentMap collects the concurrent per-bot intent requests of one turn.
// The resolved map is complete before any reply text is generated, which
// is what lets sibling bots diversify.
type intentMap struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	resolved map[string]Intent
	failed   map[string]struct{}
}

func newIntentMap() *intentMap {
	return &intentMap{
		resolved: make(map[string]Intent),
		failed:   make(map[string]struct{}),
	}
}

func (m *intentMap) request(fn func() (string, Intent, error)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		name, it, err := fn()
		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.failed[name] = struct{}{}
			return
		}
		m.resolved[name] = it
	}()
}

func (m *intentMap) wait() (map[string]Intent, map[string]struct{}) {
	m.wg.Wait()
	return m.resolved, m.failed
}

// intentDigest renders the sibling intents of one turn for a prompt,
// excluding the bot's own entry. Deterministic order for testability.
func intentDigest(self string, intents map[string]Intent) string {
	var names []string
	for name := range intents {
		if name != self {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+string(intents[name]))
	}
	return strings.Join(parts, ", ")
}
