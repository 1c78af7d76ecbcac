package engine

import (
	"fmt"
	"strings"

	"github.com/nicebartender/salon-server/llm"
)

// transcript renders the working window for a prompt. Tags mark the bot's
// own lines, the addressee's lines, and lines from participants who have
// since left; synthetic summaries render as a parenthesized recap.
func transcript(snap []Message, bot string, addressee string, joined func(string) bool) string {
	var b strings.Builder
	for _, m := range snap {
		switch {
		case m.Kind == KindSummary:
			fmt.Fprintf(&b, "(summary) %s\n", m.Content)
		case m.Kind == KindNotice:
			fmt.Fprintf(&b, "(notice) %s\n", m.Content)
		case m.From == bot:
			fmt.Fprintf(&b, "%s (you): %s\n", m.From, m.Content)
		case m.From == addressee:
			fmt.Fprintf(&b, "%s (addressee): %s\n", m.From, m.Content)
		case !joined(m.From):
			fmt.Fprintf(&b, "%s (departed): %s\n", m.From, m.Content)
		default:
			fmt.Fprintf(&b, "%s: %s\n", m.From, m.Content)
		}
	}
	return b.String()
}

// buildReplyRequest assembles the full generation prompt for one staged
// reply: persona, style, durable memory, the negotiated intent map, the
// tagged window, and the behavioral constraints.
func buildReplyRequest(bot *Participant, target Message, snap []Message, intents map[string]Intent, memories []string, joined func(string) bool) llm.Request {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s, one participant among several in a casual group chat room.\n", bot.Name)
	if bot.Persona != "" {
		fmt.Fprintf(&sys, "Persona: %s\n", bot.Persona)
	}
	if bot.Style != "" {
		fmt.Fprintf(&sys, "Interaction style: %s\n", bot.Style)
	}
	if len(memories) > 0 {
		sys.WriteString("What you remember about your own recent behavior:\n")
		for _, m := range memories {
			fmt.Fprintf(&sys, "- %s\n", m)
		}
	}
	if intent, ok := intents[bot.Name]; ok {
		fmt.Fprintf(&sys, "Your planned contribution this turn: %s.\n", intent)
	}
	if digest := intentDigest(bot.Name, intents); digest != "" {
		fmt.Fprintf(&sys, "Others replying at the same time plan: %s. Bring a different angle instead of echoing them.\n", digest)
	}
	sys.WriteString("Rules:\n" +
		"- Write exactly one short chat message, in the language the room is speaking.\n" +
		"- Never mention being automated, an AI, or an assistant.\n" +
		"- Do not prefix the message with your own name and do not talk about yourself in the third person.\n" +
		"- No emoji.\n" +
		"- Say something of your own; do not restate what was already said.\n")

	user := fmt.Sprintf("Recent conversation:\n%s\nRespond now to %s: %q",
		transcript(snap, bot.Name, target.From, joined), target.From, target.Content)

	return llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: sys.String()},
			{Role: "user", Content: user},
		},
		Temperature: bot.Sampling.Temperature,
		TopP:        bot.Sampling.TopP,
		TopK:        bot.Sampling.TopK,
	}
}

// buildIntentRequest asks for a one-word classification of the bot's next
// contribution, drawn from the closed intent set.
func buildIntentRequest(bot *Participant, stimulus Message, snap []Message, joined func(string) bool) llm.Request {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s in a group chat room.\n", bot.Name)
	if bot.Persona != "" {
		fmt.Fprintf(&sys, "Persona: %s\n", bot.Persona)
	}

	var choices []string
	for _, it := range allIntents {
		choices = append(choices, string(it))
	}
	user := fmt.Sprintf("Recent conversation:\n%s\nThe newest message is from %s: %q\n"+
		"Which kind of contribution would you make next? Answer with exactly one of: %s.",
		transcript(snap, bot.Name, stimulus.From, joined), stimulus.From, stimulus.Content,
		strings.Join(choices, ", "))

	return llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: sys.String()},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   8,
	}
}

// buildCondenseRequest asks for a one-sentence condensation of an evicted
// window chunk.
func buildCondenseRequest(chunk []Message) llm.Request {
	var b strings.Builder
	for _, m := range chunk {
		if m.Kind == KindSummary {
			fmt.Fprintf(&b, "(earlier summary) %s\n", m.Content)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.From, m.Content)
	}
	user := "Condense the following chat messages into a single sentence that keeps the facts " +
		"and decisions, in the same language as the messages:\n" + b.String()
	return llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Temperature: 0.3,
	}
}

// buildMemoryRequest asks for the bot's short first-person recap of its
// recent activity, appended to its durable memory.
func buildMemoryRequest(bot *Participant, recent []Message) llm.Request {
	var b strings.Builder
	for _, m := range recent {
		if m.Kind != KindChat {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.From, m.Content)
	}
	user := fmt.Sprintf("Here is the latest stretch of a group chat you (%s) took part in:\n%s\n"+
		"In one or two first-person sentences, note what you said or cared about, so your future "+
		"self can stay consistent. Same language as the chat.", bot.Name, b.String())
	return llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Temperature: 0.3,
	}
}

// buildMinutesRequest produces the structured-summary document from the
// full, uncompressed history. Fixed template: overview, agenda,
// discussion by topic, decisions, action items.
func buildMinutesRequest(scribe *Participant, full []Message) llm.Request {
	var b strings.Builder
	for _, m := range full {
		fmt.Fprintf(&b, "%s: %s\n", m.From, m.Content)
	}
	sys := fmt.Sprintf("You are %s, the scribe of this chat room. Produce meeting minutes "+
		"from the complete conversation, in the language the room is speaking, with exactly "+
		"these sections: Overview, Agenda, Discussion by Topic, Decisions, Action Items. "+
		"Cluster the discussion section by topic. Be factual and concise.", scribe.Name)
	return llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   900,
	}
}
