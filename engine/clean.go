package engine

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fallback lines carried over from the original deployment. One of these
// goes out whenever the provider fails or post-processing leaves nothing
// usable, so humans are never left staring at silence.
var fallbackLines = []string{
	"네, 말씀해주세요!",
	"그렇군요! 더 자세히 이야기해주세요.",
	"흥미로운 이야기네요!",
	"그런 관점도 있군요.",
	"좋은 의견이에요!",
	"계속 말씀해주세요.",
	"정말 그렇네요!",
	"더 자세히 설명해주시겠어요?",
	"흥미롭게 들었어요!",
	"그런 생각을 하시다니 신기하네요.",
}

func fallbackLine() string {
	return fallbackLines[rand.Intn(len(fallbackLines))]
}

var bracketTag = regexp.MustCompile(`\[[^\[\]]{0,60}\]`)

const allowedPunct = ".,!?…~'\"“”‘’():;%/@&+-*=<>_#·"

func allowedRune(r rune) bool {
	switch {
	case unicode.IsSpace(r), unicode.IsDigit(r):
		return true
	case unicode.Is(unicode.Latin, r), unicode.Is(unicode.Hangul, r):
		return true
	case strings.ContainsRune(allowedPunct, r):
		return true
	}
	return false
}

// cleanReply post-processes raw provider output: models love to echo
// transcript formatting back, so leading "Name:" prefixes of known
// participants are stripped (repeatedly, they stack), bracketed internal
// tags are dropped, anything outside the allowed scripts (Latin, Hangul,
// digits, common punctuation — this covers emoji) is filtered, and the
// bot's own echoed @-handle is removed. Degenerate results fall back to a
// stock line.
func cleanReply(raw, bot string, names []string) string {
	s := strings.TrimSpace(raw)

	for stripLeadingName(&s, names) {
	}

	s = bracketTag.ReplaceAllString(s, "")

	var b strings.Builder
	for _, r := range s {
		if allowedRune(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	// Self-mentions slip through as "@Name" handles.
	s = removeFold(s, "@"+bot)

	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSpace(strings.TrimPrefix(s, ":"))

	if utf8.RuneCountInString(s) < 2 {
		return fallbackLine()
	}
	return s
}

// stripLeadingName removes one leading "Name:" (or "@Name:") prefix when
// Name is a known participant. Reports whether anything was stripped.
func stripLeadingName(s *string, names []string) bool {
	idx := strings.Index(*s, ":")
	if idx <= 0 || idx > 60 {
		return false
	}
	head := strings.TrimSpace(strings.TrimPrefix((*s)[:idx], "@"))
	for _, name := range names {
		if strings.EqualFold(head, name) {
			*s = strings.TrimSpace((*s)[idx+1:])
			return true
		}
	}
	return false
}

// removeFold removes every case-insensitive occurrence of sub from s.
func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	lower := strings.ToLower(s)
	lowerSub := strings.ToLower(sub)
	var b strings.Builder
	for {
		i := strings.Index(lower, lowerSub)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(sub):]
		lower = lower[i+len(lowerSub):]
	}
}
