package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedNames(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(n string) bool { _, ok := set[n]; return ok }
}

func Test_transcript_tags_speakers(t *testing.T) {
	snap := []Message{
		chatMsg(1, "alice", "다들 안녕"),
		chatMsg(2, "봇1", "안녕하세요"),
		chatMsg(3, "떠난사람", "나 먼저 갈게"),
		{Seq: 4, From: "system", Content: "정리된 과거 대화", Kind: KindSummary},
		{Seq: 5, From: "system", Content: "누군가 입장했습니다", Kind: KindNotice},
	}

	got := transcript(snap, "봇1", "alice", joinedNames("alice", "봇1", "system"))

	assert.Contains(t, got, "alice (addressee): 다들 안녕")
	assert.Contains(t, got, "봇1 (you): 안녕하세요")
	assert.Contains(t, got, "떠난사람 (departed): 나 먼저 갈게")
	assert.Contains(t, got, "(summary) 정리된 과거 대화")
	assert.Contains(t, got, "(notice) 누군가 입장했습니다")
}

func Test_buildReplyRequest_carries_persona_memory_and_intents(t *testing.T) {
	bot := &Participant{
		Name:     "봇1",
		Bot:      true,
		Persona:  "호기심 많은 참가자",
		Style:    "inquisitive",
		Sampling: Sampling{Temperature: 0.9, TopP: 0.95, TopK: 40},
	}
	target := chatMsg(2, "alice", "봇1 어떻게 생각해?")
	intents := map[string]Intent{"봇1": IntentQuestion, "봇2": IntentHumor}
	memories := []string{"피자 얘기를 오래 했다."}

	req := buildReplyRequest(bot, target, []Message{target}, intents, memories, joinedNames("alice", "봇1", "봇2"))

	require.Len(t, req.Messages, 2)
	sys := req.Messages[0].Content
	assert.Contains(t, sys, "호기심 많은 참가자")
	assert.Contains(t, sys, "inquisitive")
	assert.Contains(t, sys, "피자 얘기를 오래 했다.")
	assert.Contains(t, sys, "question", "own planned intent included")
	assert.Contains(t, sys, "봇2: humor", "sibling intents included")
	assert.NotContains(t, sys, "봇1: question", "own entry excluded from the sibling digest")

	assert.Contains(t, req.Messages[1].Content, "alice")
	assert.Equal(t, 0.9, req.Temperature)
	assert.Equal(t, 0.95, req.TopP)
	assert.Equal(t, 40, req.TopK)
}

func Test_buildIntentRequest_offers_the_closed_choice_set(t *testing.T) {
	bot := &Participant{Name: "봇1", Bot: true}
	stim := chatMsg(1, "alice", "뭐 먹을까?")

	req := buildIntentRequest(bot, stim, []Message{stim}, joinedNames("alice", "봇1"))

	require.Len(t, req.Messages, 2)
	assert.Equal(t, 8, req.MaxTokens)
	for _, it := range allIntents {
		assert.Contains(t, req.Messages[1].Content, string(it))
	}
}

func Test_buildMinutesRequest_uses_the_fixed_sections(t *testing.T) {
	scribe := &Participant{Name: "봇1", Bot: true, Scribe: true}
	full := []Message{chatMsg(1, "alice", "회의 시작하자")}

	req := buildMinutesRequest(scribe, full)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, 900, req.MaxTokens)
	sys := req.Messages[0].Content
	for _, section := range []string{"Overview", "Agenda", "Discussion by Topic", "Decisions", "Action Items"} {
		assert.Contains(t, sys, section)
	}
	assert.Contains(t, req.Messages[1].Content, "회의 시작하자")
}
