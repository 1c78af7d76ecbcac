package engine

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ScorerConfig names every heuristic constant so threshold behavior is
// testable without touching the scoring code.
type ScorerConfig struct {
	MentionScore   float64 // directly addressed bots get this and are always selected
	SpontaneityMax float64 // upper bound of the random component
	QuestionBonus  float64 // stimulus contains a question marker
	HumanBonus     float64 // stimulus author is human
	KeywordBonus   float64 // stimulus contains an engagement keyword
	Threshold      float64 // minimum total score to respond
	BotRunLimit    int     // this many consecutive bot messages mute everyone
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MentionScore:   100,
		SpontaneityMax: 30,
		QuestionBonus:  25,
		HumanBonus:     20,
		KeywordBonus:   15,
		Threshold:      50,
		BotRunLimit:    3,
	}
}

// Contrastive and opinion markers that tend to invite a reply. The room
// speaks Korean and English, so both are covered.
var engagementKeywords = []string{
	"하지만", "그런데", "생각", "의견", "동의", "반대", "어때",
	"but", "however", "think", "opinion", "agree", "disagree", "why",
}

// Selection is one bot chosen to respond, with its stagger rank.
type Selection struct {
	Bot       *Participant
	Score     float64
	Rank      int
	Mentioned bool
}

type Scorer struct {
	cfg ScorerConfig
	rnd *rand.Rand
}

func NewScorer(cfg ScorerConfig, rnd *rand.Rand) *Scorer {
	return &Scorer{cfg: cfg, rnd: rnd}
}

// Select decides which candidate bots respond to the stimulus. Candidates
// already pending a response and the stimulus author are skipped. The
// result is ordered by descending score; the order is the stagger order.
func (s *Scorer) Select(stimulus Message, candidates []*Participant, pending map[string]struct{}, window []Message, isBot func(string) bool) []Selection {
	mentioned := lo.SomeBy(candidates, func(p *Participant) bool {
		return references(stimulus.Content, p.Name)
	})
	if !mentioned && s.botRun(window, isBot) >= s.cfg.BotRunLimit {
		// A bot-only loop with nobody addressed: stay quiet until a
		// human speaks again.
		return nil
	}

	shuffled := make([]*Participant, len(candidates))
	copy(shuffled, candidates)
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	authorIsHuman := !isBot(stimulus.From)

	var selected []Selection
	for _, bot := range shuffled {
		if bot.Name == stimulus.From {
			continue
		}
		if _, busy := pending[bot.Name]; busy {
			continue
		}

		if references(stimulus.Content, bot.Name) {
			selected = append(selected, Selection{Bot: bot, Score: s.cfg.MentionScore, Mentioned: true})
			continue
		}

		score := s.rnd.Float64() * s.cfg.SpontaneityMax
		if hasQuestionMarker(stimulus.Content) {
			score += s.cfg.QuestionBonus
		}
		if authorIsHuman {
			score += s.cfg.HumanBonus
		}
		if hasEngagementKeyword(stimulus.Content) {
			score += s.cfg.KeywordBonus
		}
		if score >= s.cfg.Threshold {
			selected = append(selected, Selection{Bot: bot, Score: score})
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	for i := range selected {
		selected[i].Rank = i
	}
	return selected
}

// botRun counts how many of the newest chat entries in a row were
// bot-authored.
func (s *Scorer) botRun(window []Message, isBot func(string) bool) int {
	run := 0
	for i := len(window) - 1; i >= 0; i-- {
		m := window[i]
		if m.Kind != KindChat {
			continue
		}
		if !isBot(m.From) {
			break
		}
		run++
	}
	return run
}

func hasQuestionMarker(content string) bool {
	return strings.ContainsAny(content, "?？")
}

func hasEngagementKeyword(content string) bool {
	lower := strings.ToLower(content)
	return lo.SomeBy(engagementKeywords, func(kw string) bool {
		return strings.Contains(lower, kw)
	})
}
