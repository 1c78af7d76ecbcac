package engine

import (
	"context"
	"strings"
)

// recentChunkSize is how much of the full history feeds one memory pass.
const recentChunkSize = 20

// summarizeMemories runs the periodic memory pass: for every joined bot,
// ask the provider for a short first-person recap of its recent activity
// and append it to that bot's durable memory. Fire-and-forget; a failure
// for one bot is logged and skipped, and nothing here ever blocks the
// turn pipeline.
func (e *Engine) summarizeMemories() {
	bots := e.roster.Bots()
	if len(bots) == 0 {
		return
	}
	recent, err := e.store.Recent(recentChunkSize)
	if err != nil {
		e.log.Warn("memory pass skipped, history read failed", "err", err)
		return
	}

	snapshot := make([]*Participant, len(bots))
	copy(snapshot, bots)
	go func() {
		for _, bot := range snapshot {
			raw, err := e.provider.Complete(context.Background(), buildMemoryRequest(bot, recent))
			if err != nil {
				e.log.Warn("memory summary failed", "bot", bot.Name, "err", err)
				continue
			}
			text := strings.TrimSpace(raw)
			if text == "" {
				continue
			}
			if err := e.memory.Append(bot.Name, text); err != nil {
				e.log.Warn("memory append failed", "bot", bot.Name, "err", err)
			}
		}
	}()
}
