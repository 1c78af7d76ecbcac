package engine

import (
	"context"
	"fmt"
	"strings"
)

// Meeting-minutes mode. A recognized human command pauses ordinary bot
// chatter and has the Scribe bot produce one structured summary document
// from the full, uncompressed log. The room stays paused until the next
// human-authored message.

func (e *Engine) startMinutes(requester *Participant) {
	e.log.Info("minutes mode requested", "by", requester.Name)
	e.paused = true
	e.sched.CancelAll()
	e.epoch++
	e.queue = nil
	e.broadcastNotice(fmt.Sprintf("%s님이 회의록 작성을 요청했습니다.", requester.Name))

	scribe := e.roster.AssignScribe()
	if scribe == nil {
		// No bot to write minutes: report and stay paused until a
		// human speaks, same exit as the normal path.
		e.broadcastNotice("회의록을 작성할 봇이 없습니다.")
		return
	}

	full, err := e.store.All()
	if err != nil {
		e.log.Error("full history read failed", "err", err)
		e.broadcastNotice("회의록 작성에 실패했습니다.")
		return
	}

	name := scribe.Name
	req := buildMinutesRequest(scribe, full)
	go func() {
		text, err := e.provider.Complete(context.Background(), req)
		e.do(func() { e.deliverMinutes(name, text, err) })
	}()
}

func (e *Engine) deliverMinutes(scribe string, text string, genErr error) {
	if e.roster.Get(scribe) == nil {
		e.broadcastNotice("서기가 퇴장하여 회의록을 마치지 못했습니다.")
		return
	}
	if genErr != nil {
		e.log.Warn("minutes generation failed", "err", genErr)
		e.broadcastNotice("회의록 작성에 실패했습니다.")
		return
	}
	// The document is one ordinary message attributed to the Scribe; it
	// does not seed a turn, and the room stays paused until the next
	// human message.
	msg := e.newMessage(scribe, "", strings.TrimSpace(text), KindChat)
	e.append(msg)
	e.out.Broadcast("chat.message", msg)
	e.log.Info("minutes emitted", "scribe", scribe, "len", len(text))
}
