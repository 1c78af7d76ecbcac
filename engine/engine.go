// Package engine is the multi-agent turn-orchestration core: it decides
// which bots answer an incoming message, in what order, after what delay,
// against which context, and it owns the working history, the mention
// bookkeeping, and the meeting-minutes mode.
//
// All mutable state is confined to one goroutine that executes closures
// posted to an internal channel. Timers and provider calls run elsewhere
// and post their results back as closures, so no lock is needed anywhere
// in this package's state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/nicebartender/salon-server/llm"
)

var ErrStopped = errors.New("engine stopped")

// Broadcaster delivers an event to every connected client. The engine is
// agnostic to how the transport carries it.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// MessageLog is the durable, uncompressed message log. Implementations
// must be safe for concurrent use.
type MessageLog interface {
	Insert(m Message) error
	All() ([]Message, error)
	Recent(n int) ([]Message, error)
}

// MemoryStore keeps the bounded per-bot memory entries. Implementations
// must be safe for concurrent use.
type MemoryStore interface {
	Append(bot, text string) error
	For(bot string) ([]string, error)
}

// Completer is re-exported so tests and wiring deal with one name.
type Completer = llm.Completer

// TurnRequest is one queued stimulus. Human-originated requests are high
// priority: they preempt scheduled replies and flush queued bot turns.
type TurnRequest struct {
	Stimulus Message
	Priority bool
}

// Options collects every tunable of the engine. The scorer constants are
// deliberately exposed so threshold behavior is testable.
type Options struct {
	WindowMax       int
	WindowTarget    int
	MentionLookback int
	Scorer          ScorerConfig
	BaseDelay       time.Duration
	Jitter          time.Duration
	Stagger         time.Duration
	MemoryEvery     int
	MinutesCommand  string
	Seed            int64 // 0 means seed from the clock
}

func DefaultOptions() Options {
	return Options{
		WindowMax:       25,
		WindowTarget:    15,
		MentionLookback: 20,
		Scorer:          DefaultScorerConfig(),
		BaseDelay:       1500 * time.Millisecond,
		Jitter:          time.Second,
		Stagger:         1800 * time.Millisecond,
		MemoryEvery:     10,
		MinutesCommand:  "/minutes",
	}
}

type Engine struct {
	log *slog.Logger
	opt Options
	rnd *rand.Rand

	roster   *Roster
	window   *ContextWindow
	mentions *MentionTracker
	scorer   *Scorer
	sched    *Scheduler

	store    MessageLog
	memory   MemoryStore
	provider Completer
	out      Broadcaster
	personas []PersonaSpec

	tasks chan func()
	quit  chan struct{}

	queue      []TurnRequest
	turnActive bool
	paused     bool
	epoch      int64 // bumped on every interrupt; stale turns check it

	seq        int64
	chatCount  int64
	personaIdx int
}

func New(log *slog.Logger, opt Options, store MessageLog, memory MemoryStore, provider Completer, out Broadcaster, personas []PersonaSpec) *Engine {
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	e := &Engine{
		log:      log,
		opt:      opt,
		rnd:      rnd,
		roster:   NewRoster(),
		mentions: NewMentionTracker(opt.MentionLookback),
		scorer:   NewScorer(opt.Scorer, rnd),
		sched:    NewScheduler(opt.BaseDelay, opt.Jitter, opt.Stagger, rnd),
		store:    store,
		memory:   memory,
		provider: provider,
		out:      out,
		personas: personas,
		tasks:    make(chan func(), 256),
		quit:     make(chan struct{}),
	}
	e.window = NewContextWindow(opt.WindowMax, opt.WindowTarget, e.nextSeq)
	return e
}

func (e *Engine) Start() {
	go e.run()
}

func (e *Engine) Stop() {
	close(e.quit)
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do posts fn to the engine goroutine.
func (e *Engine) do(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.quit:
	}
}

func (e *Engine) nextSeq() int64 {
	e.seq++
	return e.seq
}

func (e *Engine) newMessage(from, to, content string, kind Kind) Message {
	return Message{
		Seq:     e.nextSeq(),
		ID:      newMessageID(),
		From:    from,
		To:      to,
		Content: content,
		Kind:    kind,
		At:      time.Now(),
	}
}

// Join registers a participant. Synchronous: a duplicate display name is
// rejected with ErrNameTaken before any state changes.
func (e *Engine) Join(name string, bot bool, persona string) error {
	errc := make(chan error, 1)
	e.do(func() { errc <- e.handleJoin(name, bot, persona) })
	select {
	case err := <-errc:
		return err
	case <-e.quit:
		return ErrStopped
	}
}

func (e *Engine) handleJoin(name string, bot bool, persona string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("display name required")
	}
	p := &Participant{
		Name:     name,
		Bot:      bot,
		Persona:  persona,
		JoinedAt: time.Now(),
	}
	if bot {
		if p.Persona == "" && len(e.personas) > 0 {
			spec := e.personas[e.personaIdx%len(e.personas)]
			e.personaIdx++
			p.Persona = spec.Persona
			p.Style = spec.Style
		}
		p.Sampling = newSampling(e.rnd)
	}
	if err := e.roster.Add(p); err != nil {
		return err
	}
	e.log.Info("participant joined", "name", name, "bot", bot)
	e.broadcastNotice(fmt.Sprintf("%s님이 입장하셨습니다.", name))
	e.out.Broadcast("room.count", map[string]any{"count": e.roster.Len()})
	return nil
}

// Leave removes a participant. Historical mentions of the name stay
// recorded; they just render as departed in future prompts.
func (e *Engine) Leave(name string) {
	e.do(func() { e.handleLeave(name) })
}

func (e *Engine) handleLeave(name string) {
	p := e.roster.Remove(name)
	if p == nil {
		return
	}
	e.sched.Drop(name)
	if p.Scribe {
		if next := e.roster.AssignScribe(); next != nil {
			e.log.Info("scribe reassigned", "scribe", next.Name)
		}
	}
	e.log.Info("participant left", "name", name, "bot", p.Bot)
	e.broadcastNotice(fmt.Sprintf("%s님이 퇴장하셨습니다.", name))
	e.out.Broadcast("room.count", map[string]any{"count": e.roster.Len()})
}

// Incoming feeds one transport message into the engine.
func (e *Engine) Incoming(sender, to, text string) {
	e.do(func() { e.handleIncoming(sender, to, text) })
}

func (e *Engine) handleIncoming(sender, to, text string) {
	p := e.roster.Get(sender)
	if p == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if !p.Bot && strings.HasPrefix(text, e.opt.MinutesCommand) {
		e.startMinutes(p)
		return
	}
	if e.paused && !p.Bot {
		// Any ordinary human message ends minutes mode.
		e.paused = false
		e.log.Info("minutes mode ended")
	}

	msg := e.newMessage(sender, to, text, KindChat)
	e.append(msg)
	e.out.Broadcast("chat.message", msg)

	if p.Bot {
		if !e.paused {
			e.queue = append(e.queue, TurnRequest{Stimulus: msg})
		}
	} else {
		e.interrupt()
		e.queue = append(e.queue, TurnRequest{Stimulus: msg, Priority: true})
	}
	e.pump()
}

// interrupt implements "humans can always cut the bots off": every
// scheduled-but-unfired reply is cancelled, its pending flag cleared, and
// queued bot-seeded turns are dropped.
func (e *Engine) interrupt() {
	e.sched.CancelAll()
	e.epoch++
	e.queue = lo.Filter(e.queue, func(t TurnRequest, _ int) bool { return t.Priority })
}

// append logs to the durable store and the working window, kicking off
// compression and the periodic memory pass when due.
func (e *Engine) append(msg Message) {
	if err := e.store.Insert(msg); err != nil {
		e.log.Error("durable log insert failed", "err", err)
	}
	chunk, placeholderSeq, request := e.window.Append(msg)
	if request {
		go e.condense(chunk, placeholderSeq)
	}
	if msg.Kind == KindChat {
		e.chatCount++
		if e.opt.MemoryEvery > 0 && e.chatCount%int64(e.opt.MemoryEvery) == 0 {
			e.summarizeMemories()
		}
	}
}

func (e *Engine) broadcastNotice(text string) {
	msg := e.newMessage("system", "", text, KindNotice)
	e.append(msg)
	e.out.Broadcast("room.notice", msg)
}

// pump starts the next queued turn unless one is already in flight or
// meeting-minutes mode has the queue frozen.
func (e *Engine) pump() {
	if e.turnActive || e.paused || len(e.queue) == 0 {
		return
	}
	req := e.queue[0]
	e.queue = e.queue[1:]
	e.startTurn(req)
}

// startTurn runs scoring synchronously, reserves the selected bots, and
// hands off to intent negotiation. The turn-active guard holds until the
// staggered tasks are staged.
func (e *Engine) startTurn(req TurnRequest) {
	e.turnActive = true
	snap := e.window.Snapshot()
	sel := e.scorer.Select(req.Stimulus, e.roster.Bots(), e.sched.PendingSet(), snap, e.roster.IsBot)
	if len(sel) == 0 {
		e.turnActive = false
		e.pump()
		return
	}
	for _, c := range sel {
		e.sched.Reserve(c.Bot.Name)
	}
	go e.negotiate(req, sel, snap, e.joinedSet(), e.epoch)
}

// negotiate collects one contribution intent per selected bot in
// parallel. Runs off-loop; the provider limiter serializes the actual
// upstream calls.
func (e *Engine) negotiate(req TurnRequest, sel []Selection, snap []Message, joined func(string) bool, epoch int64) {
	intents := newIntentMap()
	for _, c := range sel {
		c := c
		intents.request(func() (string, Intent, error) {
			raw, err := e.provider.Complete(context.Background(), buildIntentRequest(c.Bot, req.Stimulus, snap, joined))
			if err != nil {
				return c.Bot.Name, "", err
			}
			return c.Bot.Name, normalizeIntent(raw), nil
		})
	}
	resolved, failed := intents.wait()
	e.do(func() { e.finishTurn(req, sel, resolved, failed, epoch) })
}

// finishTurn stages the delayed generation tasks in rank order and drops
// the turn-active guard. A bot whose intent call failed sits this turn
// out. If a human interrupted while intents were in flight the whole
// batch is stale and nothing is staged.
func (e *Engine) finishTurn(req TurnRequest, sel []Selection, intents map[string]Intent, failed map[string]struct{}, epoch int64) {
	defer func() {
		e.turnActive = false
		e.pump()
	}()

	if epoch != e.epoch {
		return
	}
	for _, c := range sel {
		name := c.Bot.Name
		if _, ok := failed[name]; ok {
			e.log.Warn("intent negotiation failed, skipping bot", "bot", name)
			e.sched.Release(name)
			continue
		}
		var task *Task
		task = e.sched.Schedule(name, c.Rank, func() {
			e.do(func() { e.fire(name, req.Stimulus, intents, task) })
		})
	}
}

// fire runs when a staged delay elapses: re-validate the bot, claim an
// unanswered mention if one exists (the claim happens now, not after
// generation, so a failing generation cannot let a sibling double-claim),
// then generate off-loop.
func (e *Engine) fire(bot string, stimulus Message, intents map[string]Intent, task *Task) {
	if e.sched.Outstanding(bot) != task {
		return // superseded or cancelled
	}
	p := e.roster.Get(bot)
	if p == nil || e.paused {
		e.sched.Release(bot)
		return
	}

	target := stimulus
	snap := e.window.Snapshot()
	if m := e.mentions.FindUnanswered(bot, snap); m != nil {
		target = *m
		e.mentions.MarkAnswered(m.Seq, bot)
	}

	memories, err := e.memory.For(bot)
	if err != nil {
		e.log.Warn("memory lookup failed", "bot", bot, "err", err)
	}
	names := e.roster.Names()
	req := buildReplyRequest(p, target, snap, intents, memories, e.joinedSet())

	e.out.Broadcast("room.typing", map[string]any{"name": bot})
	go func() {
		raw, err := e.provider.Complete(context.Background(), req)
		e.do(func() { e.deliver(bot, target, raw, err, names) })
	}()
}

// deliver posts the generated (or fallback) reply and seeds the next turn.
func (e *Engine) deliver(bot string, target Message, raw string, genErr error, names []string) {
	e.sched.Release(bot)
	if e.roster.Get(bot) == nil {
		return // left while generating
	}

	var text string
	if genErr != nil {
		e.log.Warn("generation failed", "bot", bot, "err", genErr)
		text = fallbackLine()
	} else {
		text = cleanReply(raw, bot, names)
	}

	msg := e.newMessage(bot, target.From, text, KindChat)
	msg.ReplyTo = target.ID
	e.append(msg)
	e.out.Broadcast("chat.message", msg)

	if !e.paused {
		e.queue = append(e.queue, TurnRequest{Stimulus: msg})
	}
	e.pump()
}

// condense asks the provider for the one-sentence condensation of an
// evicted window chunk. On failure the digest placeholder stays, which is
// the truncation fallback.
func (e *Engine) condense(chunk []Message, placeholderSeq int64) {
	text, err := e.provider.Complete(context.Background(), buildCondenseRequest(chunk))
	e.do(func() {
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			e.log.Warn("window condensation failed, keeping digest", "err", err)
			e.window.Abort(placeholderSeq)
			return
		}
		e.window.Resolve(placeholderSeq, text)
	})
}

// joinedSet captures the current roster as a goroutine-safe lookup for
// prompt building off-loop.
func (e *Engine) joinedSet() func(string) bool {
	set := make(map[string]struct{}, e.roster.Len())
	for _, name := range e.roster.Names() {
		set[name] = struct{}{}
	}
	set["system"] = struct{}{}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}
