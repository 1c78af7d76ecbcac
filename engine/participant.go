package engine

import (
	"errors"
	"math/rand"
	"time"
)

var ErrNameTaken = errors.New("display name already in use")

// Sampling holds the generation parameters assigned to a bot at join time.
// The triple is randomized once and held for the session.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

func newSampling(r *rand.Rand) Sampling {
	return Sampling{
		Temperature: 0.6 + r.Float64()*0.5,
		TopP:        0.8 + r.Float64()*0.2,
		TopK:        20 + r.Intn(31),
	}
}

type Participant struct {
	Name     string
	Bot      bool
	Persona  string
	Style    string
	Sampling Sampling
	Scribe   bool
	JoinedAt time.Time

	joinSeq int64
}

// Roster tracks currently-joined participants. It is only ever touched
// from the engine goroutine, so it carries no lock.
type Roster struct {
	byName  map[string]*Participant
	order   []*Participant // join order
	nextSeq int64
}

func NewRoster() *Roster {
	return &Roster{byName: make(map[string]*Participant)}
}

func (r *Roster) Add(p *Participant) error {
	if _, ok := r.byName[p.Name]; ok {
		return ErrNameTaken
	}
	r.nextSeq++
	p.joinSeq = r.nextSeq
	r.byName[p.Name] = p
	r.order = append(r.order, p)
	return nil
}

func (r *Roster) Remove(name string) *Participant {
	p, ok := r.byName[name]
	if !ok {
		return nil
	}
	delete(r.byName, name)
	for i, q := range r.order {
		if q == p {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p
}

func (r *Roster) Get(name string) *Participant {
	return r.byName[name]
}

func (r *Roster) Joined(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Roster) IsBot(name string) bool {
	p, ok := r.byName[name]
	return ok && p.Bot
}

func (r *Roster) Len() int {
	return len(r.byName)
}

// Bots returns joined bots in join order.
func (r *Roster) Bots() []*Participant {
	var bots []*Participant
	for _, p := range r.order {
		if p.Bot {
			bots = append(bots, p)
		}
	}
	return bots
}

func (r *Roster) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, p := range r.order {
		names = append(names, p.Name)
	}
	return names
}

func (r *Roster) Scribe() *Participant {
	for _, p := range r.order {
		if p.Bot && p.Scribe {
			return p
		}
	}
	return nil
}

// AssignScribe gives the role to the longest-joined bot if no bot holds
// it, and returns the current holder. Returns nil when no bot is joined.
func (r *Roster) AssignScribe() *Participant {
	if s := r.Scribe(); s != nil {
		return s
	}
	bots := r.Bots()
	if len(bots) == 0 {
		return nil
	}
	bots[0].Scribe = true
	return bots[0]
}
