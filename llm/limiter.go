package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("limiter closed")

// Limiter funnels every provider call — replies, intents, condensations,
// memory summaries, minutes — through one worker that enforces a minimum
// gap between consecutive upstream calls. This is the single backpressure
// mechanism keeping the server inside the provider's throughput limits no
// matter how many logical requests are queued.
type Limiter struct {
	inner Completer
	gap   time.Duration
	jobs  chan limiterJob
	quit  chan struct{}
	once  sync.Once
}

type limiterJob struct {
	ctx   context.Context
	req   Request
	reply chan limiterResult
}

type limiterResult struct {
	text string
	err  error
}

func NewLimiter(inner Completer, gap time.Duration) *Limiter {
	l := &Limiter{
		inner: inner,
		gap:   gap,
		jobs:  make(chan limiterJob, 64),
		quit:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Limiter) run() {
	var last time.Time
	for {
		select {
		case <-l.quit:
			return
		case job := <-l.jobs:
			if wait := l.gap - time.Since(last); wait > 0 && !last.IsZero() {
				select {
				case <-time.After(wait):
				case <-l.quit:
					job.reply <- limiterResult{err: ErrClosed}
					return
				}
			}
			if err := job.ctx.Err(); err != nil {
				job.reply <- limiterResult{err: err}
				continue
			}
			text, err := l.inner.Complete(job.ctx, job.req)
			last = time.Now()
			job.reply <- limiterResult{text: text, err: err}
		}
	}
}

// Complete queues the request and blocks until the worker has run it.
// Waiting in the queue respects ctx; an in-flight upstream call is never
// cancelled mid-way.
func (l *Limiter) Complete(ctx context.Context, req Request) (string, error) {
	job := limiterJob{ctx: ctx, req: req, reply: make(chan limiterResult, 1)}
	select {
	case l.jobs <- job:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-l.quit:
		return "", ErrClosed
	}
	select {
	case res := <-job.reply:
		return res.text, res.err
	case <-l.quit:
		return "", ErrClosed
	}
}

func (l *Limiter) Close() {
	l.once.Do(func() { close(l.quit) })
}
