package speech

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/vocastar/internal/ai"
	"github.com/example/vocastar/internal/scheduler"
)

// ErrCancelled is returned by a run that was superseded by a newer one
var ErrCancelled = errors.New("preload run cancelled")

// Token identifies one preload run of one owner. Only the owner's latest token is live;
// runs of other owners are unaffected.
type Token struct {
	Owner string `json:"owner"`
	Seq   uint64 `json:"seq"`
}

// Report summarizes a preload run
type Report struct {
	Loaded  int
	Cached  int
	Failed  int
	Aborted bool // stopped early by a rate limit or a newer run
}

// Preloader fetches audio for many texts one at a time, pausing between fetches.
type Preloader struct {
	speech *Service
	timers scheduler.Timers
	delay  time.Duration

	mu     sync.Mutex
	seq    uint64
	latest map[string]uint64
}

// NewPreloader creates a preloader that waits delay after each fetched item
func NewPreloader(speech *Service, timers scheduler.Timers, delay time.Duration) *Preloader {
	return &Preloader{speech: speech, timers: timers, delay: delay, latest: make(map[string]uint64)}
}

// Begin invalidates the earlier runs of owner and returns the token of a new one
func (p *Preloader) Begin(owner string) Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.latest[owner] = p.seq
	return Token{Owner: owner, Seq: p.seq}
}

// Live reports whether tok is the latest run of its owner
func (p *Preloader) Live(tok Token) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest[tok.Owner] == tok.Seq
}

// Forget drops the run state of owner, cancelling its run
func (p *Preloader) Forget(owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.latest, owner)
}

// Start begins a new run for owner in the background
func (p *Preloader) Start(ctx context.Context, owner string, texts []string) Token {
	tok := p.Begin(owner)
	go func() {
		if _, err := p.Run(ctx, tok, texts); err != nil && !errors.Is(err, ErrCancelled) {
			log.Printf("preload run %d of %s stopped: %v", tok.Seq, tok.Owner, err)
		}
	}()
	return tok
}

// Run fetches texts sequentially under tok. It returns ErrCancelled when a newer run starts,
// and a rate-limit error when the service refuses more requests. Other failures are logged
// and skipped.
func (p *Preloader) Run(ctx context.Context, tok Token, texts []string) (Report, error) {
	var report Report
	log.Printf("starting preload run %d of %s for %d items", tok.Seq, tok.Owner, len(texts))

	for _, text := range texts {
		if !p.Live(tok) {
			log.Printf("preload run %d of %s cancelled", tok.Seq, tok.Owner)
			report.Aborted = true
			return report, ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			return report, err
		}

		if _, ok := p.speech.Cache().Get(text); ok {
			report.Cached++
			continue
		}

		if _, err := p.speech.Speak(ctx, text); err != nil {
			log.Printf("preload failed for %q: %v", text, err)
			if ai.IsRateLimited(err) {
				log.Printf("rate limit hit during preload, stopping run %d of %s", tok.Seq, tok.Owner)
				report.Aborted = true
				return report, err
			}
			report.Failed++
			continue
		}
		report.Loaded++

		if err := p.wait(ctx); err != nil {
			report.Aborted = true
			return report, err
		}
	}
	return report, nil
}

func (p *Preloader) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	done := make(chan struct{})
	stop := p.timers.After(p.delay, func() { close(done) })
	defer stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
