package background

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget work that the server still wants to wait
// for on shutdown.
type Background struct {
	log  logrus.FieldLogger
	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

func New(log logrus.FieldLogger) *Background {
	return &Background{
		log:  log,
		done: make(chan struct{}),
	}
}

func (b *Background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("background task panicked: %v", rec)
			}
		}()

		fn()
	}()
}

// Tick runs fn every interval until shutdown.
func (b *Background) Tick(interval time.Duration, fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-b.done:
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// Shutdown waits for running tasks, bailing out when ctx expires first.
func (b *Background) Shutdown(ctx context.Context) error {
	b.once.Do(func() { close(b.done) })

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
