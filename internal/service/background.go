package service

import (
	"context"
	"sync"
)

// Background runs post-commit work on goroutines and lets shutdown wait
// for it. Its Go method is meant for Deps.Async.
type Background struct {
	wg sync.WaitGroup
}

func (b *Background) Go(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

// Wait blocks until every started job returned or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
