package pipeline

import "context"

// semaphore implements a simple counting semaphore for limiting concurrency
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &semaphore{ch: make(chan struct{}, capacity)}
}

// acquire blocks until a slot is free or ctx is done.
func (s *semaphore) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	<-s.ch
}
