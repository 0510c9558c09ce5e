package nats

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// handlerPool runs message handlers on at most size goroutines. Go blocks the
// NATS dispatcher while every slot is busy, so pending messages stay buffered
// in the client instead of piling up as goroutines.
type handlerPool struct {
	slots *semaphore.Weighted
	wg    sync.WaitGroup
}

func newHandlerPool(size int) *handlerPool {
	if size <= 0 {
		size = 1
	}
	return &handlerPool{slots: semaphore.NewWeighted(int64(size))}
}

// Go reports false when ctx ended before a slot freed up.
func (p *handlerPool) Go(ctx context.Context, fn func()) bool {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.slots.Release(1)
		fn()
	}()
	return true
}

func (p *handlerPool) Wait() {
	p.wg.Wait()
}
