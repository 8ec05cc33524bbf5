package helpers

import "sync/atomic"

// Go's "sync.WaitGroup" is not safe to "Add" to concurrently with an
// outstanding "Wait", which is exactly the shape of waiting out in-flight
// async cache writes while new ones keep starting. ThreadSafeWaitGroup is a
// minimal alternative that allows it. There is never more than one waiter,
// so a one-slot channel signalling each zero crossing is enough.
type ThreadSafeWaitGroup struct {
	counter int32
	channel chan struct{}
}

func MakeThreadSafeWaitGroup() *ThreadSafeWaitGroup {
	return &ThreadSafeWaitGroup{
		channel: make(chan struct{}, 1),
	}
}

func (wg *ThreadSafeWaitGroup) Add(delta int32) {
	if counter := atomic.AddInt32(&wg.counter, delta); counter == 0 {
		wg.channel <- struct{}{}
	} else if counter < 0 {
		panic("sync: negative WaitGroup counter")
	}
}

func (wg *ThreadSafeWaitGroup) Done() {
	wg.Add(-1)
}

func (wg *ThreadSafeWaitGroup) Wait() {
	<-wg.channel
}
