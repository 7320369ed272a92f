package wallet

import "sync"

// feed is the Subscription used by both providers. Producers call send and
// stop on close; Unsubscribe runs cleanup once.
type feed struct {
	events  chan Event
	quit    chan struct{}
	once    sync.Once
	cleanup func()
}

func newFeed(buffer int, cleanup func()) *feed {
	return &feed{
		events:  make(chan Event, buffer),
		quit:    make(chan struct{}),
		cleanup: cleanup,
	}
}

func (f *feed) Events() <-chan Event { return f.events }

func (f *feed) Unsubscribe() {
	f.once.Do(func() {
		close(f.quit)
		if f.cleanup != nil {
			f.cleanup()
		}
	})
}

// send delivers ev unless the feed was stopped. It reports false once the
// consumer has unsubscribed.
func (f *feed) send(ev Event) bool {
	select {
	case <-f.quit:
		return false
	case f.events <- ev:
		return true
	}
}
