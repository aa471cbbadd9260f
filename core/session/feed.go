package session

import (
	"sync"

	"github.com/trezcool/masomo-portal/core/user"
)

// Feed broadcasts the Current User to its subscribers, replaying the latest value on subscription.
// A nil value means no user is logged in.
//
// Every subscriber receives every value published after it subscribed, in publication order.
// Values are queued per subscriber, so a slow subscriber never blocks the producer.
type Feed struct {
	mu     sync.Mutex
	latest *user.CurrentUser
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	out  chan *user.CurrentUser
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	queue []*user.CurrentUser
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]*subscriber)}
}

// Publish replaces the latest value. The value is copied: subscribers never share the caller's memory.
func (f *Feed) Publish(usr *user.CurrentUser) {
	var snapshot *user.CurrentUser
	if usr != nil {
		u := *usr
		snapshot = &u
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest = snapshot
	for _, sub := range f.subs {
		sub.push(snapshot)
	}
}

// Latest returns the most recently published value.
func (f *Feed) Latest() *user.CurrentUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Subscribe returns a channel receiving the latest value immediately, then every subsequent one.
// The returned func cancels the subscription and closes the channel once pending values are dropped;
// it is safe to call more than once.
func (f *Feed) Subscribe() (<-chan *user.CurrentUser, func()) {
	sub := &subscriber{
		out:  make(chan *user.CurrentUser, 1),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = sub
	sub.out <- f.latest
	f.mu.Unlock()

	go sub.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.out, cancel
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (s *subscriber) push(usr *user.CurrentUser) {
	s.mu.Lock()
	s.queue = append(s.queue, usr)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (*user.CurrentUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	usr := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return usr, true
}

// run delivers queued values until the subscription is cancelled, then closes out.
func (s *subscriber) run() {
	defer close(s.out)
	for {
		usr, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- usr:
		case <-s.done:
			return
		}
	}
}
