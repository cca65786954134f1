package session

import (
	"sync"

	"github.com/jrsteele09/go-customer-auth/token"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventTokensStored   EventType = "tokens_stored"
	EventTokensCleared  EventType = "tokens_cleared"
	EventStateChanged   EventType = "state_changed"
	EventLoginCompleted EventType = "login_completed"
)

// Event describes one session change.
type Event struct {
	Type   EventType
	State  State
	Tokens *token.Bundle
	Err    error
}

type subscriber struct {
	id int
	fn func(Event)
}

// dispatcher delivers events in publish order from a single goroutine.
// Publishing never blocks on subscribers.
type dispatcher struct {
	mu     sync.Mutex
	queue  []Event
	subs   []subscriber
	nextID int
	closed bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (d *dispatcher) publish(e Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, e)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		for d.deliverNext() {
		}
	}
}

func (d *dispatcher) deliverNext() bool {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return false
	}
	e := d.queue[0]
	d.queue = d.queue[1:]
	subs := append([]subscriber(nil), d.subs...)
	d.mu.Unlock()

	for _, s := range subs {
		d.call(s, e)
	}
	return true
}

func (d *dispatcher) call(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(e.Type)).Msg("session change observer panicked")
		}
	}()
	s.fn(e)
}

func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.queue = nil
	d.subs = nil
	d.mu.Unlock()

	close(d.done)
	<-d.stopped
}
