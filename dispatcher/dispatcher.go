package dispatcher

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/iidesho/bragi/sbragi"
	"golang.org/x/exp/maps"

	"github.com/iidesho/replog/event"
	"github.com/iidesho/replog/eventlog"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

type Handler func(e event.Event)

type subscription struct {
	handler     Handler
	skipEmitter string
}

type Option func(s *subscription)

// WithoutEmitter drops events emitted by the given process before they
// reach the handler, so a consumer does not react to its own writes.
func WithoutEmitter(processId string) Option {
	return func(s *subscription) {
		s.skipEmitter = processId
	}
}

// Dispatcher fans appended events out to consumers. Aggregate-scoped
// consumers receive the events whose routing destinations contain their
// aggregate id; unscoped consumers receive every event, a rule the
// dispatcher owns rather than the event's routing set.
type Dispatcher struct {
	mu       sync.RWMutex
	scoped   map[string]map[string]subscription
	unscoped map[string]subscription
}

func New() *Dispatcher {
	return &Dispatcher{
		scoped:   make(map[string]map[string]subscription),
		unscoped: make(map[string]subscription),
	}
}

// Subscribe registers a handler for one aggregate id and returns its
// unsubscribe func.
func (d *Dispatcher) Subscribe(aggregateId string, handler Handler, opts ...Option) (unsubscribe func()) {
	sub := subscription{handler: handler}
	for _, opt := range opts {
		opt(&sub)
	}
	id := uuid.Must(uuid.NewV7()).String()
	d.mu.Lock()
	defer d.mu.Unlock()
	subs, ok := d.scoped[aggregateId]
	if !ok {
		subs = make(map[string]subscription)
		d.scoped[aggregateId] = subs
	}
	subs[id] = sub
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.scoped[aggregateId], id)
		if len(d.scoped[aggregateId]) == 0 {
			delete(d.scoped, aggregateId)
		}
	}
}

// SubscribeAll registers an aggregate-unscoped handler receiving every
// dispatched event.
func (d *Dispatcher) SubscribeAll(handler Handler, opts ...Option) (unsubscribe func()) {
	sub := subscription{handler: handler}
	for _, opt := range opts {
		opt(&sub)
	}
	id := uuid.Must(uuid.NewV7()).String()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unscoped[id] = sub
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.unscoped, id)
	}
}

// Dispatch delivers one event. A consumer subscribed under several of the
// event's destinations is invoked once.
func (d *Dispatcher) Dispatch(e event.Event) {
	d.mu.RLock()
	targets := maps.Clone(d.unscoped)
	for destination := range e.RoutingDestinations() {
		for id, sub := range d.scoped[destination] {
			targets[id] = sub
		}
	}
	d.mu.RUnlock()
	for _, sub := range targets {
		if sub.skipEmitter != "" && e.Emitter(sub.skipEmitter) {
			continue
		}
		sub.handler(e)
	}
}

// Consume streams a log from the given sequence number and dispatches every
// event until ctx is done.
func (d *Dispatcher) Consume(l *eventlog.Log, fromSequenceNr uint64, ctx context.Context) {
	log.Info("consuming log", "log", l.Id(), "from", fromSequenceNr)
	for e := range l.Stream(fromSequenceNr, ctx) {
		d.Dispatch(e)
	}
}
