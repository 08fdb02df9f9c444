package pool

import (
	"sync"

	"github.com/mwantia/audiopool/pkg/log"
)

type EventKind int

const (
	EntryAdded EventKind = iota
	EntryRemoved
	EntryUpdated
)

func (k EventKind) String() string {
	switch k {
	case EntryAdded:
		return "added"
	case EntryRemoved:
		return "removed"
	case EntryUpdated:
		return "updated"
	}
	return "unknown"
}

// Event carries the entry as it was right after the change was committed.
type Event struct {
	Kind  EventKind
	Entry Entry
}

type subscriber struct {
	id int
	fn func(Event)
}

type subscribers struct {
	mu     sync.Mutex
	list   []subscriber
	nextID int
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.list = append(s.list, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.list = removeSubscriber(s.list, id)
		})
	}
}

func removeSubscriber(list []subscriber, id int) []subscriber {
	for i, sub := range list {
		if sub.id == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// notify runs every subscriber in registration order. It must be called
// without the pool lock held.
func (s *subscribers) notify(logger log.LoggerService, events ...Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	list := s.list
	s.mu.Unlock()

	for _, ev := range events {
		for _, sub := range list {
			call(logger, sub.fn, ev)
		}
	}
}

func call(logger log.LoggerService, fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Observer panicked on %s event for '%s': %v", ev.Kind, ev.Entry.ID, r)
		}
	}()
	fn(ev)
}
