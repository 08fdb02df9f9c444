package waveform

import (
	"sync"

	"github.com/mwantia/audiopool/pkg/log"
)

// Event is either a LoadProgress or a WaveformLoaded.
type Event interface {
	isEvent()
}

// LoadProgress reports decode progress for one file. Percent never decreases
// within a single load and the last one of a successful load is 100.
type LoadProgress struct {
	Path    string
	Percent float64
	Status  string
}

// WaveformLoaded is raised once per LoadFromFile call: on a cache hit, after a
// decode, and when the file could not be read at all.
type WaveformLoaded struct {
	Path    string
	Data    *Data
	Success bool
	Err     error
}

func (LoadProgress) isEvent()   {}
func (WaveformLoaded) isEvent() {}

type observer struct {
	id int
	fn func(Event)
}

type observers struct {
	mu     sync.Mutex
	list   []observer
	nextID int
}

func (o *observers) subscribe(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		for i, obs := range o.list {
			if obs.id == id {
				o.list = append(o.list[:i:i], o.list[i+1:]...)
				return
			}
		}
	}
}

func (o *observers) emit(logger log.LoggerService, ev Event) {
	o.mu.Lock()
	list := o.list
	o.mu.Unlock()

	for _, obs := range list {
		deliver(logger, obs.fn, ev)
	}
}

func deliver(logger log.LoggerService, fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Waveform observer panicked: %v", r)
		}
	}()
	fn(ev)
}
