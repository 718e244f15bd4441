// Package conversation holds the transcript of a single chat view.
//
// The Store is the only owner of conversation state. Everything else reads copies of the
// transcript through Read, and learns about changes by subscribing an Observer. Mutations and
// notifications are serialized, so observers see changes in the order they were made and can
// always Read the state their event describes.
package conversation

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type EventKind string

const (
	EventAppended EventKind = "appended"
	EventReplaced EventKind = "replaced"
)

// Event describes one store mutation. Message is set for appends, Messages for replaces.
type Event struct {
	Kind     EventKind
	Version  int64
	Length   int
	Message  *Message
	Messages Transcript
}

// Observer is called synchronously after each mutation. Observers must not mutate the store.
type Observer func(e Event)

type Store struct {
	// notifyMutex serializes mutation + notification, mutex guards the state itself
	notifyMutex sync.Mutex
	mutex       sync.RWMutex

	messages  []Message
	version   int64
	observers map[int]Observer
	nextID    int
}

type StoreOption func(*Store)

func WithMessages(messages ...Message) StoreOption {
	return func(s *Store) {
		s.messages = append(s.messages, messages...)
	}
}

func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		observers: make(map[int]Observer),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Append adds a message to the end of the transcript.
func (s *Store) Append(m Message) {
	s.notifyMutex.Lock()
	defer s.notifyMutex.Unlock()

	s.mutex.Lock()
	s.messages = append(s.messages, m)
	s.version++
	e := Event{
		Kind:    EventAppended,
		Version: s.version,
		Length:  len(s.messages),
		Message: &m,
	}
	observers := s.observerList()
	s.mutex.Unlock()

	log.Trace().
		Str("role", string(m.Role)).
		Int("length", e.Length).
		Int64("version", e.Version).
		Msg("transcript append")

	notify(observers, e)
}

// ReplaceAll overwrites the transcript wholesale. It is meant for seeding a fresh view.
func (s *Store) ReplaceAll(messages []Message) {
	s.notifyMutex.Lock()
	defer s.notifyMutex.Unlock()

	s.mutex.Lock()
	e := s.replaceLocked(messages)
	observers := s.observerList()
	s.mutex.Unlock()

	notify(observers, e)
}

// Seed replaces the transcript only if it is still empty, and reports whether it did.
func (s *Store) Seed(messages []Message) bool {
	s.notifyMutex.Lock()
	defer s.notifyMutex.Unlock()

	s.mutex.Lock()
	if len(s.messages) > 0 {
		s.mutex.Unlock()
		return false
	}
	e := s.replaceLocked(messages)
	observers := s.observerList()
	s.mutex.Unlock()

	notify(observers, e)
	return true
}

func (s *Store) replaceLocked(messages []Message) Event {
	s.messages = make([]Message, len(messages))
	copy(s.messages, messages)
	s.version++
	seeded := make(Transcript, len(messages))
	copy(seeded, messages)
	return Event{
		Kind:     EventReplaced,
		Version:  s.version,
		Length:   len(s.messages),
		Messages: seeded,
	}
}

// Read returns a copy of the current transcript.
func (s *Store) Read() Transcript {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ret := make(Transcript, len(s.messages))
	copy(ret, s.messages)
	return ret
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.messages)
}

// Version increases by one with every mutation.
func (s *Store) Version() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.version
}

// Subscribe registers an observer and returns a function removing it again.
func (s *Store) Subscribe(o Observer) func() {
	s.mutex.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mutex.Lock()
			delete(s.observers, id)
			s.mutex.Unlock()
		})
	}
}

// observerList returns the observers in subscription order. Callers hold mutex.
func (s *Store) observerList() []Observer {
	ret := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if o, ok := s.observers[id]; ok {
			ret = append(ret, o)
		}
	}
	return ret
}

func notify(observers []Observer, e Event) {
	for _, o := range observers {
		o(e)
	}
}
