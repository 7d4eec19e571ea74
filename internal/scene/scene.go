package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/order"
)

var (
	// ErrNotFound is returned for an id the scene does not hold.
	ErrNotFound = errors.New("element not found")

	// ErrDuplicateID is returned when inserting an id the scene already holds.
	ErrDuplicateID = errors.New("element id already exists")
)

// Scene is an ordered element collection with a memoised render view.
//
// Thread-safety: All methods are safe for concurrent use.
type Scene struct {
	mu       sync.RWMutex
	elements []element.Element
	nonce    int64

	cacheNonce int64
	cacheValid bool
	nonDeleted []element.Element

	nonces element.NonceSource
	now    func() time.Time
}

// Option configures a Scene.
type Option func(*Scene)

// WithNonceSource sets the version nonce source for local edits.
func WithNonceSource(n element.NonceSource) Option {
	return func(s *Scene) {
		s.nonces = n
	}
}

// WithClock sets the time source for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scene) {
		s.now = now
	}
}

// New creates a scene holding a copy of elements.
func New(elements []element.Element, opts ...Option) *Scene {
	s := &Scene{
		elements: element.Clone(elements),
		nonces:   element.RandomNonce{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Elements returns a copy of the full collection, tombstones included.
func (s *Scene) Elements() []element.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return element.Clone(s.elements)
}

// Len returns the number of elements, tombstones included.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Get returns the element with the given id.
func (s *Scene) Get(id string) (element.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.position(id)
	if i < 0 {
		return element.Element{}, false
	}
	return s.elements[i].Clone(), true
}

// Nonce returns the current recomputation nonce.
func (s *Scene) Nonce() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce
}

// Version returns the sum of element versions.
func (s *Scene) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return element.SceneVersion(s.elements)
}

// NonDeleted returns the elements that are not tombstones, in order.
//
// The result is cached until the next write and is shared
// between callers; it must not be modified.
func (s *Scene) NonDeleted() []element.Element {
	s.mu.RLock()
	if s.cacheValid && s.cacheNonce == s.nonce {
		out := s.nonDeleted
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cacheValid || s.cacheNonce != s.nonce {
		s.nonDeleted = element.NonDeleted(s.elements)
		s.cacheNonce = s.nonce
		s.cacheValid = true
	}
	return s.nonDeleted
}

// Replace swaps in a new authoritative collection, typically the output
// of a reconciliation.
func (s *Scene) Replace(elements []element.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = element.Clone(elements)
	s.nonce++
}

// Insert adds a new element at position at (clamped to the collection) and
// assigns it a key between its neighbours. The element starts at version 1.
func (s *Scene) Insert(e element.Element, at int) (element.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		return element.Element{}, fmt.Errorf("insert: empty element id")
	}
	if s.position(e.ID) >= 0 {
		return element.Element{}, fmt.Errorf("insert %q: %w", e.ID, ErrDuplicateID)
	}
	at = max(0, min(at, len(s.elements)))

	e = e.Clone()
	e.Version = 1
	e.VersionNonce = s.nonces.Next()
	e.Updated = s.now().UnixMilli()
	e.Index = ""
	e.IsDeleted = false

	next := slices.Insert(slices.Clone(s.elements), at, e)
	next, _ = order.SyncMovedIndices(next, map[string]bool{e.ID: true})
	s.commit(next, s.elements)

	return s.elements[s.position(e.ID)].Clone(), nil
}

// Mutate applies fn to a copy of the element and stores it as a new
// version. fn cannot change the id.
func (s *Scene) Mutate(id string, fn func(*element.Element)) (element.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.position(id)
	if i < 0 {
		return element.Element{}, fmt.Errorf("mutate %q: %w", id, ErrNotFound)
	}
	e := s.elements[i].Clone()
	fn(&e)
	e.ID = id
	e = element.Bump(e, s.nonces.Next(), s.now())

	s.elements = slices.Clone(s.elements)
	s.elements[i] = e
	s.nonce++
	return e.Clone(), nil
}

// Delete tombstones the element. The element stays in the collection.
func (s *Scene) Delete(id string) (element.Element, error) {
	return s.Mutate(id, func(e *element.Element) {
		e.IsDeleted = true
	})
}

// Move relocates the given elements, keeping their relative order, so they
// sit at position to of the remaining collection. Only the moved elements
// receive new keys (and new versions) unless the collection itself needs
// repair.
func (s *Scene) Move(ids []string, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	moving := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.position(id) < 0 {
			return fmt.Errorf("move %q: %w", id, ErrNotFound)
		}
		moving[id] = true
	}

	var picked, rest []element.Element
	for _, e := range s.elements {
		if moving[e.ID] {
			picked = append(picked, e)
		} else {
			rest = append(rest, e)
		}
	}
	to = max(0, min(to, len(rest)))
	next := slices.Concat(rest[:to], picked, rest[to:])

	next, _ = order.SyncMovedIndices(next, moving)
	s.commit(next, s.elements)
	return nil
}

// commit stores next, bumping every element whose key differs from prev.
// Caller holds the write lock.
func (s *Scene) commit(next, prev []element.Element) {
	before := make(map[string]string, len(prev))
	for _, e := range prev {
		before[e.ID] = e.Index
	}
	for i, e := range next {
		old, ok := before[e.ID]
		if ok && old != e.Index {
			next[i] = element.Bump(e, s.nonces.Next(), s.now())
		}
	}
	s.elements = next
	s.nonce++
}

// position returns the slice position of id, or -1. Caller holds a lock.
func (s *Scene) position(id string) int {
	return slices.IndexFunc(s.elements, func(e element.Element) bool {
		return e.ID == id
	})
}
