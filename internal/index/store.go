// Package index holds the bidirectional relation between documents and the script
// identifiers they reference.
package index

import (
	"fmt"
	"sync"

	"github.com/standardbeagle/scriptref/internal/types"
)

// Stats is a snapshot of store size and mutation counters
type Stats struct {
	Documents   int `json:"documents"`
	Identifiers int `json:"identifiers"`
	Pairs       int `json:"pairs"`

	// Mutation counters since creation. Clear does not reset them.
	ReverseInserts int64 `json:"reverseInserts"`
	ReverseDeletes int64 `json:"reverseDeletes"`
	ForwardWrites  int64 `json:"forwardWrites"`
}

// Store keeps DocumentDependsOn (document -> identifiers) and IdentifierReferencedBy
// (identifier -> documents) in agreement. Neither map ever holds an empty set.
//
// Mutations take the write lock; reads may run concurrently with each other.
type Store struct {
	mu sync.RWMutex

	forward map[types.DocumentKey]types.IdentifierSet
	reverse map[types.Identifier]map[types.DocumentKey]struct{}

	reverseInserts int64
	reverseDeletes int64
	forwardWrites  int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		forward: make(map[types.DocumentKey]types.IdentifierSet),
		reverse: make(map[types.Identifier]map[types.DocumentKey]struct{}),
	}
}

// Upsert records that d references exactly ids. Only identifiers in the symmetric
// difference between the old and new sets touch the reverse relation. An empty ids
// removes d.
func (s *Store) Upsert(d types.DocumentKey, ids types.IdentifierSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(d, ids)
}

func (s *Store) upsertLocked(d types.DocumentKey, ids types.IdentifierSet) {
	old := s.forward[d]
	if old.Equal(ids) {
		return
	}

	for id := range old {
		if !ids.Has(id) {
			s.unlinkLocked(id, d)
		}
	}
	for id := range ids {
		if !old.Has(id) {
			s.linkLocked(id, d)
		}
	}

	s.forwardWrites++
	if len(ids) == 0 {
		delete(s.forward, d)
		return
	}
	s.forward[d] = ids.Clone()
}

// Remove drops d and every reverse entry pointing at it. Removing an unknown document is a no-op.
func (s *Store) Remove(d types.DocumentKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(d)
}

func (s *Store) removeLocked(d types.DocumentKey) {
	old, ok := s.forward[d]
	if !ok {
		return
	}
	for id := range old {
		s.unlinkLocked(id, d)
	}
	delete(s.forward, d)
	s.forwardWrites++
}

func (s *Store) linkLocked(id types.Identifier, d types.DocumentKey) {
	docs, ok := s.reverse[id]
	if !ok {
		docs = make(map[types.DocumentKey]struct{})
		s.reverse[id] = docs
	}
	docs[d] = struct{}{}
	s.reverseInserts++
}

func (s *Store) unlinkLocked(id types.Identifier, d types.DocumentKey) {
	docs, ok := s.reverse[id]
	if !ok {
		return
	}
	delete(docs, d)
	if len(docs) == 0 {
		delete(s.reverse, id)
	}
	s.reverseDeletes++
}

// QueryDocumentsFor returns the documents referencing id, sorted. Nil when none do.
func (s *Store) QueryDocumentsFor(id types.Identifier) []types.DocumentKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.reverse[id]
	if !ok {
		return nil
	}
	out := make([]types.DocumentKey, 0, len(docs))
	for d := range docs {
		out = append(out, d)
	}
	return types.SortKeys(out)
}

// Contains reports whether any document references id
func (s *Store) Contains(id types.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reverse[id]
	return ok
}

// IdentifiersFor returns a copy of the identifiers d references, nil if d is unknown
func (s *Store) IdentifiersFor(d types.DocumentKey) types.IdentifierSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.forward[d]
	if !ok {
		return nil
	}
	return ids.Clone()
}

// Documents returns every indexed document, sorted
func (s *Store) Documents() []types.DocumentKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DocumentKey, 0, len(s.forward))
	for d := range s.forward {
		out = append(out, d)
	}
	return types.SortKeys(out)
}

// Clear empties both relations
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward = make(map[types.DocumentKey]types.IdentifierSet)
	s.reverse = make(map[types.Identifier]map[types.DocumentKey]struct{})
}

// Stats returns sizes and mutation counters
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := 0
	for _, ids := range s.forward {
		pairs += len(ids)
	}
	return Stats{
		Documents:      len(s.forward),
		Identifiers:    len(s.reverse),
		Pairs:          pairs,
		ReverseInserts: s.reverseInserts,
		ReverseDeletes: s.reverseDeletes,
		ForwardWrites:  s.forwardWrites,
	}
}

// CheckConsistency verifies that both relations describe the same pairs and hold no empty sets
func (s *Store) CheckConsistency() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for d, ids := range s.forward {
		if len(ids) == 0 {
			return fmt.Errorf("document %s has an empty identifier set", d)
		}
		for id := range ids {
			if _, ok := s.reverse[id][d]; !ok {
				return fmt.Errorf("forward pair (%s, %s) missing from reverse relation", d, id)
			}
		}
	}
	for id, docs := range s.reverse {
		if len(docs) == 0 {
			return fmt.Errorf("identifier %s has an empty document set", id)
		}
		for d := range docs {
			if !s.forward[d].Has(id) {
				return fmt.Errorf("reverse pair (%s, %s) missing from forward relation", id, d)
			}
		}
	}
	return nil
}
