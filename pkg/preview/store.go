// Package preview keeps the bytes behind preview URIs. Each URI is owned by
// exactly one holder, which must Revoke it when replacing or discarding it.
package preview

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every URI issued by a Store.
const Scheme = "preview:"

// Entry is a stored preview.
type Entry struct {
	Data     []byte
	MIMEType string
}

// Store maps preview URIs to image bytes.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Put stores data and returns a fresh URI for it.
func (s *Store) Put(data []byte, mimeType string) string {
	uri := Scheme + uuid.NewString()
	s.mu.Lock()
	s.entries[uri] = Entry{Data: data, MIMEType: mimeType}
	s.mu.Unlock()
	return uri
}

// Get returns the entry for uri. The bare id (without scheme) is accepted too.
func (s *Store) Get(uri string) (Entry, bool) {
	if !strings.HasPrefix(uri, Scheme) {
		uri = Scheme + uri
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	return e, ok
}

// Revoke releases uri. Unknown or empty URIs are ignored.
func (s *Store) Revoke(uri string) {
	if uri == "" {
		return
	}
	s.mu.Lock()
	delete(s.entries, uri)
	s.mu.Unlock()
}

// Len returns the number of live URIs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ID strips the scheme from a URI, for use in HTTP paths.
func ID(uri string) string {
	return strings.TrimPrefix(uri, Scheme)
}
