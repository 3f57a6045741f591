package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// HotStore is the in-process storage tier: a mutex-guarded map with no
// expiry beyond process lifetime.
type HotStore struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewHotStore creates an empty hot store.
func NewHotStore() *HotStore {
	return &HotStore{values: make(map[string]interface{})}
}

// Put stores a value. The most recent write for a key wins.
func (s *HotStore) Put(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get reads a value.
func (s *HotStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Delete removes a value.
func (s *HotStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Keys returns all keys with the given prefix.
func (s *HotStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

type warmEntry struct {
	data      []byte
	expiresAt time.Time
}

// WarmStore implements the warm tier in memory. Used in tests and
// single-process deployments without Redis.
type WarmStore struct {
	mu     sync.RWMutex
	values map[string]warmEntry
}

// NewWarmStore creates an empty in-memory warm store.
func NewWarmStore() *WarmStore {
	return &WarmStore{values: make(map[string]warmEntry)}
}

// Put stores a value with a TTL. A zero TTL means no expiry.
func (s *WarmStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := warmEntry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.values[key] = entry
	return nil
}

// Get reads a value. Expired or absent keys are a miss, not an error.
func (s *WarmStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.values, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}

// Delete removes a value.
func (s *WarmStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys returns all live keys with the given prefix.
func (s *WarmStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for k, entry := range s.values {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

type archiveVersion struct {
	data     []byte
	metadata map[string]string
}

// Archive is an in-memory append-only archive for testing. Every write
// appends a version; Retrieve returns the latest.
type Archive struct {
	mu       sync.RWMutex
	versions map[string][]archiveVersion

	// FailWrites makes Archive return an error, for exercising the
	// degrade-to-warm behavior.
	FailWrites bool
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{versions: make(map[string][]archiveVersion)}
}

// Archive appends a new version for the key.
func (a *Archive) Archive(_ context.Context, key string, value []byte, metadata map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailWrites {
		return errArchiveUnavailable
	}
	a.versions[key] = append(a.versions[key], archiveVersion{
		data:     append([]byte(nil), value...),
		metadata: metadata,
	})
	return nil
}

// Retrieve returns the latest version for the key.
func (a *Archive) Retrieve(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	versions, ok := a.versions[key]
	if !ok || len(versions) == 0 {
		return nil, false, nil
	}
	return versions[len(versions)-1].data, true, nil
}

// VersionCount reports how many versions a key holds.
func (a *Archive) VersionCount(key string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.versions[key])
}

var errArchiveUnavailable = &unavailableError{}

type unavailableError struct{}

func (*unavailableError) Error() string { return "archive unavailable" }
