package storage

import (
	"path"
	"sync"
	"time"
)

// MapStorage is a thread-safe key-value storage.
type MapStorage struct {
	data    map[string]string // key - value
	expires map[string]int64  // key - expires time nanoseconds
	mu      sync.RWMutex
}

// NewMapStorage creates a new instance of MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{
		data:    make(map[string]string),
		expires: make(map[string]int64),
		mu:      sync.RWMutex{},
	}
}

// Get returns the value and true if the key is found. Otherwise, "", false
func (m *MapStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	exp, hasExp := m.expires[key]
	val, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}

	if hasExp && time.Now().UnixNano() >= exp {
		m.mu.Lock()
		defer m.mu.Unlock()

		// checking again, can be changed while waiting for the lock
		exp, hasExp = m.expires[key]
		if hasExp && time.Now().UnixNano() >= exp {
			delete(m.data, key)
			delete(m.expires, key)
			return "", false
		}

		if val, ok = m.data[key]; ok {
			return val, true
		}
		return "", false
	}

	return val, true
}

// Set writes the value based on the options. Returns true if recording has been performed
func (m *MapStorage) Set(key, value string, options SetOptions) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.data[key]
	if exists {
		exp, hasExp := m.expires[key]

		// key exists but is expired, clean it up now so logic below treats it as new
		if hasExp && time.Now().UnixNano() >= exp {
			delete(m.data, key)
			delete(m.expires, key)
			exists = false
		}
	}

	if options.NX && exists {
		return false
	}

	if options.XX && !exists {
		return false
	}

	m.data[key] = value

	if options.KeepTTL {
		// retain the existing expiry; on a freshly created key KEEPTTL
		// behaves like no TTL
		if !exists {
			delete(m.expires, key)
		}
	} else {
		if options.ExpireAt == 0 {
			// no deadline provided, remove any existing expiration (persist)
			delete(m.expires, key)
		} else {
			m.expires[key] = options.ExpireAt
		}
	}

	return true
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (m *MapStorage) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		expired := false
		if exp, hasExp := m.expires[key]; hasExp && time.Now().UnixNano() >= exp {
			expired = true
		}
		delete(m.data, key)
		delete(m.expires, key)
		return !expired
	}
	return false
}

// Exists reports whether the key is present and not expired
func (m *MapStorage) Exists(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (m *MapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	m.mu.RLock()

	_, ok := m.data[key]
	exp, hasExp := m.expires[key]

	m.mu.RUnlock()

	// key does not exist
	if !ok {
		return 0, ExpNotFound
	}

	// key without TTL
	if !hasExp {
		return 0, ExpNoTimeout
	}

	now := time.Now().UnixNano()

	if now >= exp {
		m.mu.Lock()
		defer m.mu.Unlock()

		if _, ok = m.data[key]; !ok {
			return 0, ExpNotFound
		}

		exp, hasExp = m.expires[key]
		if !hasExp {
			return 0, ExpNoTimeout
		}

		now = time.Now().UnixNano()

		// key expired
		if now >= exp {
			delete(m.data, key)
			delete(m.expires, key)
			return 0, ExpNotFound
		}

		return time.Duration(exp - now), ExpActive
	}

	return time.Duration(exp - now), ExpActive
}

// Persist removes the expiration date of the key, making it eternal.
// Returns 1 if successful, 0 if the key was not found or had no TTL
func (m *MapStorage) Persist(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.data[key]
	exp, hasExp := m.expires[key]

	if !ok || !hasExp {
		return 0
	}

	// an expired key is already logically gone
	if time.Now().UnixNano() >= exp {
		delete(m.data, key)
		delete(m.expires, key)
		return 0
	}

	delete(m.expires, key)

	return 1
}

// Keys returns the live keys matching a glob pattern.
// Pattern syntax follows path.Match: *, ? and character classes.
func (m *MapStorage) Keys(pattern string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UnixNano()
	keys := make([]string, 0, len(m.data))

	for key := range m.data {
		if exp, hasExp := m.expires[key]; hasExp && now >= exp {
			continue
		}
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}

	return keys
}

// Len returns the number of live keys
func (m *MapStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.data)
	now := time.Now().UnixNano()
	for key, exp := range m.expires {
		if _, ok := m.data[key]; ok && now >= exp {
			n--
		}
	}
	return n
}

// DeleteExpired randomly selects up to limit keys with a TTL and deletes
// the expired ones. Returns the expired/checked ratio
func (m *MapStorage) DeleteExpired(limit int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.expires) == 0 {
		return 0.0
	}

	checked := 0
	expired := 0
	now := time.Now().UnixNano()

	// go map iteration is randomized by design
	for key, expTime := range m.expires {
		checked++
		if now >= expTime {
			delete(m.data, key)
			delete(m.expires, key)
			expired++
		}

		if checked >= limit {
			break
		}
	}

	return float64(expired) / float64(checked)
}
