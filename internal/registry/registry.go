// Package registry implements the process-wide path -> checksum-map lookup
// table the EOS origin keeps as a global ("XrdFstSS->AddMapping"). The
// design note asks for this to become an explicit object passed in at
// engine construction rather than a singleton; Registry is that object.
package registry

import (
	"sync"

	"github.com/Anthya1104/stripefec/internal/checksummap"
)

// Registry hands out one *checksummap.Map per physical path, shared across
// every opener of that path. Lookups take a shared lock; insertion and
// removal take the exclusive lock.
type Registry struct {
	mu   sync.RWMutex
	maps map[string]*checksummap.Map
}

func New() *Registry {
	return &Registry{maps: make(map[string]*checksummap.Map)}
}

// LookupOrInsert returns the existing map for path, or attaches a new one
// if none exists yet.
func (r *Registry) LookupOrInsert(path string, bookingSize int64, blockSize int, create bool) (*checksummap.Map, error) {
	r.mu.RLock()
	if m, ok := r.maps[path]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.maps[path]; ok {
		return m, nil
	}
	m, err := checksummap.Attach(path, bookingSize, blockSize, create)
	if err != nil {
		return nil, err
	}
	r.maps[path] = m
	return m, nil
}

// Release drops path from the registry and persists it, but only once no
// opener holds a reference to it anymore (TotalRef() == 0). A no-op if the
// path is unknown or still referenced.
func (r *Registry) Release(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[path]
	if !ok {
		return nil
	}
	if m.TotalRef() > 0 {
		return nil
	}
	delete(r.maps, path)
	return m.Close()
}

// Len reports how many maps are currently registered (test/diagnostic use).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}
