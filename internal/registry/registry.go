/*

Versioned implementation registry.

Deployed components are resolved through logical keys instead of being wired
as ambient singletons. Every registration carries a monotonically increasing
version so a key can be upgraded in place while older versions stay
addressable.

*/

package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
)

var (
	ErrUnknownKey        = errors.New("no implementation registered for key")
	ErrUnknownVersion    = errors.New("no implementation registered at version")
	ErrStaleVersion      = errors.New("version must exceed the latest registration")
	ErrNilImplementation = errors.New("implementation cannot be nil")
)

type entry struct {
	version uint64
	impl    any
}

// Registry maps logical keys to versioned implementations.
type Registry struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	entries map[string][]entry
}

func New() *Registry {
	return &Registry{
		log:     logger.GetForComponent("registry"),
		entries: make(map[string][]entry),
	}
}

// Register binds impl to key at the given version. Versions per key must be
// strictly increasing.
func (r *Registry) Register(key string, version uint64, impl any) error {
	if impl == nil {
		return ErrNilImplementation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.entries[key]
	if len(history) > 0 && version <= history[len(history)-1].version {
		return fmt.Errorf("%w: key %s has %d, got %d", ErrStaleVersion, key, history[len(history)-1].version, version)
	}
	r.entries[key] = append(history, entry{version: version, impl: impl})
	r.log.Info().Str("key", key).Uint64("version", version).Msg("Implementation registered")
	return nil
}

// Resolve returns the latest implementation registered for key.
func (r *Registry) Resolve(key string) (any, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history, ok := r.entries[key]
	if !ok || len(history) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	latest := history[len(history)-1]
	return latest.impl, latest.version, nil
}

// ResolveVersion returns the implementation registered for key at an exact
// version.
func (r *Registry) ResolveVersion(key string, version uint64) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[key] {
		if e.version == version {
			return e.impl, nil
		}
	}
	return nil, fmt.Errorf("%w: %s v%d", ErrUnknownVersion, key, version)
}

// Keys returns the registered logical keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}
