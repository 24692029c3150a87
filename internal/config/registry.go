package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eric-livezey/void-bot/pkg/provider/fetch"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	searchers map[string]func(ProviderEntry) (metadata.Searcher, error)
	resolvers map[string]func(ProviderEntry) (metadata.Resolver, error)
	fetchers  map[string]func(ProviderEntry) (fetch.Fetcher, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		searchers: make(map[string]func(ProviderEntry) (metadata.Searcher, error)),
		resolvers: make(map[string]func(ProviderEntry) (metadata.Resolver, error)),
		fetchers:  make(map[string]func(ProviderEntry) (fetch.Fetcher, error)),
	}
}

// RegisterSearcher registers a search backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSearcher(name string, factory func(ProviderEntry) (metadata.Searcher, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchers[name] = factory
}

// RegisterResolver registers a metadata resolver factory under name.
func (r *Registry) RegisterResolver(name string, factory func(ProviderEntry) (metadata.Resolver, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = factory
}

// RegisterFetcher registers an audio fetcher factory under name.
func (r *Registry) RegisterFetcher(name string, factory func(ProviderEntry) (fetch.Fetcher, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[name] = factory
}

// CreateSearcher instantiates the search backend named by entry.Name.
func (r *Registry) CreateSearcher(entry ProviderEntry) (metadata.Searcher, error) {
	r.mu.RLock()
	f, ok := r.searchers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: search/%s", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// CreateResolver instantiates the metadata resolver named by entry.Name.
func (r *Registry) CreateResolver(entry ProviderEntry) (metadata.Resolver, error) {
	r.mu.RLock()
	f, ok := r.resolvers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: metadata/%s", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// CreateFetcher instantiates the audio fetcher named by entry.Name.
func (r *Registry) CreateFetcher(entry ProviderEntry) (fetch.Fetcher, error) {
	r.mu.RLock()
	f, ok := r.fetchers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: fetch/%s", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}
