package messenger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"casehub/core"
)

// ErrUnknownEventType is returned when decoding an event type with no factory
var ErrUnknownEventType = errors.New("unknown event type")

// EventFactory returns a new zero event to decode into
type EventFactory func() core.Event

// Registry maps event type names to factories. Only registered types are
// delivered; anything else is dropped on receipt.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EventFactory)}
}

// DefaultRegistry returns a registry with every case event registered
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(func() core.Event { return &core.CaseOpened{} })
	r.Register(func() core.Event { return &core.CaseClosed{} })
	r.Register(func() core.Event { return &core.CaseDetailsChanged{} })
	r.Register(func() core.Event { return &core.DataSourceAdded{} })
	r.Register(func() core.Event { return &core.ContentTagAdded{} })
	r.Register(func() core.Event { return &core.ContentTagDeleted{} })
	r.Register(func() core.Event { return &core.ArtifactTagAdded{} })
	r.Register(func() core.Event { return &core.ArtifactTagDeleted{} })
	r.Register(func() core.Event { return &core.ReportAdded{} })
	r.Register(func() core.Event { return &core.CommentChanged{} })
	return r
}

// Register adds a factory, keyed by the type name of the event it builds.
// A later registration for the same type replaces the earlier one.
func (r *Registry) Register(factory EventFactory) {
	eventType := factory().EventType()
	r.mu.Lock()
	r.factories[eventType] = factory
	r.mu.Unlock()
}

// New returns a fresh event of the given type
func (r *Registry) New(eventType string) (core.Event, error) {
	r.mu.RLock()
	factory, ok := r.factories[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return factory(), nil
}

// Types returns the registered type names, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
