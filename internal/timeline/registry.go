package timeline

import "github.com/google/uuid"

// ID identifies one backend timeline. IDs are globally unique and never
// reused within a process.
type ID string

// NewID allocates a fresh timeline identity.
func NewID() ID {
	return ID(uuid.NewString())
}

// Registry maps test names to timeline identities within the active suite.
// The mapping is append-only until Remove; a setup after removal mints a
// fresh identity.
type Registry struct {
	byTest map[string]ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTest: make(map[string]ID)}
}

// ResolveOrCreate returns the timeline for testName, allocating a new one
// on first encounter. The bool reports whether the timeline is new.
func (r *Registry) ResolveOrCreate(testName string) (ID, bool) {
	if id, ok := r.byTest[testName]; ok {
		return id, false
	}
	id := NewID()
	r.byTest[testName] = id
	return id, true
}

// Get looks up the timeline for testName without creating one.
func (r *Registry) Get(testName string) (ID, bool) {
	id, ok := r.byTest[testName]
	return id, ok
}

// Remove deletes and returns the mapping for testName if present.
func (r *Registry) Remove(testName string) (ID, bool) {
	id, ok := r.byTest[testName]
	if ok {
		delete(r.byTest, testName)
	}
	return id, ok
}

// Len reports the number of registered timelines.
func (r *Registry) Len() int {
	return len(r.byTest)
}
