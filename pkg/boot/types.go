package boot

import (
	"context"
	"sync/atomic"
)

// NodeID identifies a node in the host scene graph. The zero value is an empty slot.
type NodeID string

// IsZero reports whether the id refers to no node.
func (id NodeID) IsZero() bool {
	return id == ""
}

// Template is an inert description of an object that can be instantiated into the
// scene graph any number of times.
type Template struct {
	// Name is the template name and becomes the instance name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Kind is an optional host-defined object kind.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Properties are passed through to the host on instantiation.
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// SceneGraph is the host's object instantiation boundary.
// Calls block until the host has finished; asynchronous use goes through Op.
type SceneGraph interface {
	// CreateContainer creates a parent node that survives normal scene transitions.
	CreateContainer(ctx context.Context, name string) (NodeID, error)

	// Instantiate creates an instance of t under parent.
	Instantiate(ctx context.Context, t *Template, parent NodeID) (NodeID, error)

	// Destroy destroys the node and all of its children.
	// Returns ErrNodeNotFound if the node no longer exists.
	Destroy(ctx context.Context, id NodeID) error
}

// Resolver is the host's key to Boot Resource lookup. Handles are reference counted:
// every successful Resolve must be matched by exactly one Release.
type Resolver interface {
	// Resolve loads the resource addressed by key.
	// Returns an error wrapping ErrNotFound if no resource has that key.
	Resolve(ctx context.Context, key string) (*Handle, error)

	// Release drops one reference. Releasing the last reference frees the resource.
	// Returns ErrReleased if the handle was already released.
	Release(ctx context.Context, h *Handle) error
}

// Handle is one counted reference to a resolved Boot Resource.
type Handle struct {
	key      string
	resource *Resource
	released atomic.Bool
}

// NewHandle creates a live handle. Intended for Resolver implementations.
func NewHandle(key string, r *Resource) *Handle {
	return &Handle{key: key, resource: r}
}

// Key returns the key the handle was resolved from.
func (h *Handle) Key() string {
	return h.key
}

// Resource returns the resolved Boot Resource.
func (h *Handle) Resource() *Resource {
	return h.resource
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Invalidate marks the handle released. It returns false if it already was,
// letting resolvers reject double releases.
func (h *Handle) Invalidate() bool {
	return h.released.CompareAndSwap(false, true)
}

// ResolveAsync starts resolving key on its own goroutine.
func ResolveAsync(ctx context.Context, r Resolver, key string) *Op[*Handle] {
	return Go(ctx, func(ctx context.Context) (*Handle, error) {
		return r.Resolve(ctx, key)
	})
}
