package boot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Resource is a Boot Resource: a named list of templates plus the instances created
// from them while active.
type Resource struct {
	// Name identifies the resource and names its container.
	Name string

	// Templates are instantiated in order. Nil entries are skipped.
	Templates []*Template

	mu         sync.Mutex
	activating bool
	scene      SceneGraph
	container  NodeID
	instances  []NodeID
}

// NewResource creates an inactive Boot Resource.
func NewResource(name string, templates []*Template) *Resource {
	return &Resource{Name: name, Templates: templates}
}

// ContainerName returns the name given to the resource's container node.
func (r *Resource) ContainerName() string {
	return r.Name + "_Container"
}

// Active reports whether the resource currently owns a container.
func (r *Resource) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.container.IsZero()
}

// Container returns the container node, or the zero NodeID when inactive.
func (r *Resource) Container() NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.container
}

// Instances returns a copy of the instance slots. Slots for skipped templates are zero.
func (r *Resource) Instances() []NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NodeID(nil), r.instances...)
}

// InstanceCount returns the number of live instance slots.
func (r *Resource) InstanceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.instances {
		if !id.IsZero() {
			n++
		}
	}
	return n
}

// ActivateAsync instantiates every template under a fresh container on its own
// goroutine, yielding between instantiations. The resource only becomes visibly
// active once every instantiation has finished.
//
// Per-slot instantiation failures leave the slot empty and are returned joined;
// the resource is still active with the instances that did succeed.
//
// A resource has one owner at a time. The call claims it before returning, so a
// concurrent second activation fails with ErrActive even while the first is
// still instantiating.
func (r *Resource) ActivateAsync(ctx context.Context, scene SceneGraph) *Op[struct{}] {
	r.mu.Lock()
	if r.activating || !r.container.IsZero() {
		r.mu.Unlock()
		return Completed(struct{}{}, fmt.Errorf("%w: %s", ErrActive, r.Name))
	}
	r.activating = true
	r.mu.Unlock()

	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		defer func() {
			r.mu.Lock()
			r.activating = false
			r.mu.Unlock()
		}()
		return struct{}{}, r.activate(ctx, scene)
	})
}

// Activate is the blocking form of ActivateAsync.
func (r *Resource) Activate(ctx context.Context, scene SceneGraph) error {
	_, err := r.ActivateAsync(ctx, scene).Wait()
	return err
}

func (r *Resource) activate(ctx context.Context, scene SceneGraph) error {
	logger := telemetry.FromContext(ctx).WithField("resource", r.Name)

	container, err := scene.CreateContainer(ctx, r.ContainerName())
	if err != nil {
		return fmt.Errorf("failed to create container for %s: %w", r.Name, err)
	}

	instances := make([]NodeID, len(r.Templates))
	var errs []error
	for i, t := range r.Templates {
		if t == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			// Never leave a half-activated resource behind.
			if derr := scene.Destroy(context.WithoutCancel(ctx), container); derr != nil && !errors.Is(derr, ErrNodeNotFound) {
				logger.WithError(derr).Warn("Failed to destroy container after cancelled activation")
			}
			return err
		}

		id, err := protect(func() (NodeID, error) { return scene.Instantiate(ctx, t, container) })
		if err != nil {
			errs = append(errs, NewInstantiationError(r.Name, i, err))
			logger.WithError(err).WithField("template", t.Name).Warn("Template instantiation failed, slot left empty")
		} else {
			instances[i] = id
		}

		runtime.Gosched()
	}

	r.mu.Lock()
	r.scene = scene
	r.container = container
	r.instances = instances
	r.mu.Unlock()

	logger.WithField("instances", r.InstanceCount()).Debug("Boot resource activated")
	return errors.Join(errs...)
}

// Deactivate destroys every instance and then the container. Nodes the host has
// already destroyed count as cleaned. Safe to call on an inactive resource.
func (r *Resource) Deactivate(ctx context.Context) error {
	r.mu.Lock()
	scene, container, instances := r.scene, r.container, r.instances
	r.scene, r.container, r.instances = nil, "", nil
	r.mu.Unlock()

	if scene == nil {
		return nil
	}

	var errs []error
	destroy := func(id NodeID) {
		err := protectErr(func() error { return scene.Destroy(ctx, id) })
		if err != nil && !errors.Is(err, ErrNodeNotFound) {
			errs = append(errs, fmt.Errorf("destroy %s: %w", id, err))
		}
	}

	for _, id := range instances {
		if !id.IsZero() {
			destroy(id)
		}
	}
	destroy(container)

	return errors.Join(errs...)
}
