// Package boot provides the bootstrap lifecycle coordinator for bootcoord.
//
// # Overview
//
// On process start the Coordinator resolves one or more Boot Resources by key,
// instantiates the templates each one names into the host scene graph, and tears
// everything down again on shutdown or when the host asks for it (entering run
// mode, saving or closing a document, quitting).
//
// The package is built around three pieces:
//
//   - Coordinator: the phase state machine (Uninitialized, Initializing,
//     Initialized, DeInitializing) owning the resolved handles.
//   - Resource: a Boot Resource. Owns its container node and the instances
//     created from its templates.
//   - Op: a pending asynchronous operation with a blocking Wait. Activation and
//     resolution are written once against Op; the interactive path simply runs
//     the same flow to completion on the caller's goroutine.
//
// # Boundaries
//
// The host supplies two capabilities:
//
//	type Resolver interface {
//	    Resolve(ctx context.Context, key string) (*Handle, error)
//	    Release(ctx context.Context, h *Handle) error
//	}
//
//	type SceneGraph interface {
//	    CreateContainer(ctx context.Context, name string) (NodeID, error)
//	    Instantiate(ctx context.Context, t *Template, parent NodeID) (NodeID, error)
//	    Destroy(ctx context.Context, id NodeID) error
//	}
//
// # Phase guard
//
// Initialize is a no-op unless the coordinator is Uninitialized, and
// Deinitialize is a no-op unless it is Initialized. Requests that arrive while
// a flow is in flight are dropped rather than queued. An in-flight Initialize
// cannot be cancelled; callers wait for it through the channel Initialize
// returns or through WaitInitialized.
//
// # Failures
//
// A key that fails to resolve is logged, counted and skipped; the remaining keys
// still bootstrap and the coordinator still reaches Initialized. Nil template
// slots are skipped silently. Panics raised by host boundary calls are recovered
// into errors and never cross the public API.
package boot
