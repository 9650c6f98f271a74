package hostsync

import "sync/atomic"

// Host reports the host state the policy depends on.
type Host interface {
	// Interactive reports whether the host is an authoring tool rather than a
	// production build.
	Interactive() bool

	// InRunMode reports whether the host is simulating production.
	InRunMode() bool

	// AboutToEnterRunMode reports whether a switch to run mode is pending.
	AboutToEnterRunMode() bool
}

// HostState is a Host whose state is set by the embedding program.
type HostState struct {
	interactive bool
	runMode     atomic.Bool
	entering    atomic.Bool
}

var _ Host = (*HostState)(nil)

// NewHostState creates host state for an interactive or production host.
func NewHostState(interactive bool) *HostState {
	return &HostState{interactive: interactive}
}

// Interactive implements Host.
func (h *HostState) Interactive() bool { return h.interactive }

// InRunMode implements Host.
func (h *HostState) InRunMode() bool { return h.runMode.Load() }

// AboutToEnterRunMode implements Host.
func (h *HostState) AboutToEnterRunMode() bool { return h.entering.Load() }

// SetRunMode records a completed mode switch and clears any pending one.
func (h *HostState) SetRunMode(on bool) {
	h.runMode.Store(on)
	h.entering.Store(false)
}

// SetEnteringRunMode marks a switch to run mode as pending.
func (h *HostState) SetEnteringRunMode(pending bool) {
	h.entering.Store(pending)
}
