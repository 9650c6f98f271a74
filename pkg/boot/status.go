package boot

import "fmt"

// Phase is the lifecycle phase of a Coordinator.
type Phase string

const (
	// PhaseUninitialized means no resources are resolved or active.
	PhaseUninitialized Phase = "uninitialized"

	// PhaseInitializing means an initialization flow is in flight.
	PhaseInitializing Phase = "initializing"

	// PhaseInitialized means every configured resource has been processed.
	PhaseInitialized Phase = "initialized"

	// PhaseDeInitializing means resources are being deactivated and released.
	PhaseDeInitializing Phase = "deinitializing"
)

// IsTransient returns true if a flow is in flight in this phase.
func (p Phase) IsTransient() bool {
	return p == PhaseInitializing || p == PhaseDeInitializing
}

// Ordinal returns a stable numeric value for the phase, used by metrics.
func (p Phase) Ordinal() int {
	switch p {
	case PhaseUninitialized:
		return 0
	case PhaseInitializing:
		return 1
	case PhaseInitialized:
		return 2
	case PhaseDeInitializing:
		return 3
	default:
		return -1
	}
}

// Validate checks if the phase is valid.
func (p Phase) Validate() error {
	switch p {
	case PhaseUninitialized, PhaseInitializing, PhaseInitialized, PhaseDeInitializing:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", p)
	}
}

// ExecContext is the execution context the coordinator activates in.
type ExecContext string

const (
	// ContextProduction is the deployed/run context. Activation is asynchronous
	// so the host stays responsive.
	ContextProduction ExecContext = "production"

	// ContextInteractive is the live editing context. Activation blocks the caller
	// until every resource is active.
	ContextInteractive ExecContext = "interactive"
)

// Well-known Boot Resource keys.
const (
	// ProductionKey addresses the resource bootstrapped in every context.
	ProductionKey = "BootSettings_Runtime"

	// InteractiveKey addresses the resource bootstrapped only in the interactive context.
	InteractiveKey = "BootSettings_Editor"
)

// DefaultKeys returns the keys resolved for the given context, in declaration order.
// The interactive resource is declared first so editor-only objects exist before the
// runtime ones.
func DefaultKeys(ec ExecContext) []string {
	if ec == ContextInteractive {
		return []string{InteractiveKey, ProductionKey}
	}
	return []string{ProductionKey}
}
