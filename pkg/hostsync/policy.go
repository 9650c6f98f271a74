package hostsync

import "github.com/openfroyo/bootcoord/pkg/boot"

// Decide is the CheckInit rule for interactive hosts outside the event table.
//
// Bootstrapping follows the preference while in edit mode: enabled and
// uninitialized initializes, disabled and initialized de-initializes. Run mode
// belongs to the production bootstrap, so nothing is decided there. Transient
// phases are left alone. Calling Decide again after its action has been applied
// always yields ActionNone.
func Decide(pref bool, phase boot.Phase, inRunMode bool) Action {
	if inRunMode {
		return ActionNone
	}
	switch {
	case pref && phase == boot.PhaseUninitialized:
		return ActionInitialize
	case !pref && phase == boot.PhaseInitialized:
		return ActionDeinitialize
	default:
		return ActionNone
	}
}
